package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomManager_JoinLeave(t *testing.T) {
	rm := NewRoomManager()
	c1 := &Client{id: "c1"}
	c2 := &Client{id: "c2"}

	rm.Join("conv1", c1)
	rm.Join("conv1", c2)
	rm.Join("conv2", c1)

	assert.ElementsMatch(t, []*Client{c1, c2}, rm.MembersOf("conv1"), "expected both clients in conv1")
	assert.ElementsMatch(t, []*Client{c1}, rm.MembersOf("conv2"), "expected only c1 in conv2")
	assert.ElementsMatch(t, []string{"conv1", "conv2"}, rm.RoomsOf(c1), "expected c1 in both rooms")
	assert.ElementsMatch(t, []string{"conv1"}, rm.RoomsOf(c2), "expected c2 only in conv1")

	rm.Leave("conv1", c1)
	assert.ElementsMatch(t, []*Client{c2}, rm.MembersOf("conv1"), "expected c1 removed from conv1")
	assert.ElementsMatch(t, []string{"conv2"}, rm.RoomsOf(c1), "expected conv1 removed from c1's rooms")
}

func TestRoomManager_JoinIsIdempotent(t *testing.T) {
	rm := NewRoomManager()
	c := &Client{id: "c1"}

	rm.Join("conv1", c)
	rm.Join("conv1", c)

	assert.Len(t, rm.MembersOf("conv1"), 1, "expected a double join to count once")
}

func TestRoomManager_NetEffectOfSequence(t *testing.T) {
	rm := NewRoomManager()
	c1 := &Client{id: "c1"}
	c2 := &Client{id: "c2"}
	c3 := &Client{id: "c3"}

	rm.Join("conv1", c1)
	rm.Join("conv1", c2)
	rm.Leave("conv1", c1)
	rm.Join("conv1", c3)
	rm.Join("conv1", c1)
	rm.Leave("conv1", c2)

	assert.ElementsMatch(t, []*Client{c1, c3}, rm.MembersOf("conv1"),
		"expected membership to equal the net effect of the join/leave sequence")
}

func TestRoomManager_RemoveConnection(t *testing.T) {
	rm := NewRoomManager()
	c1 := &Client{id: "c1"}
	c2 := &Client{id: "c2"}

	rm.Join("conv1", c1)
	rm.Join("conv2", c1)
	rm.Join("conv3", c1)
	rm.Join("conv1", c2)

	rm.RemoveConnection(c1)

	for _, roomId := range []string{"conv1", "conv2", "conv3"} {
		assert.NotContains(t, rm.MembersOf(roomId), c1, "expected no leaked membership in %q", roomId)
	}
	assert.Empty(t, rm.RoomsOf(c1), "expected no rooms for removed connection")
	assert.ElementsMatch(t, []*Client{c2}, rm.MembersOf("conv1"), "expected c2 to remain in conv1")

	// removing an unknown connection is a no-op
	rm.RemoveConnection(&Client{id: "never-joined"})
}

func TestRoomManager_EmptyRoomsAreDropped(t *testing.T) {
	rm := NewRoomManager()
	c := &Client{id: "c1"}

	rm.Join("conv1", c)
	assert.Equal(t, 1, rm.NumRooms(), "expected one live room")

	rm.Leave("conv1", c)
	assert.Equal(t, 0, rm.NumRooms(), "expected empty room to be dropped")
	assert.Empty(t, rm.MembersOf("conv1"), "expected membersOf unknown room to be empty, not an error")
}
