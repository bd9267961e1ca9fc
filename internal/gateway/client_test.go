package gateway

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"marketchat/internal/stats"
	"marketchat/internal/store"
	"marketchat/internal/testutil"
)

func TestClient_QueueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			Send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.QueueMessage(&ServerMessage{})
		assert.True(t, res, "expected QueueMessage to return true when channel is not full")

		select {
		case msg := <-c.Send:
			assert.NotNil(t, msg, "expected a message to be queued for the client")
		default:
			t.Error("expected a message to be queued for the client, but none was")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			Send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.Send <- &ServerMessage{} // pre-fill to simulate a full channel
		res := c.QueueMessage(&ServerMessage{})
		assert.False(t, res, "expected QueueMessage to return false when channel is full")
	})
}

func TestClient_Close(t *testing.T) {
	c := &Client{stop: make(chan struct{})}

	c.Close()
	c.Close() // safe to call twice

	select {
	case <-c.stop:
		// channel is closed as expected
	default:
		t.Error("expected stop channel to be closed")
	}
}

func authedTestClient(t *testing.T, db store.ChatRepository, relay Relay, userId string) (*Client, *Gateway) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", "NumConnections")
	su.On("Incr", "NumAuthenticatedSessions")

	gw := newTestGateway(t, db, relay, su)
	c := gw.Accept(nil)
	if userId != "" {
		if err := gw.Authenticate(c, userId); err != nil {
			t.Fatalf("failed to authenticate test client: %v", err)
		}
	}
	return c, gw
}

func TestClient_handleCommand_requiresHandshake(t *testing.T) {
	c, _ := authedTestClient(t, &store.MockChatRepository{}, &fakeRelay{}, "")

	c.handleCommand(&ClientMessage{
		BaseMessage: BaseMessage{Id: 7},
		Join:        &Join{ConversationId: "conv1"},
	})

	select {
	case msg := <-c.Send:
		assert.NotNil(t, msg.Response, "expected a response")
		assert.Equal(t, 7, msg.Id, "expected response id to match command id")
		assert.Equal(t, http.StatusUnauthorized, msg.Response.ResponseCode,
			"expected commands before the handshake to be rejected")
	default:
		t.Error("expected a rejection to be queued, but none was")
	}
}

func TestClient_handleAuth(t *testing.T) {
	t.Run("successful handshake acks", func(t *testing.T) {
		db := &store.MockChatRepository{}
		db.On("ConversationIdsForUser", "buyer-1").Return([]string{"conv1"}, nil).Once()
		defer db.AssertExpectations(t)

		c, _ := authedTestClient(t, db, &fakeRelay{}, "")

		c.handleCommand(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Auth:        &Auth{UserId: "buyer-1"},
		})

		select {
		case msg := <-c.Send:
			assert.NotNil(t, msg.Authenticated, "expected an authenticated ack")
			assert.Equal(t, 1, msg.Id, "expected ack id to match command id")
			assert.Equal(t, "buyer-1", msg.Authenticated.UserId, "expected ack to carry the user id")
		default:
			t.Error("expected an authenticated ack to be queued, but none was")
		}
	})

	t.Run("missing user id gets no response", func(t *testing.T) {
		c, gw := authedTestClient(t, &store.MockChatRepository{}, &fakeRelay{}, "")

		c.handleCommand(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Auth:        &Auth{UserId: ""},
		})

		assert.Empty(t, c.Send, "expected failure to be signalled only by the absent ack")
		assert.Empty(t, c.UserId(), "expected connection to stay unauthenticated")
		assert.Equal(t, 1, gw.NumClients(), "expected connection not to be dropped")
	})
}

func TestClient_handleCommand_typing(t *testing.T) {
	db := &store.MockChatRepository{}
	db.On("ConversationIdsForUser", "buyer-1").Return([]string{"conv1"}, nil).Once()
	defer db.AssertExpectations(t)

	relay := &fakeRelay{}
	c, _ := authedTestClient(t, db, relay, "buyer-1")

	c.handleCommand(&ClientMessage{
		Typing: &Typing{ConversationId: "conv1", IsTyping: true},
	})

	assert.Len(t, relay.typings, 1, "expected one typing signal relayed")
	assert.Equal(t, "conv1", relay.typings[0].ConversationId)
	assert.Equal(t, "buyer-1", relay.typings[0].UserId, "expected signal to carry the sender's id")
	assert.True(t, relay.typings[0].IsTyping)
}

func TestClient_handleMarkRead(t *testing.T) {
	t.Run("persists before relaying", func(t *testing.T) {
		db := &store.MockChatRepository{}
		db.On("ConversationIdsForUser", "buyer-1").Return([]string{"conv1"}, nil).Once()
		db.On("MarkConversationRead", "conv1", "buyer-1").Return(nil).Once()
		defer db.AssertExpectations(t)

		relay := &fakeRelay{}
		c, _ := authedTestClient(t, db, relay, "buyer-1")

		c.handleCommand(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3},
			Read:        &Read{ConversationId: "conv1"},
		})

		select {
		case msg := <-c.Send:
			assert.NotNil(t, msg.Response, "expected a response")
			assert.Equal(t, http.StatusOK, msg.Response.ResponseCode, "expected mark_read to succeed")
		default:
			t.Error("expected a response to be queued, but none was")
		}

		assert.Len(t, relay.reads, 1, "expected one read receipt relayed")
		assert.Equal(t, "conv1", relay.reads[0].ConversationId)
		assert.Equal(t, "buyer-1", relay.reads[0].UserId)
	})

	t.Run("failed persistence relays nothing", func(t *testing.T) {
		db := &store.MockChatRepository{}
		db.On("ConversationIdsForUser", "buyer-1").Return([]string{"conv1"}, nil).Once()
		db.On("MarkConversationRead", "conv1", "buyer-1").Return(errors.New("store down")).Once()
		defer db.AssertExpectations(t)

		relay := &fakeRelay{}
		c, _ := authedTestClient(t, db, relay, "buyer-1")

		c.handleCommand(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3},
			Read:        &Read{ConversationId: "conv1"},
		})

		select {
		case msg := <-c.Send:
			assert.NotNil(t, msg.Response, "expected a response")
			assert.Equal(t, http.StatusInternalServerError, msg.Response.ResponseCode,
				"expected an internal error response")
		default:
			t.Error("expected a response to be queued, but none was")
		}

		assert.Empty(t, relay.reads, "expected no receipt when the write failed")
	})
}

func TestClient_handleCommand_joinLeave(t *testing.T) {
	db := &store.MockChatRepository{}
	db.On("ConversationIdsForUser", "buyer-1").Return(nil, nil).Once()
	defer db.AssertExpectations(t)

	c, gw := authedTestClient(t, db, &fakeRelay{}, "buyer-1")

	c.handleCommand(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Join:        &Join{ConversationId: "conv5"},
	})
	assert.Contains(t, gw.rooms.MembersOf("conv5"), c, "expected connection joined to conv5")
	<-c.Send // ok response

	c.handleCommand(&ClientMessage{
		BaseMessage: BaseMessage{Id: 2},
		Leave:       &Leave{ConversationId: "conv5"},
	})
	assert.NotContains(t, gw.rooms.MembersOf("conv5"), c, "expected connection to have left conv5")
}
