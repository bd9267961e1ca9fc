package gateway

import (
	"sync"
)

// RoomManager tracks which live connections belong to which conversation
// room on this process. Rooms are pure runtime state: nothing is persisted,
// membership is rebuilt from the store whenever a connection authenticates.
// The inverse index makes removal on disconnect O(rooms of connection).
type RoomManager struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	inverse map[*Client]map[string]struct{}
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:   make(map[string]map[*Client]struct{}),
		inverse: make(map[*Client]map[string]struct{}),
	}
}

func (rm *RoomManager) Join(roomId string, c *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.rooms[roomId] == nil {
		rm.rooms[roomId] = make(map[*Client]struct{})
	}
	rm.rooms[roomId][c] = struct{}{}

	if rm.inverse[c] == nil {
		rm.inverse[c] = make(map[string]struct{})
	}
	rm.inverse[c][roomId] = struct{}{}
}

func (rm *RoomManager) Leave(roomId string, c *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.removeLocked(roomId, c)
}

// MembersOf returns the connections currently joined to the room. An
// unknown room yields an empty slice, never an error.
func (rm *RoomManager) MembersOf(roomId string) []*Client {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	members := make([]*Client, 0, len(rm.rooms[roomId]))
	for c := range rm.rooms[roomId] {
		members = append(members, c)
	}
	return members
}

func (rm *RoomManager) RoomsOf(c *Client) []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rooms := make([]string, 0, len(rm.inverse[c]))
	for id := range rm.inverse[c] {
		rooms = append(rooms, id)
	}
	return rooms
}

// RemoveConnection drops the connection from every room it belongs to.
// Safe to call for a connection that was never joined anywhere.
func (rm *RoomManager) RemoveConnection(c *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for roomId := range rm.inverse[c] {
		rm.removeLocked(roomId, c)
	}
}

func (rm *RoomManager) NumRooms() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return len(rm.rooms)
}

func (rm *RoomManager) removeLocked(roomId string, c *Client) {
	if members, ok := rm.rooms[roomId]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(rm.rooms, roomId)
		}
	}

	if rooms, ok := rm.inverse[c]; ok {
		delete(rooms, roomId)
		if len(rooms) == 0 {
			delete(rm.inverse, c)
		}
	}
}
