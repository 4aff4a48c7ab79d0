package socket

import (
	"encoding/json"
	"testing"
)

func newTestClient(hub *Hub, userID string) *Client {
	c := &Client{
		ID:     userID + "-conn",
		UserID: userID,
		Hub:    hub,
		Send:   make(chan []byte, 8),
		Rooms:  make(map[string]bool),
	}
	hub.registerClient(c)
	return c
}

func allowMembers(members map[string]string) RoomAuthorizer {
	return func(userID, room string) bool {
		return WorkspaceRoom(members[userID]) == room
	}
}

func TestJoinRoomUsesAuthorizer(t *testing.T) {
	hub := NewHub(allowMembers(map[string]string{"u1": "ws1"}))
	member := newTestClient(hub, "u1")
	outsider := newTestClient(hub, "u2")

	if !hub.JoinRoom(member, WorkspaceRoom("ws1")) {
		t.Error("member could not join own workspace room")
	}
	if hub.JoinRoom(outsider, WorkspaceRoom("ws1")) {
		t.Error("outsider joined workspace room")
	}
	if hub.JoinRoom(member, "user:u2") {
		t.Error("joined a non-workspace room")
	}
	if got := hub.GetRoomClients(WorkspaceRoom("ws1")); got != 1 {
		t.Errorf("GetRoomClients = %d, want 1", got)
	}
}

func TestBroadcastToRoomSkipsExcludedUser(t *testing.T) {
	hub := NewHub(func(string, string) bool { return true })
	actor := newTestClient(hub, "u1")
	watcher := newTestClient(hub, "u2")
	room := WorkspaceRoom("ws1")
	hub.JoinRoom(actor, room)
	hub.JoinRoom(watcher, room)

	data, _ := json.Marshal(Message{Type: MessageTaskUpdated})
	hub.broadcastToRoom(&RoomMessage{Room: room, Message: data, Exclude: "u1"})

	select {
	case got := <-watcher.Send:
		var msg Message
		if err := json.Unmarshal(got, &msg); err != nil || msg.Type != MessageTaskUpdated {
			t.Errorf("watcher got %s (%v)", got, err)
		}
	default:
		t.Fatal("watcher received nothing")
	}
	if len(actor.Send) != 0 {
		t.Error("excluded actor received its own event")
	}
}

func TestUnregisterLeavesRooms(t *testing.T) {
	hub := NewHub(func(string, string) bool { return true })
	c := newTestClient(hub, "u1")
	hub.JoinRoom(c, WorkspaceRoom("ws1"))

	hub.unregisterClient(c)

	if got := hub.GetRoomClients(WorkspaceRoom("ws1")); got != 0 {
		t.Errorf("GetRoomClients after unregister = %d, want 0", got)
	}
	if got := hub.GetConnectedClientsCount(); got != 0 {
		t.Errorf("GetConnectedClientsCount = %d, want 0", got)
	}
	if _, open := <-c.Send; open {
		t.Error("send channel still open")
	}
}

func TestNilAuthorizerRefusesJoins(t *testing.T) {
	hub := NewHub(nil)
	c := newTestClient(hub, "u1")
	if hub.JoinRoom(c, WorkspaceRoom("ws1")) {
		t.Error("join allowed without authorizer")
	}
}
