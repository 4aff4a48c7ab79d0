package socket

// Broadcaster provides high-level methods for broadcasting events
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// BroadcastWorkspaceEvent sends a task change to everyone following the
// workspace except the user who caused it.
func (b *Broadcaster) BroadcastWorkspaceEvent(workspaceID string, msgType MessageType, payload map[string]interface{}, excludeUserID string) {
	b.hub.SendToRoom(WorkspaceRoom(workspaceID), msgType, payload, excludeUserID)
}

// WorkspaceWatchers returns how many clients follow the workspace.
func (b *Broadcaster) WorkspaceWatchers(workspaceID string) int {
	return b.hub.GetRoomClients(WorkspaceRoom(workspaceID))
}
