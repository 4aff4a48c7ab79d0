package models

import "time"

// ============================================
// Member Models
// ============================================

type MemberResponse struct {
	UserID      string    `json:"userId"`
	WorkspaceID string    `json:"workspaceId"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type UnassignMemberResponse struct {
	UserID       string `json:"userId"`
	TasksUpdated int    `json:"tasksUpdated"`
}
