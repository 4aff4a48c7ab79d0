package models

import "time"

// ============================================
// Activity Models
// ============================================

type ActivityResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	TaskID    string    `json:"taskId"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	FieldName *string   `json:"fieldName,omitempty"`
	OldValue  *string   `json:"oldValue,omitempty"`
	NewValue  *string   `json:"newValue,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
