package models

import "time"

// ============================================
// TASK REQUESTS & RESPONSES
// ============================================

type CreateTaskRequest struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Description string   `json:"description"`
	DependsOn   []string `json:"dependsOn"`
	AssigneeIDs []string `json:"assigneeIds"`
}

// UpdateTaskRequest is a partial update; omitted fields stay unchanged.
type UpdateTaskRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Progress    *int      `json:"progress,omitempty"`
	DependsOn   *[]string `json:"dependsOn,omitempty"`
}

type AssignTaskRequest struct {
	AssigneeIDs []string `json:"assigneeIds"`
}

type AddDependencyRequest struct {
	DependsOnID string `json:"dependsOnId" binding:"required"`
}

type BulkStatusRequest struct {
	TaskIDs []string `json:"taskIds" binding:"required,min=1"`
	Status  string   `json:"status" binding:"required"`
}

type TaskResponse struct {
	ID                 string               `json:"id"`
	WorkspaceID        string               `json:"workspaceId"`
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	Status             string               `json:"status"`
	EffectiveStatus    string               `json:"effectiveStatus"`
	Progress           int                  `json:"progress"`
	AssigneeIDs        []string             `json:"assigneeIds"`
	DependsOn          []string             `json:"dependsOn"`
	Dependents         []string             `json:"dependents"`
	BlockedBy          []string             `json:"blockedBy"`
	AllowedTransitions []string             `json:"allowedTransitions"`
	Comments           []CommentResponse    `json:"comments"`
	Attachments        []AttachmentResponse `json:"attachments"`
	CreatedBy          string               `json:"createdBy"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// ============================================
// COMMENT REQUESTS & RESPONSES
// ============================================

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

type UpdateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

type CommentResponse struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"taskId"`
	AuthorID  string     `json:"authorId"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

// ============================================
// ATTACHMENT REQUESTS & RESPONSES
// ============================================

type CreateAttachmentRequest struct {
	FileRef string `json:"fileRef" binding:"required"`
}

type AttachmentResponse struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	FileRef    string    `json:"fileRef"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ============================================
// BOARD
// ============================================

type BoardColumnResponse struct {
	Status          string         `json:"status"`
	Count           int            `json:"count"`
	AverageProgress string         `json:"averageProgress"`
	Tasks           []TaskResponse `json:"tasks"`
}

type BoardResponse struct {
	WorkspaceID string                `json:"workspaceId"`
	Columns     []BoardColumnResponse `json:"columns"`
	Total       int                   `json:"total"`
	GeneratedAt time.Time             `json:"generatedAt"`
}
