package notification

import (
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
)

// EventKind names what a change event records.
type EventKind string

// Change event kinds
const (
	KindTaskCreated       EventKind = "task.created"
	KindTaskUpdated       EventKind = "task.updated"
	KindTaskAssigned      EventKind = "task.assigned"
	KindTaskCancelled     EventKind = "task.cancelled"
	KindCommentAdded      EventKind = "comment.added"
	KindCommentEdited     EventKind = "comment.edited"
	KindCommentDeleted    EventKind = "comment.deleted"
	KindAttachmentAdded   EventKind = "attachment.added"
	KindAttachmentRemoved EventKind = "attachment.removed"
	KindMemberUnassigned  EventKind = "member.unassigned"
)

// ChangeEvent is emitted once per committed mutation of a task. Before is
// nil for creations.
type ChangeEvent struct {
	ID          string
	WorkspaceID string
	TaskID      string
	ActorID     string
	Kind        EventKind
	Before      *repository.Task
	After       *repository.Task
	Timestamp   time.Time
}

// Payload renders the event as a JSON friendly map.
func (e ChangeEvent) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"eventId":     e.ID,
		"workspaceId": e.WorkspaceID,
		"taskId":      e.TaskID,
		"actorId":     e.ActorID,
		"kind":        string(e.Kind),
		"timestamp":   e.Timestamp,
	}
	if e.Before != nil {
		payload["before"] = TaskPayload(e.Before)
	}
	if e.After != nil {
		payload["after"] = TaskPayload(e.After)
	}
	return payload
}

// TaskPayload renders the visible parts of a task snapshot.
func TaskPayload(t *repository.Task) map[string]interface{} {
	comments := make([]map[string]interface{}, 0, len(t.Comments))
	for _, c := range t.VisibleComments() {
		comment := map[string]interface{}{
			"id":        c.ID,
			"authorId":  c.AuthorID,
			"body":      c.Body,
			"createdAt": c.CreatedAt,
		}
		if c.EditedAt != nil {
			comment["editedAt"] = *c.EditedAt
		}
		comments = append(comments, comment)
	}
	attachments := make([]map[string]interface{}, 0, len(t.Attachments))
	for _, a := range t.VisibleAttachments() {
		attachments = append(attachments, map[string]interface{}{
			"id":         a.ID,
			"fileRef":    a.FileRef,
			"uploadedBy": a.UploadedBy,
			"uploadedAt": a.UploadedAt,
		})
	}
	return map[string]interface{}{
		"id":          t.ID,
		"workspaceId": t.WorkspaceID,
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"assigneeIds": nonNil(t.AssigneeIDs),
		"dependsOn":   nonNil(t.DependsOn),
		"progress":    t.Progress,
		"comments":    comments,
		"attachments": attachments,
		"createdAt":   t.CreatedAt,
		"updatedAt":   t.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
