package repository

import (
	"slices"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
)

// ============================================
// Models / Entities
// ============================================

type Task struct {
	ID          string
	WorkspaceID string
	Title       string
	Description string
	Status      types.TaskStatus
	AssigneeIDs []string
	DependsOn   []string
	Progress    int
	Comments    []*TaskComment
	Attachments []*TaskAttachment
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskComment struct {
	ID        string
	TaskID    string
	AuthorID  string
	Body      string
	CreatedAt time.Time
	EditedAt  *time.Time
	Deleted   bool
	DeletedAt *time.Time
	DeletedBy *string
}

type TaskAttachment struct {
	ID         string
	TaskID     string
	FileRef    string
	UploadedBy string
	UploadedAt time.Time
	Removed    bool
	RemovedAt  *time.Time
	RemovedBy  *string
}

type TeamMember struct {
	UserID      string             `db:"user_id"`
	WorkspaceID string             `db:"workspace_id"`
	Role        types.Role         `db:"role"`
	Status      types.MemberStatus `db:"status"`
	JoinedAt    time.Time          `db:"joined_at"`
}

// Clone returns a deep copy so callers can stage edits without touching
// the original.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.AssigneeIDs = slices.Clone(t.AssigneeIDs)
	c.DependsOn = slices.Clone(t.DependsOn)
	c.Comments = make([]*TaskComment, len(t.Comments))
	for i, cm := range t.Comments {
		cp := *cm
		c.Comments[i] = &cp
	}
	c.Attachments = make([]*TaskAttachment, len(t.Attachments))
	for i, a := range t.Attachments {
		cp := *a
		c.Attachments[i] = &cp
	}
	return &c
}

// HasAssignee reports whether userID is currently assigned.
func (t *Task) HasAssignee(userID string) bool {
	return slices.Contains(t.AssigneeIDs, userID)
}

// FindComment returns the comment with the given id, or nil.
func (t *Task) FindComment(commentID string) *TaskComment {
	for _, c := range t.Comments {
		if c.ID == commentID {
			return c
		}
	}
	return nil
}

// FindAttachment returns the attachment with the given id, or nil.
func (t *Task) FindAttachment(attachmentID string) *TaskAttachment {
	for _, a := range t.Attachments {
		if a.ID == attachmentID {
			return a
		}
	}
	return nil
}

// VisibleComments drops soft-deleted comments.
func (t *Task) VisibleComments() []*TaskComment {
	out := make([]*TaskComment, 0, len(t.Comments))
	for _, c := range t.Comments {
		if !c.Deleted {
			out = append(out, c)
		}
	}
	return out
}

// VisibleAttachments drops removed attachments.
func (t *Task) VisibleAttachments() []*TaskAttachment {
	out := make([]*TaskAttachment, 0, len(t.Attachments))
	for _, a := range t.Attachments {
		if !a.Removed {
			out = append(out, a)
		}
	}
	return out
}
