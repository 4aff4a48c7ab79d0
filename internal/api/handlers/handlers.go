package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/depgraph"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/logging"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/models"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/service"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/workflow"
	"github.com/gin-gonic/gin"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Task     *TaskHandler
	Comment  *CommentHandler
	Member   *MemberHandler
	Activity *ActivityHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Task:     NewTaskHandler(services.Task),
		Comment:  NewCommentHandler(services.Task),
		Member:   NewMemberHandler(services.Member, services.Task),
		Activity: NewActivityHandler(services.Activity),
	}
}

// ============================================
// Error handling
// ============================================

func logAPIError(c *gin.Context, action string, err error, fields map[string]interface{}) {
	entry := logging.For("api").WithError(err).WithFields(map[string]interface{}{
		"action": action,
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"userId": c.GetString("userID"),
	})
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	if errors.Is(err, service.ErrPersistence) {
		entry.Error("API error")
		return
	}
	entry.Info("API error")
}

// handleServiceError maps engine errors onto HTTP responses.
func handleServiceError(c *gin.Context, err error) {
	var (
		cycle      *depgraph.CycleError
		self       *depgraph.SelfDependencyError
		notReady   *workflow.NotReadyError
		transition *workflow.InvalidTransitionError
	)

	switch {
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &cycle):
		c.JSON(http.StatusConflict, gin.H{
			"error": "dependency would create a cycle",
			"code":  "DEPENDENCY_CYCLE",
			"from":  cycle.From,
			"to":    cycle.To,
		})
	case errors.As(err, &self):
		c.JSON(http.StatusConflict, gin.H{
			"error": "task cannot depend on itself",
			"code":  "SELF_DEPENDENCY",
			"from":  self.TaskID,
			"to":    self.TaskID,
		})
	case errors.As(err, &notReady):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "task has unfinished dependencies",
			"code":      "NOT_READY",
			"status":    notReady.To,
			"blockedBy": notReady.BlockedBy,
		})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{
			"error": "transition not allowed",
			"code":  "INVALID_TRANSITION",
			"from":  transition.From,
			"to":    transition.To,
		})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPersistence),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable, try again"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body", Message: err.Error()})
}

// ============================================
// Response Mappers
// ============================================

func toTaskResponse(v *service.TaskView) models.TaskResponse {
	if v == nil || v.Task == nil {
		return models.TaskResponse{}
	}
	t := v.Task

	comments := make([]models.CommentResponse, 0, len(t.Comments))
	for _, c := range t.VisibleComments() {
		comments = append(comments, toCommentResponse(c))
	}
	attachments := make([]models.AttachmentResponse, 0, len(t.Attachments))
	for _, a := range t.VisibleAttachments() {
		attachments = append(attachments, toAttachmentResponse(a))
	}

	return models.TaskResponse{
		ID:                 t.ID,
		WorkspaceID:        t.WorkspaceID,
		Title:              t.Title,
		Description:        t.Description,
		Status:             string(t.Status),
		EffectiveStatus:    string(v.EffectiveStatus),
		Progress:           t.Progress,
		AssigneeIDs:        safeStringSlice(t.AssigneeIDs),
		DependsOn:          safeStringSlice(t.DependsOn),
		Dependents:         safeStringSlice(v.Dependents),
		BlockedBy:          safeStringSlice(v.BlockedBy),
		AllowedTransitions: statusStrings(v.AllowedTransitions),
		Comments:           comments,
		Attachments:        attachments,
		CreatedBy:          t.CreatedBy,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func toTaskResponseList(views []*service.TaskView) []models.TaskResponse {
	response := make([]models.TaskResponse, len(views))
	for i, v := range views {
		response[i] = toTaskResponse(v)
	}
	return response
}

func toCommentResponse(c *repository.TaskComment) models.CommentResponse {
	return models.CommentResponse{
		ID:        c.ID,
		TaskID:    c.TaskID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
		EditedAt:  c.EditedAt,
	}
}

func toAttachmentResponse(a *repository.TaskAttachment) models.AttachmentResponse {
	return models.AttachmentResponse{
		ID:         a.ID,
		TaskID:     a.TaskID,
		FileRef:    a.FileRef,
		UploadedBy: a.UploadedBy,
		UploadedAt: a.UploadedAt,
	}
}

func toBoardResponse(b *service.Board) models.BoardResponse {
	columns := make([]models.BoardColumnResponse, len(b.Columns))
	for i, col := range b.Columns {
		columns[i] = models.BoardColumnResponse{
			Status:          string(col.Status),
			Count:           col.Count,
			AverageProgress: col.AverageProgress.StringFixed(1),
			Tasks:           toTaskResponseList(col.Tasks),
		}
	}
	return models.BoardResponse{
		WorkspaceID: b.WorkspaceID,
		Columns:     columns,
		Total:       b.Total,
		GeneratedAt: b.GeneratedAt,
	}
}

func toMemberResponse(m *repository.TeamMember) models.MemberResponse {
	return models.MemberResponse{
		UserID:      m.UserID,
		WorkspaceID: m.WorkspaceID,
		Role:        string(m.Role),
		Status:      string(m.Status),
		JoinedAt:    m.JoinedAt,
	}
}

// Helper to ensure nil slices become empty slices
func safeStringSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func statusStrings(statuses []types.TaskStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
