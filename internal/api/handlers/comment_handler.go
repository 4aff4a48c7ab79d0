package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/api/middleware"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/models"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Comment & Attachment Handler
// ============================================

type CommentHandler struct {
	taskService service.TaskService
}

func NewCommentHandler(taskService service.TaskService) *CommentHandler {
	return &CommentHandler{taskService: taskService}
}

func (h *CommentHandler) ListByTask(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	view, err := h.taskService.GetTask(c.Request.Context(), taskID, userID)
	if err != nil {
		logAPIError(c, "Comment.ListByTask", err, map[string]interface{}{"taskId": taskID})
		handleServiceError(c, err)
		return
	}

	comments := view.Task.VisibleComments()
	response := make([]models.CommentResponse, len(comments))
	for i, cm := range comments {
		response[i] = toCommentResponse(cm)
	}

	c.JSON(http.StatusOK, response)
}

func (h *CommentHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	comment, err := h.taskService.AddComment(c.Request.Context(), taskID, userID, req.Body)
	if err != nil {
		logAPIError(c, "Comment.Create", err, map[string]interface{}{"taskId": taskID})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toCommentResponse(comment))
}

func (h *CommentHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	commentID := c.Param("commentId")
	var req models.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	comment, err := h.taskService.EditComment(c.Request.Context(), taskID, commentID, userID, req.Body)
	if err != nil {
		logAPIError(c, "Comment.Update", err, map[string]interface{}{
			"taskId":    taskID,
			"commentId": commentID,
		})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCommentResponse(comment))
}

func (h *CommentHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	commentID := c.Param("commentId")
	if err := h.taskService.SoftDeleteComment(c.Request.Context(), taskID, commentID, userID); err != nil {
		logAPIError(c, "Comment.Delete", err, map[string]interface{}{
			"taskId":    taskID,
			"commentId": commentID,
		})
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ============================================
// Attachments
// ============================================

func (h *CommentHandler) AddAttachment(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	var req models.CreateAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	attachment, err := h.taskService.AddAttachment(c.Request.Context(), taskID, userID, req.FileRef)
	if err != nil {
		logAPIError(c, "Attachment.Create", err, map[string]interface{}{"taskId": taskID})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAttachmentResponse(attachment))
}

func (h *CommentHandler) RemoveAttachment(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	attachmentID := c.Param("attachmentId")
	if err := h.taskService.RemoveAttachment(c.Request.Context(), taskID, attachmentID, userID); err != nil {
		logAPIError(c, "Attachment.Delete", err, map[string]interface{}{
			"taskId":       taskID,
			"attachmentId": attachmentID,
		})
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
