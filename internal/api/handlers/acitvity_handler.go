package handlers

import (
	"net/http"
	"strconv"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/api/middleware"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/models"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Activity Handler
// ============================================

// ActivityHandler serves task history
type ActivityHandler struct {
	activitySvc service.ActivityService
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activitySvc service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activitySvc: activitySvc}
}

// GetTaskActivities lists a task's history, newest first. ?limit=N caps
// the result.
func (h *ActivityHandler) GetTaskActivities(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		limit = n
	}

	taskID := c.Param("id")
	activities, err := h.activitySvc.GetTaskActivities(c.Request.Context(), taskID, userID, limit)
	if err != nil {
		logAPIError(c, "Activity.GetTaskActivities", err, map[string]interface{}{"taskId": taskID})
		handleServiceError(c, err)
		return
	}

	response := make([]models.ActivityResponse, len(activities))
	for i, a := range activities {
		response[i] = toActivityResponse(a)
	}
	c.JSON(http.StatusOK, models.NewListResponse(response, len(response)))
}

func toActivityResponse(a *repository.TaskActivity) models.ActivityResponse {
	return models.ActivityResponse{
		ID:        a.ID,
		EventID:   a.EventID,
		TaskID:    a.TaskID,
		UserID:    a.UserID,
		Action:    a.Action,
		FieldName: a.FieldName,
		OldValue:  a.OldValue,
		NewValue:  a.NewValue,
		CreatedAt: a.CreatedAt,
	}
}
