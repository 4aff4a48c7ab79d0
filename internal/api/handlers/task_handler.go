package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/api/middleware"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/models"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/service"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService service.TaskService
}

func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ============================================
// TASK CRUD
// ============================================

func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	workspaceID := c.Param("id")

	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.taskService.CreateTask(c.Request.Context(), workspaceID, userID, &service.CreateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		DependsOn:   req.DependsOn,
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		logAPIError(c, "Task.Create", err, map[string]interface{}{
			"workspaceId": workspaceID,
			"title":       req.Title,
		})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toTaskResponse(view))
}

func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	view, err := h.taskService.GetTask(c.Request.Context(), taskID, userID)
	if err != nil {
		logAPIError(c, "Task.Get", err, map[string]interface{}{"taskId": taskID})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(view))
}

func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	var req models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	patch := &service.UpdateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		Progress:    req.Progress,
		DependsOn:   req.DependsOn,
	}
	if req.Status != nil {
		status := types.TaskStatus(strings.ToUpper(*req.Status))
		patch.Status = &status
	}

	view, err := h.taskService.UpdateTask(c.Request.Context(), taskID, userID, patch)
	if err != nil {
		logAPIError(c, "Task.Update", err, map[string]interface{}{"taskId": taskID})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(view))
}

// Delete cancels the task. Tasks are never removed.
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	view, err := h.taskService.DeleteTask(c.Request.Context(), taskID, userID)
	if err != nil {
		logAPIError(c, "Task.Delete", err, map[string]interface{}{"taskId": taskID})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(view))
}

// ============================================
// LISTS & BOARD
// ============================================

func (h *TaskHandler) ListByWorkspace(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	workspaceID := c.Param("id")
	filter := service.ListFilter{
		AssigneeID: c.Query("assigneeId"),
		Search:     strings.TrimSpace(c.Query("q")),
	}
	for _, raw := range c.QueryArray("status") {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, types.TaskStatus(strings.ToUpper(s)))
			}
		}
	}
	includeCancelled, err := parseBoolQuery(c, "includeCancelled")
	if err != nil {
		badRequest(c, err)
		return
	}
	filter.IncludeCancelled = includeCancelled

	views, err := h.taskService.ListTasks(c.Request.Context(), workspaceID, userID, filter)
	if err != nil {
		logAPIError(c, "Task.ListByWorkspace", err, map[string]interface{}{"workspaceId": workspaceID})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewListResponse(toTaskResponseList(views), len(views)))
}

func (h *TaskHandler) Board(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	workspaceID := c.Param("id")
	includeCancelled, err := parseBoolQuery(c, "includeCancelled")
	if err != nil {
		badRequest(c, err)
		return
	}

	board, err := h.taskService.BoardView(c.Request.Context(), workspaceID, userID, service.BoardOptions{
		IncludeCancelled: includeCancelled,
	})
	if err != nil {
		logAPIError(c, "Task.Board", err, map[string]interface{}{"workspaceId": workspaceID})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBoardResponse(board))
}

// ============================================
// STATUS, ASSIGNMENT & DEPENDENCIES
// ============================================

func (h *TaskHandler) BulkUpdateStatus(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	workspaceID := c.Param("id")
	var req models.BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	status := types.TaskStatus(strings.ToUpper(req.Status))
	views, err := h.taskService.BulkUpdateStatus(c.Request.Context(), workspaceID, userID, req.TaskIDs, status)
	if err != nil {
		logAPIError(c, "Task.BulkUpdateStatus", err, map[string]interface{}{
			"workspaceId": workspaceID,
			"status":      req.Status,
			"tasks":       len(req.TaskIDs),
		})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.NewListResponse(toTaskResponseList(views), len(views)))
}

func (h *TaskHandler) Assign(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	var req models.AssignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.taskService.AssignTask(c.Request.Context(), taskID, userID, req.AssigneeIDs)
	if err != nil {
		logAPIError(c, "Task.Assign", err, map[string]interface{}{
			"taskId":      taskID,
			"assigneeIds": req.AssigneeIDs,
		})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(view))
}

func (h *TaskHandler) AddDependency(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	var req models.AddDependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.taskService.AddDependency(c.Request.Context(), taskID, userID, req.DependsOnID)
	if err != nil {
		logAPIError(c, "Task.AddDependency", err, map[string]interface{}{
			"taskId":      taskID,
			"dependsOnId": req.DependsOnID,
		})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(view))
}

func (h *TaskHandler) RemoveDependency(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	dependsOnID := c.Param("dependsOnId")
	view, err := h.taskService.RemoveDependency(c.Request.Context(), taskID, userID, dependsOnID)
	if err != nil {
		logAPIError(c, "Task.RemoveDependency", err, map[string]interface{}{
			"taskId":      taskID,
			"dependsOnId": dependsOnID,
		})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTaskResponse(view))
}

func parseBoolQuery(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
