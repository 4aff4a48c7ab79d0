package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the task engine API on an authenticated group.
func RegisterRoutes(protected *gin.RouterGroup, h *Handlers) {
	// Workspace routes
	workspaces := protected.Group("/workspaces")
	{
		workspaces.GET("/:id/tasks", h.Task.ListByWorkspace)
		workspaces.POST("/:id/tasks", h.Task.Create)
		workspaces.POST("/:id/tasks/bulk/status", h.Task.BulkUpdateStatus)
		workspaces.GET("/:id/board", h.Task.Board)

		// Members
		workspaces.GET("/:id/members", h.Member.List)
		workspaces.DELETE("/:id/members/:userId/assignments", h.Member.UnassignAll)
	}

	// Task routes
	tasks := protected.Group("/tasks")
	{
		tasks.GET("/:id", h.Task.Get)
		tasks.PATCH("/:id", h.Task.Update)
		tasks.DELETE("/:id", h.Task.Delete)
		tasks.PUT("/:id/assignees", h.Task.Assign)

		// Dependencies
		tasks.POST("/:id/dependencies", h.Task.AddDependency)
		tasks.DELETE("/:id/dependencies/:dependsOnId", h.Task.RemoveDependency)

		// Comments
		tasks.GET("/:id/comments", h.Comment.ListByTask)
		tasks.POST("/:id/comments", h.Comment.Create)
		tasks.PUT("/:id/comments/:commentId", h.Comment.Update)
		tasks.DELETE("/:id/comments/:commentId", h.Comment.Delete)

		// Attachments
		tasks.POST("/:id/attachments", h.Comment.AddAttachment)
		tasks.DELETE("/:id/attachments/:attachmentId", h.Comment.RemoveAttachment)

		// History
		tasks.GET("/:id/activity", h.Activity.GetTaskActivities)
	}
}
