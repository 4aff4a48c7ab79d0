package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/api/middleware"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/models"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/service"
	"github.com/gin-gonic/gin"
)

// MemberHandler serves workspace membership reads and the assignment
// cascade run when a member leaves.
type MemberHandler struct {
	memberService service.MemberService
	taskService   service.TaskService
}

func NewMemberHandler(memberService service.MemberService, taskService service.TaskService) *MemberHandler {
	return &MemberHandler{memberService: memberService, taskService: taskService}
}

func (h *MemberHandler) List(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	workspaceID := c.Param("id")
	members, err := h.memberService.ListMembers(c.Request.Context(), workspaceID, userID)
	if err != nil {
		logAPIError(c, "Member.List", err, map[string]interface{}{"workspaceId": workspaceID})
		handleServiceError(c, err)
		return
	}

	response := make([]models.MemberResponse, len(members))
	for i, m := range members {
		response[i] = toMemberResponse(m)
	}
	c.JSON(http.StatusOK, models.NewListResponse(response, len(response)))
}

// UnassignAll removes a member from every task in the workspace.
func (h *MemberHandler) UnassignAll(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	workspaceID := c.Param("id")
	memberID := c.Param("userId")
	n, err := h.taskService.UnassignMember(c.Request.Context(), workspaceID, userID, memberID)
	if err != nil {
		logAPIError(c, "Member.UnassignAll", err, map[string]interface{}{
			"workspaceId": workspaceID,
			"memberId":    memberID,
		})
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UnassignMemberResponse{UserID: memberID, TasksUpdated: n})
}
