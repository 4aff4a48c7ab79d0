package service

import (
	"fmt"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
)

// ============================================
// Permission Levels
// ============================================

const (
	levelContributor = 1 // may only act on tasks they are assigned to
	levelCoordinator = 2
	levelLead        = 3
)

// PermissionService answers role-level questions. It never looks at a
// particular task; assignee rules live in the task service.
type PermissionService interface {
	// Can reports whether role may perform action. It panics on a role
	// outside the fixed set.
	Can(role types.Role, action types.Action) bool
	// IsElevated reports whether role can edit any task, which also
	// lets it moderate comments and attachments of others.
	IsElevated(role types.Role) bool
}

type permissionService struct{}

// NewPermissionService creates the role authority
func NewPermissionService() PermissionService {
	return &permissionService{}
}

// actionMinimumLevel is the lowest role level that may perform each action.
var actionMinimumLevel = map[types.Action]int{
	types.ActionCreateTask:             levelCoordinator,
	types.ActionEditTask:               levelCoordinator,
	types.ActionAssignTask:             levelCoordinator,
	types.ActionChangeOthersAssignment: levelCoordinator,
	types.ActionDeleteTask:             levelLead,
	types.ActionManageMembers:          levelLead,
}

// roleLevel returns numeric level for role comparison (higher = more permissions)
func roleLevel(role types.Role) int {
	switch role {
	case types.RoleOwner, types.RoleTeamLead:
		return levelLead
	case types.RoleCoordinator, types.RoleVolunteerManager:
		return levelCoordinator
	case types.RoleSpecialist, types.RoleMarketingLead, types.RoleGeneralVolunteer:
		return levelContributor
	default:
		panic(fmt.Sprintf("permission: unknown role %q", role))
	}
}

func (s *permissionService) Can(role types.Role, action types.Action) bool {
	level := roleLevel(role)
	min, ok := actionMinimumLevel[action]
	if !ok {
		return false
	}
	return level >= min
}

func (s *permissionService) IsElevated(role types.Role) bool {
	return s.Can(role, types.ActionEditTask)
}
