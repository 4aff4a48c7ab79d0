package types

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Task Status values
const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusInReview   TaskStatus = "IN_REVIEW"
	StatusBlocked    TaskStatus = "BLOCKED" // derived, never stored
	StatusDone       TaskStatus = "DONE"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// Role is a team member's role inside a workspace.
type Role string

// Workspace Member Roles
const (
	RoleOwner            Role = "OWNER"
	RoleTeamLead         Role = "TEAM_LEAD"
	RoleCoordinator      Role = "COORDINATOR"
	RoleVolunteerManager Role = "VOLUNTEER_MANAGER"
	RoleSpecialist       Role = "SPECIALIST"
	RoleMarketingLead    Role = "MARKETING_LEAD"
	RoleGeneralVolunteer Role = "GENERAL_VOLUNTEER"
)

// MemberStatus is the lifecycle state of a membership.
type MemberStatus string

// Member Status values
const (
	MemberActive   MemberStatus = "ACTIVE"
	MemberPending  MemberStatus = "PENDING"
	MemberInactive MemberStatus = "INACTIVE"
)

// Action is a role-gated operation.
type Action string

// Role-gated actions
const (
	ActionCreateTask             Action = "createTask"
	ActionEditTask               Action = "editTask"
	ActionAssignTask             Action = "assignTask"
	ActionDeleteTask             Action = "deleteTask"
	ActionChangeOthersAssignment Action = "changeOthersAssignment"
	ActionManageMembers          Action = "manageMembers"
)

// Valid values for validation
var ValidTaskStatuses = []TaskStatus{
	StatusTodo, StatusInProgress, StatusInReview,
	StatusBlocked, StatusDone, StatusCancelled,
}

var ValidRoles = []Role{
	RoleOwner, RoleTeamLead, RoleCoordinator, RoleVolunteerManager,
	RoleSpecialist, RoleMarketingLead, RoleGeneralVolunteer,
}

var ValidMemberStatuses = []MemberStatus{
	MemberActive, MemberPending, MemberInactive,
}

var ValidActions = []Action{
	ActionCreateTask, ActionEditTask, ActionAssignTask,
	ActionDeleteTask, ActionChangeOthersAssignment, ActionManageMembers,
}

// IsValidTaskStatus checks if the status is valid
func IsValidTaskStatus(status TaskStatus) bool {
	for _, s := range ValidTaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsValidRole checks if the role is valid
func IsValidRole(role Role) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsValidMemberStatus checks if the member status is valid
func IsValidMemberStatus(status MemberStatus) bool {
	for _, s := range ValidMemberStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from status.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// IsSettled reports whether a dependency in this status no longer blocks.
func (s TaskStatus) IsSettled() bool {
	return s == StatusDone || s == StatusCancelled
}
