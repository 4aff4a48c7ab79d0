package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/notification"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrPersistence  = errors.New("persistence failure")
)

// ForbiddenError reports a command refused by role authority.
type ForbiddenError struct {
	ActorID string
	Action  string
	TaskID  string
}

func (e *ForbiddenError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("user %s may not %s on task %s", e.ActorID, e.Action, e.TaskID)
	}
	return fmt.Sprintf("user %s may not %s", e.ActorID, e.Action)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// NotFoundError reports a missing task, comment, attachment or member.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PersistenceError wraps a failed storage call. In-memory state has been
// rolled back when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ============================================
// Services Container
// ============================================

type Services struct {
	Task       TaskService
	Member     MemberService
	Permission PermissionService
	Activity   ActivityService
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Repos     *repository.Repositories
	Publisher EventPublisher
	Now       func() time.Time
}

// EventPublisher receives change events after a mutation commits.
// Publish must not block.
type EventPublisher interface {
	Publish(ev notification.ChangeEvent)
}

func NewServices(deps *ServiceDeps) *Services {
	permissionService := NewPermissionService()
	taskService := NewTaskService(deps.Repos.TaskRepo, deps.Repos.MemberRepo, permissionService, deps.Publisher, deps.Now)
	return &Services{
		Task:       taskService,
		Member:     NewMemberService(deps.Repos.MemberRepo),
		Permission: permissionService,
		Activity:   NewActivityService(deps.Repos.ActivityRepo, taskService),
	}
}
