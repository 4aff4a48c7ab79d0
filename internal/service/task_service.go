package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/depgraph"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/logging"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/notification"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/workflow"
	"github.com/google/uuid"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 10000
	maxCommentLength     = 5000
	maxBulkTasks         = 200
)

// TaskService is the task store: every command checks role authority,
// validates against the dependency graph and the status workflow, writes
// through the repository and then emits one change event per changed task.
type TaskService interface {
	CreateTask(ctx context.Context, workspaceID, actorID string, req *CreateTaskRequest) (*TaskView, error)
	GetTask(ctx context.Context, taskID, actorID string) (*TaskView, error)
	UpdateTask(ctx context.Context, taskID, actorID string, req *UpdateTaskRequest) (*TaskView, error)
	AddDependency(ctx context.Context, taskID, actorID, dependsOnID string) (*TaskView, error)
	RemoveDependency(ctx context.Context, taskID, actorID, dependsOnID string) (*TaskView, error)
	AssignTask(ctx context.Context, taskID, actorID string, memberIDs []string) (*TaskView, error)
	DeleteTask(ctx context.Context, taskID, actorID string) (*TaskView, error)
	BulkUpdateStatus(ctx context.Context, workspaceID, actorID string, taskIDs []string, status types.TaskStatus) ([]*TaskView, error)
	UnassignMember(ctx context.Context, workspaceID, actorID, memberID string) (int, error)

	AddComment(ctx context.Context, taskID, actorID, body string) (*repository.TaskComment, error)
	EditComment(ctx context.Context, taskID, commentID, actorID, body string) (*repository.TaskComment, error)
	SoftDeleteComment(ctx context.Context, taskID, commentID, actorID string) error
	AddAttachment(ctx context.Context, taskID, actorID, fileRef string) (*repository.TaskAttachment, error)
	RemoveAttachment(ctx context.Context, taskID, attachmentID, actorID string) error

	ListTasks(ctx context.Context, workspaceID, actorID string, filter ListFilter) ([]*TaskView, error)
	BoardView(ctx context.Context, workspaceID, actorID string, opts BoardOptions) (*Board, error)

	EvictIdle(maxIdle time.Duration) int
	LoadedWorkspaces() int
}

// CreateTaskRequest carries the fields of a new task.
type CreateTaskRequest struct {
	Title       string
	Description string
	DependsOn   []string
	AssigneeIDs []string
}

// UpdateTaskRequest is a patch; nil fields are left unchanged. DependsOn
// replaces the whole dependency set when present.
type UpdateTaskRequest struct {
	Title       *string
	Description *string
	Status      *types.TaskStatus
	Progress    *int
	DependsOn   *[]string
}

type taskService struct {
	repo      repository.TaskRepository
	members   repository.MemberRepository
	perms     PermissionService
	publisher EventPublisher
	now       func() time.Time
	sessions  *sessionRegistry
}

// NewTaskService creates the task store. now may be nil.
func NewTaskService(
	repo repository.TaskRepository,
	members repository.MemberRepository,
	perms PermissionService,
	publisher EventPublisher,
	now func() time.Time,
) TaskService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	if publisher == nil {
		publisher = discardPublisher{}
	}
	return &taskService{
		repo:      repo,
		members:   members,
		perms:     perms,
		publisher: publisher,
		now:       now,
		sessions:  newSessionRegistry(repo, now),
	}
}

type discardPublisher struct{}

func (discardPublisher) Publish(notification.ChangeEvent) {}

// ============================================
// Actor and permission helpers
// ============================================

// requireMember returns the actor's active membership in the workspace.
func (s *taskService) requireMember(ctx context.Context, workspaceID, actorID string) (*repository.TeamMember, error) {
	if actorID == "" {
		return nil, invalidInput("actor is required")
	}
	m, err := s.members.FindMember(ctx, workspaceID, actorID)
	if err != nil {
		return nil, &PersistenceError{Op: "lookup membership", Err: err}
	}
	if m == nil || m.Status != types.MemberActive {
		return nil, s.deny(actorID, "access workspace "+workspaceID, "")
	}
	if !types.IsValidRole(m.Role) {
		logging.For("store").WithFields(map[string]interface{}{
			"workspaceId": workspaceID,
			"actorId":     actorID,
			"role":        m.Role,
		}).Error("Membership carries an unknown role")
		return nil, s.deny(actorID, "access workspace "+workspaceID, "")
	}
	return m, nil
}

func (s *taskService) deny(actorID, action, taskID string) error {
	logging.For("store").WithFields(map[string]interface{}{
		"actorId": actorID,
		"action":  action,
		"taskId":  taskID,
	}).Warn("Permission denied")
	return &ForbiddenError{ActorID: actorID, Action: action, TaskID: taskID}
}

func (s *taskService) canEdit(m *repository.TeamMember, t *repository.Task) bool {
	return s.perms.Can(m.Role, types.ActionEditTask) || t.HasAssignee(m.UserID)
}

// locateTask resolves the workspace of a task and the actor's membership.
func (s *taskService) locateTask(ctx context.Context, taskID, actorID string) (string, *repository.TeamMember, error) {
	if taskID == "" {
		return "", nil, invalidInput("task id is required")
	}
	workspaceID, err := s.sessions.locate(ctx, taskID)
	if err != nil {
		return "", nil, err
	}
	if workspaceID == "" {
		return "", nil, &NotFoundError{Kind: "task", ID: taskID}
	}
	member, err := s.requireMember(ctx, workspaceID, actorID)
	if err != nil {
		return "", nil, err
	}
	return workspaceID, member, nil
}

// lookupMembers fetches the memberships of ids. Missing members map to nil.
func (s *taskService) lookupMembers(ctx context.Context, workspaceID string, ids []string) (map[string]*repository.TeamMember, error) {
	out := make(map[string]*repository.TeamMember, len(ids))
	for _, id := range ids {
		m, err := s.members.FindMember(ctx, workspaceID, id)
		if err != nil {
			return nil, &PersistenceError{Op: "lookup membership", Err: err}
		}
		out[id] = m
	}
	return out, nil
}

// checkAssignable verifies every id names a member who can take work.
func checkAssignable(members map[string]*repository.TeamMember, ids []string) error {
	for _, id := range ids {
		m := members[id]
		if m == nil {
			return &NotFoundError{Kind: "member", ID: id}
		}
		if m.Status == types.MemberInactive {
			return invalidInput("member %s is inactive", id)
		}
	}
	return nil
}

// ============================================
// Mutation plumbing
// ============================================

// mutation stages edits for one command. Graph changes are applied in
// place and recorded so they can be undone if a later step fails.
type mutation struct {
	session *workspaceSession
	member  *repository.TeamMember
	undo    []func()
}

func (m *mutation) addEdge(from, to string) error {
	g := m.session.graph
	if g.HasEdge(from, to) {
		return nil
	}
	if err := g.AddEdge(from, to); err != nil {
		if errors.Is(err, depgraph.ErrUnknownNode) {
			return &NotFoundError{Kind: "task", ID: to}
		}
		return err
	}
	m.undo = append(m.undo, func() { g.RemoveEdge(from, to) })
	return nil
}

func (m *mutation) removeEdge(from, to string) {
	g := m.session.graph
	if !g.HasEdge(from, to) {
		return
	}
	g.RemoveEdge(from, to)
	// Undo runs in reverse order, so the graph is back to a state where
	// this edge was valid.
	m.undo = append(m.undo, func() { _ = g.AddEdge(from, to) })
}

func (m *mutation) rollback() {
	for i := len(m.undo) - 1; i >= 0; i-- {
		m.undo[i]()
	}
	m.undo = nil
}

// setDependsOn replaces the dependency set of staged.
func (m *mutation) setDependsOn(staged *repository.Task, ids []string) error {
	next, err := normalizeIDs(ids, "dependency")
	if err != nil {
		return err
	}
	for _, old := range staged.DependsOn {
		if !slices.Contains(next, old) {
			m.removeEdge(staged.ID, old)
		}
	}
	for _, dep := range next {
		if err := m.addEdge(staged.ID, dep); err != nil {
			return err
		}
	}
	slices.Sort(next)
	staged.DependsOn = next
	return nil
}

// changeStatus moves staged to status, using statusOf to judge readiness.
func (m *mutation) changeStatus(perms PermissionService, staged *repository.Task, to types.TaskStatus, statusOf depgraph.StatusFunc) error {
	if !types.IsValidTaskStatus(to) {
		return invalidInput("unknown status %q", to)
	}
	if to == types.StatusCancelled && !perms.Can(m.member.Role, types.ActionDeleteTask) {
		return &ForbiddenError{ActorID: m.member.UserID, Action: string(types.ActionDeleteTask), TaskID: staged.ID}
	}
	blockers := m.session.graph.Blockers(staged.ID, statusOf)
	if err := workflow.Check(staged.ID, staged.Status, to, blockers); err != nil {
		return err
	}
	staged.Status = to
	staged.Progress = workflow.ProgressAfter(to, staged.Progress)
	if to == types.StatusCancelled {
		// A cancelled task waits on nothing. Tasks that depend on it keep
		// their edge and treat it as settled.
		for _, dep := range staged.DependsOn {
			m.removeEdge(staged.ID, dep)
		}
		staged.DependsOn = nil
	}
	return nil
}

// commit persists the staged tasks and swaps them into the session. On
// failure the graph is rolled back and nothing in memory changes.
func (s *taskService) commit(ctx context.Context, m *mutation, op string, staged []*repository.Task) error {
	if err := s.repo.SaveTasks(ctx, m.session.id, staged); err != nil {
		m.rollback()
		logging.For("store").WithError(err).WithFields(map[string]interface{}{
			"workspaceId": m.session.id,
			"op":          op,
		}).Error("Persisting tasks failed, changes rolled back")
		return &PersistenceError{Op: op, Err: err}
	}
	for _, t := range staged {
		m.session.tasks[t.ID] = t
	}
	m.undo = nil
	return nil
}

func (s *taskService) event(kind notification.EventKind, actorID string, before, after *repository.Task) notification.ChangeEvent {
	ev := notification.ChangeEvent{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Kind:      kind,
		Before:    before.Clone(),
		After:     after.Clone(),
		Timestamp: s.now(),
	}
	if after != nil {
		ev.WorkspaceID = after.WorkspaceID
		ev.TaskID = after.ID
	}
	return ev
}

func (s *taskService) publish(events ...notification.ChangeEvent) {
	for _, ev := range events {
		s.publisher.Publish(ev)
	}
}

// editFunc stages changes on a copy of the task. Returning noop=true
// skips persistence and the change event.
type editFunc func(m *mutation, staged *repository.Task) (kind notification.EventKind, noop bool, err error)

// edit runs fn against a single task under the workspace write lock.
func (s *taskService) edit(ctx context.Context, workspaceID string, member *repository.TeamMember, taskID, op string, fn editFunc) (*TaskView, error) {
	sess, unlock, err := s.sessions.acquire(ctx, workspaceID, true)
	if err != nil {
		return nil, err
	}

	var ev notification.ChangeEvent
	view, publish, err := func() (*TaskView, bool, error) {
		defer unlock()
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		current, ok := sess.tasks[taskID]
		if !ok {
			return nil, false, &NotFoundError{Kind: "task", ID: taskID}
		}

		m := &mutation{session: sess, member: member}
		staged := current.Clone()
		kind, noop, err := fn(m, staged)
		if err != nil {
			m.rollback()
			var forbidden *ForbiddenError
			if errors.As(err, &forbidden) {
				s.deny(forbidden.ActorID, forbidden.Action, forbidden.TaskID)
			}
			return nil, false, err
		}
		if noop {
			m.rollback()
			return buildView(sess, current), false, nil
		}

		staged.UpdatedAt = s.now()
		if err := s.commit(ctx, m, op, []*repository.Task{staged}); err != nil {
			return nil, false, err
		}
		ev = s.event(kind, member.UserID, current, staged)
		return buildView(sess, staged), true, nil
	}()
	if err != nil {
		return nil, err
	}
	if publish {
		s.publish(ev)
	}
	return view, nil
}

// ============================================
// TASK CRUD
// ============================================

func (s *taskService) CreateTask(ctx context.Context, workspaceID, actorID string, req *CreateTaskRequest) (*TaskView, error) {
	if workspaceID == "" {
		return nil, invalidInput("workspace id is required")
	}
	if req == nil {
		return nil, invalidInput("request body is required")
	}
	member, err := s.requireMember(ctx, workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	if !s.perms.Can(member.Role, types.ActionCreateTask) {
		return nil, s.deny(actorID, string(types.ActionCreateTask), "")
	}

	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	if len(req.Description) > maxDescriptionLength {
		return nil, invalidInput("description exceeds %d characters", maxDescriptionLength)
	}
	assignees, err := normalizeIDs(req.AssigneeIDs, "assignee")
	if err != nil {
		return nil, err
	}
	if len(assignees) > 0 {
		if !s.perms.Can(member.Role, types.ActionAssignTask) {
			return nil, s.deny(actorID, string(types.ActionAssignTask), "")
		}
		found, err := s.lookupMembers(ctx, workspaceID, assignees)
		if err != nil {
			return nil, err
		}
		if err := checkAssignable(found, assignees); err != nil {
			return nil, err
		}
	}

	sess, unlock, err := s.sessions.acquire(ctx, workspaceID, true)
	if err != nil {
		return nil, err
	}

	var ev notification.ChangeEvent
	view, err := func() (*TaskView, error) {
		defer unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		now := s.now()
		task := &repository.Task{
			ID:          uuid.New().String(),
			WorkspaceID: workspaceID,
			Title:       title,
			Description: req.Description,
			Status:      types.StatusTodo,
			AssigneeIDs: assignees,
			Progress:    0,
			CreatedBy:   actorID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		m := &mutation{session: sess, member: member}
		sess.graph.AddNode(task.ID)
		m.undo = append(m.undo, func() { sess.graph.RemoveTask(task.ID) })

		if err := m.setDependsOn(task, req.DependsOn); err != nil {
			m.rollback()
			return nil, err
		}
		if err := s.commit(ctx, m, "create task", []*repository.Task{task}); err != nil {
			return nil, err
		}
		s.sessions.remember(task.ID, workspaceID)
		ev = s.event(notification.KindTaskCreated, actorID, nil, task)
		return buildView(sess, task), nil
	}()
	if err != nil {
		return nil, err
	}
	s.publish(ev)
	return view, nil
}

func (s *taskService) GetTask(ctx context.Context, taskID, actorID string) (*TaskView, error) {
	workspaceID, _, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	sess, unlock, err := s.sessions.acquire(ctx, workspaceID, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, ok := sess.tasks[taskID]
	if !ok {
		return nil, &NotFoundError{Kind: "task", ID: taskID}
	}
	return buildView(sess, t), nil
}

func (s *taskService) UpdateTask(ctx context.Context, taskID, actorID string, req *UpdateTaskRequest) (*TaskView, error) {
	if req == nil {
		req = &UpdateTaskRequest{}
	}
	workspaceID, member, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}

	return s.edit(ctx, workspaceID, member, taskID, "update task", func(m *mutation, staged *repository.Task) (notification.EventKind, bool, error) {
		if !s.canEdit(member, staged) {
			return "", false, &ForbiddenError{ActorID: actorID, Action: string(types.ActionEditTask), TaskID: taskID}
		}

		if req.Title != nil {
			title, err := validateTitle(*req.Title)
			if err != nil {
				return "", false, err
			}
			staged.Title = title
		}
		if req.Description != nil {
			if len(*req.Description) > maxDescriptionLength {
				return "", false, invalidInput("description exceeds %d characters", maxDescriptionLength)
			}
			staged.Description = *req.Description
		}
		if req.DependsOn != nil {
			if staged.Status.IsTerminal() {
				return "", false, invalidInput("dependencies of a %s task cannot change", staged.Status)
			}
			if err := m.setDependsOn(staged, *req.DependsOn); err != nil {
				return "", false, err
			}
		}
		if req.Status != nil {
			if err := m.changeStatus(s.perms, staged, *req.Status, m.session.statusOf); err != nil {
				return "", false, err
			}
		}
		if req.Progress != nil {
			if err := workflow.CheckProgress(staged.Status, staged.Progress, *req.Progress); err != nil {
				return "", false, errors.Join(ErrInvalidInput, err)
			}
			staged.Progress = *req.Progress
		}

		kind := notification.KindTaskUpdated
		if staged.Status == types.StatusCancelled && req.Status != nil {
			kind = notification.KindTaskCancelled
		}
		return kind, false, nil
	})
}

func (s *taskService) AddDependency(ctx context.Context, taskID, actorID, dependsOnID string) (*TaskView, error) {
	return s.patchDependencies(ctx, taskID, actorID, func(deps []string) []string {
		return append(deps, dependsOnID)
	})
}

func (s *taskService) RemoveDependency(ctx context.Context, taskID, actorID, dependsOnID string) (*TaskView, error) {
	return s.patchDependencies(ctx, taskID, actorID, func(deps []string) []string {
		return slices.DeleteFunc(deps, func(id string) bool { return id == dependsOnID })
	})
}

// patchDependencies derives the new dependency set from the stored one
// under the write lock so concurrent single-edge edits do not clobber
// each other.
func (s *taskService) patchDependencies(ctx context.Context, taskID, actorID string, change func([]string) []string) (*TaskView, error) {
	workspaceID, member, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	return s.edit(ctx, workspaceID, member, taskID, "update dependencies", func(m *mutation, staged *repository.Task) (notification.EventKind, bool, error) {
		if !s.canEdit(member, staged) {
			return "", false, &ForbiddenError{ActorID: actorID, Action: string(types.ActionEditTask), TaskID: taskID}
		}
		if staged.Status.IsTerminal() {
			return "", false, invalidInput("dependencies of a %s task cannot change", staged.Status)
		}
		next := change(slices.Clone(staged.DependsOn))
		if err := m.setDependsOn(staged, next); err != nil {
			return "", false, err
		}
		return notification.KindTaskUpdated, false, nil
	})
}

func (s *taskService) AssignTask(ctx context.Context, taskID, actorID string, memberIDs []string) (*TaskView, error) {
	next, err := normalizeIDs(memberIDs, "assignee")
	if err != nil {
		return nil, err
	}
	workspaceID, member, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}

	// Memberships are fetched before the workspace lock is taken; only the
	// ids being added are validated once the current set is known.
	found, err := s.lookupMembers(ctx, workspaceID, next)
	if err != nil {
		return nil, err
	}

	return s.edit(ctx, workspaceID, member, taskID, "assign task", func(m *mutation, staged *repository.Task) (notification.EventKind, bool, error) {
		if !s.canAssign(member, staged.AssigneeIDs, next) {
			return "", false, &ForbiddenError{ActorID: actorID, Action: string(types.ActionAssignTask), TaskID: taskID}
		}
		var added []string
		for _, id := range next {
			if !staged.HasAssignee(id) {
				added = append(added, id)
			}
		}
		if err := checkAssignable(found, added); err != nil {
			return "", false, err
		}
		staged.AssigneeIDs = next
		return notification.KindTaskAssigned, false, nil
	})
}

// canAssign applies the reassignment rules. A member removing only
// themself never needs a role permission.
func (s *taskService) canAssign(member *repository.TeamMember, current, next []string) bool {
	actor := member.UserID
	if slices.Contains(current, actor) && !slices.Contains(next, actor) {
		selfOnly := len(next) == len(current)-1
		for _, id := range next {
			if !slices.Contains(current, id) {
				selfOnly = false
				break
			}
		}
		if selfOnly {
			return true
		}
	}

	if !s.perms.Can(member.Role, types.ActionAssignTask) {
		return false
	}
	for _, id := range symmetricDifference(current, next) {
		if id != actor && !s.perms.Can(member.Role, types.ActionChangeOthersAssignment) {
			return false
		}
	}
	return true
}

func (s *taskService) DeleteTask(ctx context.Context, taskID, actorID string) (*TaskView, error) {
	workspaceID, member, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}
	if !s.perms.Can(member.Role, types.ActionDeleteTask) {
		return nil, s.deny(actorID, string(types.ActionDeleteTask), taskID)
	}
	return s.edit(ctx, workspaceID, member, taskID, "cancel task", func(m *mutation, staged *repository.Task) (notification.EventKind, bool, error) {
		if err := m.changeStatus(s.perms, staged, types.StatusCancelled, m.session.statusOf); err != nil {
			return "", false, err
		}
		return notification.KindTaskCancelled, false, nil
	})
}

// BulkUpdateStatus moves several tasks in one atomic step. Each task is
// checked against the state left by the ones before it in the request.
func (s *taskService) BulkUpdateStatus(ctx context.Context, workspaceID, actorID string, taskIDs []string, status types.TaskStatus) ([]*TaskView, error) {
	ids, err := normalizeIDs(taskIDs, "task")
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, invalidInput("no tasks given")
	}
	if len(ids) > maxBulkTasks {
		return nil, invalidInput("at most %d tasks per bulk update", maxBulkTasks)
	}
	member, err := s.requireMember(ctx, workspaceID, actorID)
	if err != nil {
		return nil, err
	}

	sess, unlock, err := s.sessions.acquire(ctx, workspaceID, true)
	if err != nil {
		return nil, err
	}

	var events []notification.ChangeEvent
	views, err := func() ([]*TaskView, error) {
		defer unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m := &mutation{session: sess, member: member}
		staged := make(map[string]*repository.Task, len(ids))
		statusOf := func(id string) (types.TaskStatus, bool) {
			if t, ok := staged[id]; ok {
				return t.Status, true
			}
			return sess.statusOf(id)
		}

		ordered := make([]*repository.Task, 0, len(ids))
		now := s.now()
		for _, id := range ids {
			current, ok := sess.tasks[id]
			if !ok {
				m.rollback()
				return nil, &NotFoundError{Kind: "task", ID: id}
			}
			if !s.canEdit(member, current) {
				m.rollback()
				return nil, s.deny(actorID, string(types.ActionEditTask), id)
			}
			t := current.Clone()
			if err := m.changeStatus(s.perms, t, status, statusOf); err != nil {
				m.rollback()
				var forbidden *ForbiddenError
				if errors.As(err, &forbidden) {
					s.deny(forbidden.ActorID, forbidden.Action, forbidden.TaskID)
				}
				return nil, err
			}
			t.UpdatedAt = now
			staged[id] = t
			ordered = append(ordered, t)
		}

		before := make(map[string]*repository.Task, len(ordered))
		for _, t := range ordered {
			before[t.ID] = sess.tasks[t.ID]
		}
		if err := s.commit(ctx, m, "bulk update status", ordered); err != nil {
			return nil, err
		}

		kind := notification.KindTaskUpdated
		if status == types.StatusCancelled {
			kind = notification.KindTaskCancelled
		}
		out := make([]*TaskView, len(ordered))
		for i, t := range ordered {
			events = append(events, s.event(kind, actorID, before[t.ID], t))
			out[i] = buildView(sess, t)
		}
		return out, nil
	}()
	if err != nil {
		return nil, err
	}
	s.publish(events...)
	return views, nil
}

// UnassignMember removes memberID from every task of the workspace. It is
// the cascade run when a membership is removed.
func (s *taskService) UnassignMember(ctx context.Context, workspaceID, actorID, memberID string) (int, error) {
	if memberID == "" {
		return 0, invalidInput("member id is required")
	}
	member, err := s.requireMember(ctx, workspaceID, actorID)
	if err != nil {
		return 0, err
	}
	if !s.perms.Can(member.Role, types.ActionManageMembers) {
		return 0, s.deny(actorID, string(types.ActionManageMembers), "")
	}

	sess, unlock, err := s.sessions.acquire(ctx, workspaceID, true)
	if err != nil {
		return 0, err
	}

	var events []notification.ChangeEvent
	count, err := func() (int, error) {
		defer unlock()
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		now := s.now()
		var changed []*repository.Task
		for _, t := range sess.tasks {
			if !t.HasAssignee(memberID) {
				continue
			}
			c := t.Clone()
			c.AssigneeIDs = slices.DeleteFunc(c.AssigneeIDs, func(id string) bool { return id == memberID })
			c.UpdatedAt = now
			changed = append(changed, c)
		}
		if len(changed) == 0 {
			return 0, nil
		}
		slices.SortFunc(changed, compareTasks)

		before := make(map[string]*repository.Task, len(changed))
		for _, t := range changed {
			before[t.ID] = sess.tasks[t.ID]
		}
		m := &mutation{session: sess, member: member}
		if err := s.commit(ctx, m, "unassign member", changed); err != nil {
			return 0, err
		}
		for _, t := range changed {
			events = append(events, s.event(notification.KindMemberUnassigned, actorID, before[t.ID], t))
		}
		return len(changed), nil
	}()
	if err != nil {
		return 0, err
	}
	s.publish(events...)
	return count, nil
}

// ============================================
// COMMENTS
// ============================================

func (s *taskService) AddComment(ctx context.Context, taskID, actorID, body string) (*repository.TaskComment, error) {
	body, err := validateCommentBody(body)
	if err != nil {
		return nil, err
	}
	workspaceID, member, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}

	var added *repository.TaskComment
	_, err = s.edit(ctx, workspaceID, member, taskID, "add comment", func(m *mutation, staged *repository.Task) (notification.EventKind, bool, error) {
		if !s.perms.IsElevated(member.Role) && !staged.HasAssignee(actorID) {
			return "", false, &ForbiddenError{ActorID: actorID, Action: "comment", TaskID: taskID}
		}
		c := &repository.TaskComment{
			ID:        uuid.New().String(),
			TaskID:    taskID,
			AuthorID:  actorID,
			Body:      body,
			CreatedAt: s.now(),
		}
		staged.Comments = append(staged.Comments, c)
		cp := *c
		added = &cp
		return notification.KindCommentAdded, false, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (s *taskService) EditComment(ctx context.Context, taskID, commentID, actorID, body string) (*repository.TaskComment, error) {
	body, err := validateCommentBody(body)
	if err != nil {
		return nil, err
	}
	workspaceID, member, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}

	var edited *repository.TaskComment
	_, err = s.edit(ctx, workspaceID, member, taskID, "edit comment", func(m *mutation, staged *repository.Task) (notification.EventKind, bool, error) {
		c := staged.FindComment(commentID)
		if c == nil || c.Deleted {
			return "", false, &NotFoundError{Kind: "comment", ID: commentID}
		}
		if c.AuthorID != actorID {
			return "", false, &ForbiddenError{ActorID: actorID, Action: "edit comment", TaskID: taskID}
		}
		now := s.now()
		c.Body = body
		c.EditedAt = &now
		cp := *c
		edited = &cp
		return notification.KindCommentEdited, false, nil
	})
	if err != nil {
		return nil, err
	}
	return edited, nil
}

func (s *taskService) SoftDeleteComment(ctx context.Context, taskID, commentID, actorID string) error {
	workspaceID, member, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return err
	}
	_, err = s.edit(ctx, workspaceID, member, taskID, "delete comment", func(m *mutation, staged *repository.Task) (notification.EventKind, bool, error) {
		c := staged.FindComment(commentID)
		if c == nil {
			return "", false, &NotFoundError{Kind: "comment", ID: commentID}
		}
		if c.AuthorID != actorID && !s.perms.IsElevated(member.Role) {
			return "", false, &ForbiddenError{ActorID: actorID, Action: "delete comment", TaskID: taskID}
		}
		if c.Deleted {
			return "", true, nil
		}
		now := s.now()
		c.Deleted = true
		c.DeletedAt = &now
		c.DeletedBy = &actorID
		return notification.KindCommentDeleted, false, nil
	})
	return err
}

// ============================================
// ATTACHMENTS
// ============================================

func (s *taskService) AddAttachment(ctx context.Context, taskID, actorID, fileRef string) (*repository.TaskAttachment, error) {
	fileRef = strings.TrimSpace(fileRef)
	if fileRef == "" {
		return nil, invalidInput("file reference is required")
	}
	workspaceID, member, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return nil, err
	}

	var added *repository.TaskAttachment
	_, err = s.edit(ctx, workspaceID, member, taskID, "add attachment", func(m *mutation, staged *repository.Task) (notification.EventKind, bool, error) {
		if !s.perms.IsElevated(member.Role) && !staged.HasAssignee(actorID) {
			return "", false, &ForbiddenError{ActorID: actorID, Action: "attach file", TaskID: taskID}
		}
		a := &repository.TaskAttachment{
			ID:         uuid.New().String(),
			TaskID:     taskID,
			FileRef:    fileRef,
			UploadedBy: actorID,
			UploadedAt: s.now(),
		}
		staged.Attachments = append(staged.Attachments, a)
		cp := *a
		added = &cp
		return notification.KindAttachmentAdded, false, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (s *taskService) RemoveAttachment(ctx context.Context, taskID, attachmentID, actorID string) error {
	workspaceID, member, err := s.locateTask(ctx, taskID, actorID)
	if err != nil {
		return err
	}
	_, err = s.edit(ctx, workspaceID, member, taskID, "remove attachment", func(m *mutation, staged *repository.Task) (notification.EventKind, bool, error) {
		a := staged.FindAttachment(attachmentID)
		if a == nil {
			return "", false, &NotFoundError{Kind: "attachment", ID: attachmentID}
		}
		allowed := s.perms.IsElevated(member.Role) || staged.HasAssignee(actorID) || a.UploadedBy == actorID
		if !allowed {
			return "", false, &ForbiddenError{ActorID: actorID, Action: "remove attachment", TaskID: taskID}
		}
		if a.Removed {
			return "", true, nil
		}
		now := s.now()
		a.Removed = true
		a.RemovedAt = &now
		a.RemovedBy = &actorID
		return notification.KindAttachmentRemoved, false, nil
	})
	return err
}

// ============================================
// SESSIONS
// ============================================

func (s *taskService) EvictIdle(maxIdle time.Duration) int {
	return s.sessions.evictIdle(maxIdle)
}

func (s *taskService) LoadedWorkspaces() int {
	return s.sessions.size()
}

// ============================================
// Validation helpers
// ============================================

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalidInput("title is required")
	}
	if len(title) > maxTitleLength {
		return "", invalidInput("title exceeds %d characters", maxTitleLength)
	}
	return title, nil
}

func validateCommentBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", invalidInput("comment body is required")
	}
	if len(body) > maxCommentLength {
		return "", invalidInput("comment exceeds %d characters", maxCommentLength)
	}
	return body, nil
}

// normalizeIDs trims, rejects blanks and drops duplicates, keeping order.
func normalizeIDs(ids []string, what string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, invalidInput("empty %s id", what)
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

func symmetricDifference(a, b []string) []string {
	var out []string
	for _, id := range a {
		if !slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !slices.Contains(a, id) {
			out = append(out, id)
		}
	}
	return out
}
