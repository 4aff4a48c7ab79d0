package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/workflow"
	"github.com/shopspring/decimal"
)

// TaskView is a task snapshot with its derived state.
type TaskView struct {
	Task               *repository.Task
	EffectiveStatus    types.TaskStatus
	BlockedBy          []string
	AllowedTransitions []types.TaskStatus
	Dependents         []string
}

// ListFilter narrows ListTasks. Zero value lists every non-cancelled task.
type ListFilter struct {
	Statuses         []types.TaskStatus // matched against the effective status
	AssigneeID       string
	Search           string
	IncludeCancelled bool
}

type BoardOptions struct {
	IncludeCancelled bool
}

// BoardColumn holds the tasks whose effective status is Status.
type BoardColumn struct {
	Status          types.TaskStatus
	Tasks           []*TaskView
	Count           int
	AverageProgress decimal.Decimal
}

type Board struct {
	WorkspaceID string
	Columns     []BoardColumn
	Total       int
	GeneratedAt time.Time
}

var boardColumns = []types.TaskStatus{
	types.StatusTodo,
	types.StatusInProgress,
	types.StatusInReview,
	types.StatusBlocked,
	types.StatusDone,
}

// buildView derives the view of t. The caller holds the session lock.
func buildView(sess *workspaceSession, t *repository.Task) *TaskView {
	blockers := sess.graph.Blockers(t.ID, sess.statusOf)
	allowed := workflow.AllowedTargets(t.Status)
	if len(blockers) > 0 {
		// Targets that need readiness are not offered while blocked.
		allowed = slices.DeleteFunc(allowed, func(to types.TaskStatus) bool {
			return workflow.Check(t.ID, t.Status, to, blockers) != nil
		})
	}
	return &TaskView{
		Task:               t.Clone(),
		EffectiveStatus:    workflow.Effective(t.Status, sess.graph.IsReady(t.ID, sess.statusOf)),
		BlockedBy:          blockers,
		AllowedTransitions: allowed,
		Dependents:         sess.graph.DependentsOf(t.ID),
	}
}

func compareTasks(a, b *repository.Task) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func (f ListFilter) matches(v *TaskView) bool {
	if v.Task.Status == types.StatusCancelled && !f.IncludeCancelled {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, v.EffectiveStatus) {
		return false
	}
	if f.AssigneeID != "" && !v.Task.HasAssignee(f.AssigneeID) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(v.Task.Title), q) &&
			!strings.Contains(strings.ToLower(v.Task.Description), q) {
			return false
		}
	}
	return true
}

// snapshot returns the views of every task in the workspace ordered by
// creation time.
func (s *taskService) snapshot(ctx context.Context, workspaceID, actorID string) ([]*TaskView, error) {
	if workspaceID == "" {
		return nil, invalidInput("workspace id is required")
	}
	if _, err := s.requireMember(ctx, workspaceID, actorID); err != nil {
		return nil, err
	}
	sess, unlock, err := s.sessions.acquire(ctx, workspaceID, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tasks := make([]*repository.Task, 0, len(sess.tasks))
	for _, t := range sess.tasks {
		tasks = append(tasks, t)
	}
	slices.SortFunc(tasks, compareTasks)

	views := make([]*TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = buildView(sess, t)
	}
	return views, nil
}

func (s *taskService) ListTasks(ctx context.Context, workspaceID, actorID string, filter ListFilter) ([]*TaskView, error) {
	for _, st := range filter.Statuses {
		if !types.IsValidTaskStatus(st) {
			return nil, invalidInput("unknown status %q", st)
		}
	}
	views, err := s.snapshot(ctx, workspaceID, actorID)
	if err != nil {
		return nil, err
	}
	out := make([]*TaskView, 0, len(views))
	for _, v := range views {
		if filter.matches(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *taskService) BoardView(ctx context.Context, workspaceID, actorID string, opts BoardOptions) (*Board, error) {
	views, err := s.snapshot(ctx, workspaceID, actorID)
	if err != nil {
		return nil, err
	}

	statuses := boardColumns
	if opts.IncludeCancelled {
		statuses = append(slices.Clone(boardColumns), types.StatusCancelled)
	}
	board := &Board{
		WorkspaceID: workspaceID,
		Columns:     make([]BoardColumn, len(statuses)),
		GeneratedAt: s.now(),
	}
	index := make(map[types.TaskStatus]int, len(statuses))
	for i, st := range statuses {
		board.Columns[i] = BoardColumn{Status: st, Tasks: []*TaskView{}, AverageProgress: decimal.Zero}
		index[st] = i
	}

	for _, v := range views {
		i, ok := index[v.EffectiveStatus]
		if !ok {
			continue
		}
		board.Columns[i].Tasks = append(board.Columns[i].Tasks, v)
	}
	for i := range board.Columns {
		col := &board.Columns[i]
		col.Count = len(col.Tasks)
		board.Total += col.Count
		if col.Count == 0 {
			continue
		}
		sum := decimal.Zero
		for _, v := range col.Tasks {
			sum = sum.Add(decimal.NewFromInt(int64(v.Task.Progress)))
		}
		col.AverageProgress = sum.Div(decimal.NewFromInt(int64(col.Count))).Round(1)
	}
	return board, nil
}
