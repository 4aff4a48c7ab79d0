package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// ============================================
// In-memory implementations (tests, local development)
// ============================================

type memoryTaskRepository struct {
	mu         sync.RWMutex
	workspaces map[string]map[string]*Task
	taskIndex  map[string]string
}

// NewMemoryTaskRepository returns a TaskRepository that keeps everything
// in process memory.
func NewMemoryTaskRepository() TaskRepository {
	return &memoryTaskRepository{
		workspaces: make(map[string]map[string]*Task),
		taskIndex:  make(map[string]string),
	}
}

func (r *memoryTaskRepository) LoadWorkspace(ctx context.Context, workspaceID string) ([]*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*Task, 0, len(r.workspaces[workspaceID]))
	for _, t := range r.workspaces[workspaceID] {
		tasks = append(tasks, t.Clone())
	}
	slices.SortFunc(tasks, func(a, b *Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return tasks, nil
}

func (r *memoryTaskRepository) SaveTasks(ctx context.Context, workspaceID string, tasks []*Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[workspaceID]
	if !ok {
		ws = make(map[string]*Task)
		r.workspaces[workspaceID] = ws
	}
	for _, t := range tasks {
		ws[t.ID] = t.Clone()
		r.taskIndex[t.ID] = workspaceID
	}
	return nil
}

func (r *memoryTaskRepository) LocateTask(ctx context.Context, taskID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.taskIndex[taskID], nil
}

// MemoryMemberRepository is a MemberRepository backed by a map. Put and
// Remove stand in for the external membership service.
type MemoryMemberRepository struct {
	mu      sync.RWMutex
	members map[string]map[string]*TeamMember
}

func NewMemoryMemberRepository() *MemoryMemberRepository {
	return &MemoryMemberRepository{members: make(map[string]map[string]*TeamMember)}
}

// Put inserts or replaces a membership.
func (r *MemoryMemberRepository) Put(m *TeamMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.members[m.WorkspaceID]
	if !ok {
		ws = make(map[string]*TeamMember)
		r.members[m.WorkspaceID] = ws
	}
	cp := *m
	ws[m.UserID] = &cp
}

// Remove deletes a membership if present.
func (r *MemoryMemberRepository) Remove(workspaceID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[workspaceID], userID)
}

func (r *MemoryMemberRepository) FindMember(ctx context.Context, workspaceID, userID string) (*TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[workspaceID][userID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryMemberRepository) ListMembers(ctx context.Context, workspaceID string) ([]*TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TeamMember, 0, len(r.members[workspaceID]))
	for _, m := range r.members[workspaceID] {
		cp := *m
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *TeamMember) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	return out, nil
}

type memoryTaskActivityRepository struct {
	mu     sync.RWMutex
	byTask map[string][]*TaskActivity
	seen   map[string]bool
}

// NewMemoryTaskActivityRepository keeps task history in process memory.
func NewMemoryTaskActivityRepository() TaskActivityRepository {
	return &memoryTaskActivityRepository{
		byTask: make(map[string][]*TaskActivity),
		seen:   make(map[string]bool),
	}
}

func (r *memoryTaskActivityRepository) Create(ctx context.Context, activities ...*TaskActivity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range activities {
		if r.seen[a.ID] {
			continue
		}
		r.seen[a.ID] = true
		cp := *a
		r.byTask[a.TaskID] = append(r.byTask[a.TaskID], &cp)
	}
	return nil
}

func (r *memoryTaskActivityRepository) FindByTaskID(ctx context.Context, taskID string, limit int) ([]*TaskActivity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.byTask[taskID]
	out := make([]*TaskActivity, 0, min(limit, len(rows)))
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *rows[i]
		out = append(out, &cp)
	}
	return out, nil
}
