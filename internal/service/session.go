package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/depgraph"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/logging"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
	"golang.org/x/sync/singleflight"
)

// workspaceSession is the in-memory state of one workspace. Commands hold
// mu for writing for their whole duration; reads hold it for reading.
type workspaceSession struct {
	id       string
	mu       sync.RWMutex
	tasks    map[string]*repository.Task
	graph    *depgraph.Graph
	lastUsed atomic.Int64
	evicted  bool // guarded by mu
}

func (s *workspaceSession) statusOf(taskID string) (types.TaskStatus, bool) {
	t, ok := s.tasks[taskID]
	if !ok {
		return "", false
	}
	return t.Status, true
}

// sessionRegistry loads workspace sessions on demand and keeps the task
// to workspace index.
type sessionRegistry struct {
	repo repository.TaskRepository
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*workspaceSession
	group    singleflight.Group

	locations sync.Map // task id -> workspace id
}

func newSessionRegistry(repo repository.TaskRepository, now func() time.Time) *sessionRegistry {
	return &sessionRegistry{
		repo:     repo,
		now:      now,
		sessions: make(map[string]*workspaceSession),
	}
}

func (r *sessionRegistry) lookup(workspaceID string) *workspaceSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[workspaceID]
}

// get returns the session for workspaceID, loading it at most once even
// under concurrent callers.
func (r *sessionRegistry) get(ctx context.Context, workspaceID string) (*workspaceSession, error) {
	if s := r.lookup(workspaceID); s != nil {
		return s, nil
	}

	v, err, _ := r.group.Do(workspaceID, func() (interface{}, error) {
		if s := r.lookup(workspaceID); s != nil {
			return s, nil
		}
		s, err := r.load(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[workspaceID] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*workspaceSession), nil
}

func (r *sessionRegistry) load(ctx context.Context, workspaceID string) (*workspaceSession, error) {
	tasks, err := r.repo.LoadWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, &PersistenceError{Op: "load workspace " + workspaceID, Err: err}
	}

	s := &workspaceSession{
		id:    workspaceID,
		tasks: make(map[string]*repository.Task, len(tasks)),
		graph: depgraph.New(),
	}
	for _, t := range tasks {
		s.tasks[t.ID] = t
		s.graph.AddNode(t.ID)
		r.locations.Store(t.ID, workspaceID)
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if err := s.graph.AddEdge(t.ID, dep); err != nil {
				return nil, &PersistenceError{
					Op:  "load workspace " + workspaceID,
					Err: fmt.Errorf("stored dependency %s -> %s: %w", t.ID, dep, err),
				}
			}
		}
	}
	s.lastUsed.Store(r.now().UnixNano())

	logging.For("store").WithFields(map[string]interface{}{
		"workspaceId":  workspaceID,
		"tasks":        s.graph.Len(),
		"dependencies": len(s.graph.Edges()),
	}).Debug("Workspace session loaded")
	return s, nil
}

// acquire returns the session locked for writing (write=true) or reading.
// A session evicted between lookup and lock is reloaded.
func (r *sessionRegistry) acquire(ctx context.Context, workspaceID string, write bool) (*workspaceSession, func(), error) {
	for {
		s, err := r.get(ctx, workspaceID)
		if err != nil {
			return nil, nil, err
		}
		if write {
			s.mu.Lock()
		} else {
			s.mu.RLock()
		}
		if s.evicted {
			if write {
				s.mu.Unlock()
			} else {
				s.mu.RUnlock()
			}
			continue
		}
		s.lastUsed.Store(r.now().UnixNano())
		if write {
			return s, s.mu.Unlock, nil
		}
		return s, s.mu.RUnlock, nil
	}
}

// locate resolves the workspace that owns taskID, or "" when unknown.
func (r *sessionRegistry) locate(ctx context.Context, taskID string) (string, error) {
	if v, ok := r.locations.Load(taskID); ok {
		return v.(string), nil
	}
	workspaceID, err := r.repo.LocateTask(ctx, taskID)
	if err != nil {
		return "", &PersistenceError{Op: "locate task " + taskID, Err: err}
	}
	if workspaceID != "" {
		r.locations.Store(taskID, workspaceID)
	}
	return workspaceID, nil
}

func (r *sessionRegistry) remember(taskID, workspaceID string) {
	r.locations.Store(taskID, workspaceID)
}

// evictIdle drops sessions untouched for longer than maxIdle. Sessions
// that are locked at the time are skipped.
func (r *sessionRegistry) evictIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if s.lastUsed.Load() > cutoff {
			continue
		}
		if !s.mu.TryLock() {
			continue
		}
		s.evicted = true
		for taskID := range s.tasks {
			r.locations.Delete(taskID)
		}
		delete(r.sessions, id)
		s.mu.Unlock()
		evicted++
	}
	return evicted
}

func (r *sessionRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
