// Package depgraph maintains the "depends on" relation between tasks of a
// single workspace and keeps it acyclic.
//
// A Graph is not safe for concurrent use. Callers serialize access with
// the owning workspace's lock.
package depgraph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
)

// ErrUnknownNode is returned when an edge names a task that is not in
// the graph.
var ErrUnknownNode = errors.New("task is not part of the dependency graph")

// CycleError reports that from -> to would close a cycle.
type CycleError struct {
	From string
	To   string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency %s -> %s would create a cycle", e.From, e.To)
}

// SelfDependencyError reports an attempt to make a task depend on itself.
type SelfDependencyError struct {
	TaskID string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("task %s cannot depend on itself", e.TaskID)
}

// StatusFunc looks up the stored status of a task. The boolean is false
// when the task is unknown.
type StatusFunc func(taskID string) (types.TaskStatus, bool)

// Edge is a single "From depends on To" relation.
type Edge struct {
	From string
	To   string
}

// Graph holds forward (dependency) and reverse (dependent) adjacency.
type Graph struct {
	deps       map[string]map[string]struct{}
	dependents map[string]map[string]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		deps:       make(map[string]map[string]struct{}),
		dependents: make(map[string]map[string]struct{}),
	}
}

// AddNode registers a task. Adding an existing node is a no-op.
func (g *Graph) AddNode(taskID string) {
	if _, ok := g.deps[taskID]; !ok {
		g.deps[taskID] = make(map[string]struct{})
	}
	if _, ok := g.dependents[taskID]; !ok {
		g.dependents[taskID] = make(map[string]struct{})
	}
}

// HasNode reports whether the task is in the graph.
func (g *Graph) HasNode(taskID string) bool {
	_, ok := g.deps[taskID]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.deps)
}

// HasEdge reports whether from already depends on to.
func (g *Graph) HasEdge(from, to string) bool {
	_, ok := g.deps[from][to]
	return ok
}

// AddEdge records that from depends on to. The edge is rejected if it
// references itself or if to can already reach from, since inserting it
// would then close a cycle. Adding an existing edge is a no-op.
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return &SelfDependencyError{TaskID: from}
	}
	if !g.HasNode(from) {
		return fmt.Errorf("%w: %s", ErrUnknownNode, from)
	}
	if !g.HasNode(to) {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	if g.HasEdge(from, to) {
		return nil
	}
	if g.WouldCycle(from, to) {
		return &CycleError{From: from, To: to}
	}
	g.deps[from][to] = struct{}{}
	g.dependents[to][from] = struct{}{}
	return nil
}

// RemoveEdge deletes from -> to. Removing a missing edge is a no-op.
func (g *Graph) RemoveEdge(from, to string) {
	if set, ok := g.deps[from]; ok {
		delete(set, to)
	}
	if set, ok := g.dependents[to]; ok {
		delete(set, from)
	}
}

// RemoveTask deletes the node and every edge touching it.
func (g *Graph) RemoveTask(taskID string) {
	for to := range g.deps[taskID] {
		delete(g.dependents[to], taskID)
	}
	for from := range g.dependents[taskID] {
		delete(g.deps[from], taskID)
	}
	delete(g.deps, taskID)
	delete(g.dependents, taskID)
}

// WouldCycle reports whether adding from -> to would be rejected because
// of a cycle or a self reference.
func (g *Graph) WouldCycle(from, to string) bool {
	if from == to {
		return true
	}
	return g.canReach(to, from)
}

// DependenciesOf returns the direct dependencies of taskID, sorted.
func (g *Graph) DependenciesOf(taskID string) []string {
	return sortedKeys(g.deps[taskID])
}

// DependentsOf returns the tasks that directly depend on taskID, sorted.
func (g *Graph) DependentsOf(taskID string) []string {
	return sortedKeys(g.dependents[taskID])
}

// IsReady reports whether every dependency of taskID is DONE or
// CANCELLED. A dependency that statusOf cannot resolve counts as
// unfinished.
func (g *Graph) IsReady(taskID string, statusOf StatusFunc) bool {
	for to := range g.deps[taskID] {
		status, ok := statusOf(to)
		if !ok || !status.IsSettled() {
			return false
		}
	}
	return true
}

// Blockers returns the sorted dependencies of taskID that are not yet
// settled.
func (g *Graph) Blockers(taskID string, statusOf StatusFunc) []string {
	var blockers []string
	for to := range g.deps[taskID] {
		status, ok := statusOf(to)
		if !ok || !status.IsSettled() {
			blockers = append(blockers, to)
		}
	}
	slices.Sort(blockers)
	return blockers
}

// Edges returns every edge ordered by From then To.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for from, set := range g.deps {
		for to := range set {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	slices.SortFunc(edges, func(a, b Edge) int {
		if a.From != b.From {
			if a.From < b.From {
				return -1
			}
			return 1
		}
		if a.To < b.To {
			return -1
		}
		if a.To > b.To {
			return 1
		}
		return 0
	})
	return edges
}

// canReach walks dependency edges breadth-first from start looking for
// target.
func (g *Graph) canReach(start, target string) bool {
	visited := map[string]struct{}{start: {}}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for next := range g.deps[current] {
			if next == target {
				return true
			}
			if _, seen := visited[next]; !seen {
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
