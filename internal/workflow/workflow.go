// Package workflow encodes the fixed task status state machine and the
// progress rules that ride on it.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/types"
)

// ErrInvalidProgress is returned for progress values the workflow refuses.
var ErrInvalidProgress = errors.New("invalid progress")

// InvalidTransitionError reports a status change the workflow does not allow.
type InvalidTransitionError struct {
	From types.TaskStatus
	To   types.TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move task from %s to %s", e.From, e.To)
}

// NotReadyError reports a transition refused because dependencies are
// still unfinished.
type NotReadyError struct {
	TaskID    string
	To        types.TaskStatus
	BlockedBy []string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("task %s cannot move to %s: blocked by %s",
		e.TaskID, e.To, strings.Join(e.BlockedBy, ", "))
}

// transitions lists, for each stored status, the statuses it may move to.
var transitions = map[types.TaskStatus][]types.TaskStatus{
	types.StatusTodo:       {types.StatusInProgress, types.StatusCancelled},
	types.StatusInProgress: {types.StatusInReview, types.StatusTodo, types.StatusCancelled},
	types.StatusInReview:   {types.StatusInProgress, types.StatusDone, types.StatusCancelled},
}

// requiresReady marks targets that are only reachable once every
// dependency is settled.
var requiresReady = map[types.TaskStatus]bool{
	types.StatusInProgress: true,
	types.StatusDone:       true,
}

// AllowedTargets returns the statuses reachable from the stored status.
func AllowedTargets(from types.TaskStatus) []types.TaskStatus {
	out := make([]types.TaskStatus, len(transitions[from]))
	copy(out, transitions[from])
	return out
}

// CanTransition reports whether from -> to is in the transition table,
// ignoring readiness.
func CanTransition(from, to types.TaskStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Check validates moving taskID from its stored status to the requested
// one. blockers are the unsettled dependencies of the task; they only
// matter for targets that need readiness. IN_REVIEW -> IN_PROGRESS is
// rework and does not re-check dependencies.
func Check(taskID string, from, to types.TaskStatus, blockers []string) error {
	if to == types.StatusBlocked || !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	rework := from == types.StatusInReview && to == types.StatusInProgress
	if requiresReady[to] && !rework && len(blockers) > 0 {
		return &NotReadyError{TaskID: taskID, To: to, BlockedBy: blockers}
	}
	return nil
}

// ProgressAfter returns the progress a task carries after entering status.
func ProgressAfter(to types.TaskStatus, current int) int {
	switch to {
	case types.StatusDone:
		return 100
	case types.StatusTodo, types.StatusCancelled:
		return 0
	default:
		return current
	}
}

// CheckProgress validates a progress edit made while the task sits in
// status. Progress only moves forward while work is active.
func CheckProgress(status types.TaskStatus, current, next int) error {
	if status != types.StatusInProgress && status != types.StatusInReview {
		return fmt.Errorf("%w: progress can only change while in progress or in review, task is %s",
			ErrInvalidProgress, status)
	}
	if next < 0 || next > 100 {
		return fmt.Errorf("%w: %d is outside 0-100", ErrInvalidProgress, next)
	}
	if next < current {
		return fmt.Errorf("%w: cannot lower progress from %d to %d", ErrInvalidProgress, current, next)
	}
	return nil
}

// Effective projects the stored status onto what views show. Work that
// has not reached review and still waits on dependencies is BLOCKED.
func Effective(stored types.TaskStatus, ready bool) types.TaskStatus {
	if !ready && (stored == types.StatusTodo || stored == types.StatusInProgress) {
		return types.StatusBlocked
	}
	return stored
}
