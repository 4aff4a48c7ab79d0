package service

import (
	"context"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/repository"
)

const maxActivityLimit = 200

// ============================================
// Activity Service
// ============================================

// ActivityService reads the history recorded for tasks
type ActivityService interface {
	GetTaskActivities(ctx context.Context, taskID, actorID string, limit int) ([]*repository.TaskActivity, error)
}

type activityService struct {
	activityRepo repository.TaskActivityRepository
	tasks        TaskService
}

// NewActivityService creates a new activity service. Access follows task
// visibility, so tasks is consulted first.
func NewActivityService(activityRepo repository.TaskActivityRepository, tasks TaskService) ActivityService {
	return &activityService{activityRepo: activityRepo, tasks: tasks}
}

func (s *activityService) GetTaskActivities(ctx context.Context, taskID, actorID string, limit int) ([]*repository.TaskActivity, error) {
	if limit < 0 || limit > maxActivityLimit {
		return nil, invalidInput("limit must be between 0 and %d", maxActivityLimit)
	}
	if _, err := s.tasks.GetTask(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	activities, err := s.activityRepo.FindByTaskID(ctx, taskID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list task activity", Err: err}
	}
	return activities, nil
}
