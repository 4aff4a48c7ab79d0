package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const defaultActivityLimit = 50

// TaskActivity is one line of a task's history. A change that touches
// several fields is recorded as one row per field, all sharing EventID.
type TaskActivity struct {
	ID          string    `json:"id" db:"id"`
	EventID     string    `json:"eventId" db:"event_id"`
	WorkspaceID string    `json:"workspaceId" db:"workspace_id"`
	TaskID      string    `json:"taskId" db:"task_id"`
	UserID      string    `json:"userId" db:"user_id"`
	Action      string    `json:"action" db:"action"` // change event kind
	FieldName   *string   `json:"fieldName,omitempty" db:"field_name"`
	OldValue    *string   `json:"oldValue,omitempty" db:"old_value"`
	NewValue    *string   `json:"newValue,omitempty" db:"new_value"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// TaskActivityRepository stores task history
type TaskActivityRepository interface {
	// Create stores all rows of one change atomically.
	Create(ctx context.Context, activities ...*TaskActivity) error
	// FindByTaskID returns the newest rows first. limit <= 0 means the
	// default of 50.
	FindByTaskID(ctx context.Context, taskID string, limit int) ([]*TaskActivity, error)
}

type taskActivityRepository struct {
	db *sqlx.DB
}

// NewTaskActivityRepository creates a new TaskActivityRepository
func NewTaskActivityRepository(db *sql.DB) TaskActivityRepository {
	return &taskActivityRepository{db: sqlx.NewDb(db, "pgx")}
}

func (r *taskActivityRepository) Create(ctx context.Context, activities ...*TaskActivity) error {
	if len(activities) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range activities {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO task_activities (
				id, event_id, workspace_id, task_id, user_id, action,
				field_name, old_value, new_value, created_at
			) VALUES (
				:id, :event_id, :workspace_id, :task_id, :user_id, :action,
				:field_name, :old_value, :new_value, :created_at
			) ON CONFLICT (id) DO NOTHING`, a); err != nil {
			return fmt.Errorf("insert activity %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func (r *taskActivityRepository) FindByTaskID(ctx context.Context, taskID string, limit int) ([]*TaskActivity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	var activities []*TaskActivity
	err := r.db.SelectContext(ctx, &activities, `
		SELECT id, event_id, workspace_id, task_id, user_id, action,
			field_name, old_value, new_value, created_at
		FROM task_activities
		WHERE task_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, taskID, limit)
	if err != nil {
		return nil, err
	}
	return activities, nil
}
