package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskRepository persists the tasks of a workspace together with their
// dependency edges, comments and attachments.
type TaskRepository interface {
	// LoadWorkspace returns every task of the workspace, cancelled ones
	// included, with dependencies, comments and attachments filled in.
	LoadWorkspace(ctx context.Context, workspaceID string) ([]*Task, error)
	// SaveTasks writes all given tasks atomically. Either every task is
	// stored or none is.
	SaveTasks(ctx context.Context, workspaceID string, tasks []*Task) error
	// LocateTask returns the workspace a task belongs to, or "" when the
	// task does not exist.
	LocateTask(ctx context.Context, taskID string) (string, error)
}

type pgTaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a PostgreSQL backed TaskRepository
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &pgTaskRepository{pool: pool}
}

func (r *pgTaskRepository) LoadWorkspace(ctx context.Context, workspaceID string) ([]*Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, workspace_id, title, description, status, assignee_ids,
			progress, created_by, created_at, updated_at
		FROM tasks
		WHERE workspace_id = $1
		ORDER BY created_at, id`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	byID := make(map[string]*Task)
	for rows.Next() {
		t := &Task{}
		if err := rows.Scan(
			&t.ID, &t.WorkspaceID, &t.Title, &t.Description, &t.Status,
			&t.AssigneeIDs, &t.Progress, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	if err := r.loadDependencies(ctx, workspaceID, byID); err != nil {
		return nil, err
	}
	if err := r.loadComments(ctx, workspaceID, byID); err != nil {
		return nil, err
	}
	if err := r.loadAttachments(ctx, workspaceID, byID); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SaveTasks upserts every task row and replaces its dependency edges in a
// single transaction. Comments and attachments are append-only, so their
// rows are upserted and never deleted.
func (r *pgTaskRepository) SaveTasks(ctx context.Context, workspaceID string, tasks []*Task) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range tasks {
		if t.WorkspaceID != workspaceID {
			return fmt.Errorf("task %s belongs to workspace %s, not %s", t.ID, t.WorkspaceID, workspaceID)
		}
		if err := saveTask(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func saveTask(ctx context.Context, tx pgx.Tx, t *Task) error {
	assignees := t.AssigneeIDs
	if assignees == nil {
		assignees = []string{}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO tasks (
			id, workspace_id, title, description, status, assignee_ids,
			progress, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			assignee_ids = EXCLUDED.assignee_ids,
			progress = EXCLUDED.progress,
			updated_at = EXCLUDED.updated_at`,
		t.ID, t.WorkspaceID, t.Title, t.Description, string(t.Status), assignees,
		t.Progress, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}

	if err := saveDependencies(ctx, tx, t); err != nil {
		return err
	}
	if err := saveComments(ctx, tx, t); err != nil {
		return err
	}
	return saveAttachments(ctx, tx, t)
}

func (r *pgTaskRepository) LocateTask(ctx context.Context, taskID string) (string, error) {
	var workspaceID string
	err := r.pool.QueryRow(ctx, `SELECT workspace_id FROM tasks WHERE id = $1`, taskID).Scan(&workspaceID)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return workspaceID, nil
}
