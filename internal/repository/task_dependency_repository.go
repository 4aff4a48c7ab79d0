package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// task_dependencies holds one row per edge. Edges of a task are rewritten
// wholesale on every save.

func (r *pgTaskRepository) loadDependencies(ctx context.Context, workspaceID string, byID map[string]*Task) error {
	rows, err := r.pool.Query(ctx, `
		SELECT d.task_id, d.depends_on_task_id
		FROM task_dependencies d
		JOIN tasks t ON t.id = d.task_id
		WHERE t.workspace_id = $1
		ORDER BY d.task_id, d.depends_on_task_id`, workspaceID)
	if err != nil {
		return fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, dependsOn string
		if err := rows.Scan(&taskID, &dependsOn); err != nil {
			return fmt.Errorf("scan dependency: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.DependsOn = append(t.DependsOn, dependsOn)
		}
	}
	return rows.Err()
}

func saveDependencies(ctx context.Context, tx pgx.Tx, t *Task) error {
	if _, err := tx.Exec(ctx, `DELETE FROM task_dependencies WHERE task_id = $1`, t.ID); err != nil {
		return fmt.Errorf("clear dependencies of %s: %w", t.ID, err)
	}
	for _, dep := range t.DependsOn {
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_task_id)
			VALUES ($1, $2)`, t.ID, dep); err != nil {
			return fmt.Errorf("insert dependency %s -> %s: %w", t.ID, dep, err)
		}
	}
	return nil
}
