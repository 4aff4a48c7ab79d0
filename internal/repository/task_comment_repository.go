package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Comments are never deleted; soft deletion is an update of the row.

func (r *pgTaskRepository) loadComments(ctx context.Context, workspaceID string, byID map[string]*Task) error {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.task_id, c.author_id, c.body, c.created_at, c.edited_at,
			c.deleted, c.deleted_at, c.deleted_by
		FROM task_comments c
		JOIN tasks t ON t.id = c.task_id
		WHERE t.workspace_id = $1
		ORDER BY c.created_at, c.id`, workspaceID)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c := &TaskComment{}
		if err := rows.Scan(
			&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt, &c.EditedAt,
			&c.Deleted, &c.DeletedAt, &c.DeletedBy,
		); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		if t, ok := byID[c.TaskID]; ok {
			t.Comments = append(t.Comments, c)
		}
	}
	return rows.Err()
}

func saveComments(ctx context.Context, tx pgx.Tx, t *Task) error {
	for _, c := range t.Comments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_comments (
				id, task_id, author_id, body, created_at, edited_at,
				deleted, deleted_at, deleted_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				body = EXCLUDED.body,
				edited_at = EXCLUDED.edited_at,
				deleted = EXCLUDED.deleted,
				deleted_at = EXCLUDED.deleted_at,
				deleted_by = EXCLUDED.deleted_by`,
			c.ID, t.ID, c.AuthorID, c.Body, c.CreatedAt, c.EditedAt,
			c.Deleted, c.DeletedAt, c.DeletedBy,
		); err != nil {
			return fmt.Errorf("upsert comment %s: %w", c.ID, err)
		}
	}

	return nil
}
