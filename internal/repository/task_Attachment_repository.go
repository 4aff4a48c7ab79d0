package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (r *pgTaskRepository) loadAttachments(ctx context.Context, workspaceID string, byID map[string]*Task) error {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.task_id, a.file_ref, a.uploaded_by, a.uploaded_at,
			a.removed, a.removed_at, a.removed_by
		FROM task_attachments a
		JOIN tasks t ON t.id = a.task_id
		WHERE t.workspace_id = $1
		ORDER BY a.uploaded_at, a.id`, workspaceID)
	if err != nil {
		return fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := &TaskAttachment{}
		if err := rows.Scan(
			&a.ID, &a.TaskID, &a.FileRef, &a.UploadedBy, &a.UploadedAt,
			&a.Removed, &a.RemovedAt, &a.RemovedBy,
		); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		if t, ok := byID[a.TaskID]; ok {
			t.Attachments = append(t.Attachments, a)
		}
	}
	return rows.Err()
}

func saveAttachments(ctx context.Context, tx pgx.Tx, t *Task) error {
	for _, a := range t.Attachments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_attachments (
				id, task_id, file_ref, uploaded_by, uploaded_at,
				removed, removed_at, removed_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				removed = EXCLUDED.removed,
				removed_at = EXCLUDED.removed_at,
				removed_by = EXCLUDED.removed_by`,
			a.ID, t.ID, a.FileRef, a.UploadedBy, a.UploadedAt,
			a.Removed, a.RemovedAt, a.RemovedBy,
		); err != nil {
			return fmt.Errorf("upsert attachment %s: %w", a.ID, err)
		}
	}
	return nil
}
