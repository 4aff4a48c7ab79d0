package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// MemberRepository reads workspace memberships. Membership is owned by an
// external service; the task engine only looks roles up.
type MemberRepository interface {
	FindMember(ctx context.Context, workspaceID, userID string) (*TeamMember, error)
	ListMembers(ctx context.Context, workspaceID string) ([]*TeamMember, error)
}

type sqlMemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository wraps a database/sql handle opened with the pgx
// driver.
func NewMemberRepository(db *sql.DB) MemberRepository {
	return &sqlMemberRepository{db: sqlx.NewDb(db, "pgx")}
}

func (r *sqlMemberRepository) FindMember(ctx context.Context, workspaceID, userID string) (*TeamMember, error) {
	m := &TeamMember{}
	err := r.db.GetContext(ctx, m, `
		SELECT user_id, workspace_id, role, status, joined_at
		FROM team_members
		WHERE workspace_id = $1 AND user_id = $2`, workspaceID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *sqlMemberRepository) ListMembers(ctx context.Context, workspaceID string) ([]*TeamMember, error) {
	var members []*TeamMember
	err := r.db.SelectContext(ctx, &members, `
		SELECT user_id, workspace_id, role, status, joined_at
		FROM team_members
		WHERE workspace_id = $1
		ORDER BY joined_at, user_id`, workspaceID)
	if err != nil {
		return nil, err
	}
	return members, nil
}
