package repository

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	// Task data (pgxpool)
	TaskRepo TaskRepository

	// Membership lookups and task history (sql.DB)
	MemberRepo   MemberRepository
	ActivityRepo TaskActivityRepository
}

func NewRepositories(pool *pgxpool.Pool, db *sql.DB) *Repositories {
	return &Repositories{
		TaskRepo:     NewTaskRepository(pool),
		MemberRepo:   NewMemberRepository(db),
		ActivityRepo: NewTaskActivityRepository(db),
	}
}

// NewMemoryRepositories wires the in-memory implementations. The member
// repository is returned as well so callers can seed memberships.
func NewMemoryRepositories() (*Repositories, *MemoryMemberRepository) {
	members := NewMemoryMemberRepository()
	return &Repositories{
		TaskRepo:     NewMemoryTaskRepository(),
		MemberRepo:   members,
		ActivityRepo: NewMemoryTaskActivityRepository(),
	}, members
}
