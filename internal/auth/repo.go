package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(q db.DBTX) *PGRepository {
	return &PGRepository{db: q}
}

const selectUser = `SELECT u.id, u.email, u.name, u.password_hash, u.is_active, u.created_at, u.updated_at,
	COALESCE(ARRAY(SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = u.id AND r.is_active ORDER BY r.name), '{}')
FROM users u
WHERE u.deleted_at IS NULL AND `

func (r *PGRepository) find(ctx context.Context, cond string, arg any) (*User, error) {
	var user User
	err := r.db.QueryRow(ctx, selectUser+cond, arg).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt, &user.Roles)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.find(ctx, "lower(u.email) = lower($1)", email)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.find(ctx, "u.id = $1", id)
}

var _ Repository = (*PGRepository)(nil)
