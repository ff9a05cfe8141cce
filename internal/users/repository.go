package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// Repository is the user persistence contract.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	List(ctx context.Context, where filter.Expr, limit, offset int) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	// Insert returns ErrDuplicateEmail when the address is taken.
	Insert(ctx context.Context, d Draft) (int64, error)
	Update(ctx context.Context, u User) error
	SetPassword(ctx context.Context, id int64, hash string) error
	Deactivate(ctx context.Context, id int64) error
	Purge(ctx context.Context, id int64) error
	SetRoles(ctx context.Context, id int64, roleIDs []int64) error
	// KnownRoles returns the subset of ids that exist.
	KnownRoles(ctx context.Context, ids []int64) ([]int64, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
	db   db.DBTX
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool, db: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, ok := r.db.(pgx.Tx); ok {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgRepository{pool: r.pool, db: tx})
	})
}

const selectUsers = `SELECT u.id, u.email, u.name, u.manager_id, u.is_active, u.created_at, u.updated_at,
	COALESCE((SELECT json_agg(json_build_object('id', r.id, 'name', r.name) ORDER BY r.name)
		FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = u.id), '[]'::json)
FROM users u`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.ManagerID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.Roles)
	return u, err
}

func (r *pgRepository) List(ctx context.Context, where filter.Expr, limit, offset int) ([]User, int, error) {
	cond, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users u WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf("%s WHERE %s ORDER BY u.name, u.id LIMIT $%d OFFSET $%d", selectUsers, cond, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, selectUsers+" WHERE u.id = $1 AND u.deleted_at IS NULL", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *pgRepository) Insert(ctx context.Context, d Draft) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, manager_id, is_active)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, strings.ToLower(d.Email), d.Name, d.PasswordHash, d.ManagerID, d.IsActive).Scan(&id)
	if db.IsUniqueViolation(err, "users_email_key") {
		return 0, ErrDuplicateEmail
	}
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, u User) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET email = $2, name = $3, manager_id = $4, is_active = $5, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`, u.ID, strings.ToLower(u.Email), u.Name, u.ManagerID, u.IsActive)
	if db.IsUniqueViolation(err, "users_email_key") {
		return ErrDuplicateEmail
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return err
}

func (r *pgRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_active = FALSE, deleted_at = NOW(), updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) Purge(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE users SET manager_id = NULL WHERE manager_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetRoles(ctx context.Context, id int64, roleIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, id, roleIDs)
	return err
}

func (r *pgRepository) KnownRoles(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM roles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
