package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// Repository is the role persistence contract.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	List(ctx context.Context, where filter.Expr, order string, limit, offset int) ([]Role, int, error)
	Get(ctx context.Context, id int64) (Role, error)
	Insert(ctx context.Context, r Role) (int64, error)
	Update(ctx context.Context, r Role) error
	Delete(ctx context.Context, id int64) error
	SetPermissions(ctx context.Context, id int64, keys []string) error
	// KnownPermissions returns the subset of keys present in the catalogue.
	KnownPermissions(ctx context.Context, keys []string) ([]string, error)
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

const selectRoles = `SELECT r.id, r.name, r.description, r.access_scope, r.is_active, r.created_at, r.updated_at,
	COALESCE(ARRAY(SELECT p.key FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = r.id ORDER BY p.key), '{}'),
	(SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = r.id)
FROM roles r`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.AccessScope, &role.IsActive,
		&role.CreatedAt, &role.UpdatedAt, &role.Permissions, &role.UserCount)
	return role, err
}

// List returns roles ordered by order, which the service whitelists.
func (r *pgRepository) List(ctx context.Context, where filter.Expr, order string, limit, offset int) ([]Role, int, error) {
	cond, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM roles r WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf("%s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d", selectRoles, cond, order, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, role)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, selectRoles+" WHERE r.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

func (r *pgRepository) Insert(ctx context.Context, role Role) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO roles (name, description, access_scope, is_active) VALUES ($1, $2, $3, $4) RETURNING id`,
		role.Name, role.Description, role.AccessScope, role.IsActive).Scan(&id)
	if db.IsUniqueViolation(err, "roles_name_key") {
		return 0, ErrDuplicateName
	}
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, role Role) error {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET name = $2, description = $3, access_scope = $4, is_active = $5, updated_at = NOW() WHERE id = $1`,
		role.ID, role.Name, role.Description, role.AccessScope, role.IsActive)
	if db.IsUniqueViolation(err, "roles_name_key") {
		return ErrDuplicateName
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetPermissions(ctx context.Context, id int64, keys []string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, p.id FROM permissions p WHERE p.key = ANY($2) ON CONFLICT DO NOTHING`, id, keys)
	return err
}

func (r *pgRepository) KnownPermissions(ctx context.Context, keys []string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key FROM permissions WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
