package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// Repository persists companies.
type Repository interface {
	List(ctx context.Context, where filter.Expr, limit, offset int) ([]Company, int, error)
	Get(ctx context.Context, id int64) (Company, error)
	Insert(ctx context.Context, c Company) (int64, error)
	Update(ctx context.Context, c Company) error
	SoftDelete(ctx context.Context, id int64) error
}

type pgRepository struct {
	db db.DBTX
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(q db.DBTX) Repository {
	return &pgRepository{db: q}
}

const selectCompany = `SELECT id, name, COALESCE(industry, ''), COALESCE(website, ''), COALESCE(email, ''),
	COALESCE(phone, ''), COALESCE(address, ''), created_by, created_at, updated_at
FROM companies`

func scanCompany(row pgx.Row) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Industry, &c.Website, &c.Email, &c.Phone, &c.Address, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *pgRepository) List(ctx context.Context, where filter.Expr, limit, offset int) ([]Company, int, error) {
	clause, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM companies WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("companies: count: %w", err)
	}
	limitMark, args := filter.Placeholder(args, limit)
	offsetMark, args := filter.Placeholder(args, offset)
	rows, err := r.db.Query(ctx, selectCompany+` WHERE `+clause+` ORDER BY name, id LIMIT `+limitMark+` OFFSET `+offsetMark, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("companies: list: %w", err)
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Company, error) {
	c, err := scanCompany(r.db.QueryRow(ctx, selectCompany+` WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

func (r *pgRepository) Insert(ctx context.Context, c Company) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO companies (name, industry, website, email, phone, address, created_by)
VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7) RETURNING id`,
		c.Name, c.Industry, c.Website, c.Email, c.Phone, c.Address, c.CreatedBy).Scan(&id)
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, c Company) error {
	tag, err := r.db.Exec(ctx, `UPDATE companies SET name = $2, industry = NULLIF($3, ''), website = NULLIF($4, ''),
	email = NULLIF($5, ''), phone = NULLIF($6, ''), address = NULLIF($7, ''), updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`,
		c.ID, c.Name, c.Industry, c.Website, c.Email, c.Phone, c.Address)
	if err != nil {
		return fmt.Errorf("companies: update %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE companies SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("companies: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
