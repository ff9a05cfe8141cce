package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// Repository persists products.
type Repository interface {
	List(ctx context.Context, where filter.Expr, limit, offset int) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Insert(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id int64) error
}

type pgRepository struct {
	db db.DBTX
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(q db.DBTX) Repository {
	return &pgRepository{db: q}
}

const selectProduct = `SELECT id, name, sku, COALESCE(description, ''), unit, unit_price, tax_rate, is_active, created_at, updated_at
FROM products`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.Unit, &p.UnitPrice, &p.TaxRate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *pgRepository) List(ctx context.Context, where filter.Expr, limit, offset int) ([]Product, int, error) {
	clause, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("products: count: %w", err)
	}
	limitMark, args := filter.Placeholder(args, limit)
	offsetMark, args := filter.Placeholder(args, offset)
	rows, err := r.db.Query(ctx, selectProduct+` WHERE `+clause+` ORDER BY name, id LIMIT `+limitMark+` OFFSET `+offsetMark, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("products: list: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, selectProduct+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *pgRepository) Insert(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO products (name, sku, description, unit, unit_price, tax_rate, is_active)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7) RETURNING id`,
		p.Name, p.SKU, p.Description, p.Unit, p.UnitPrice, p.TaxRate, p.IsActive).Scan(&id)
	if db.IsUniqueViolation(err, "products_sku_key") {
		return 0, ErrDuplicateSKU
	}
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, p Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET name = $2, sku = $3, description = NULLIF($4, ''), unit = $5,
	unit_price = $6, tax_rate = $7, is_active = $8, updated_at = NOW() WHERE id = $1`,
		p.ID, p.Name, p.SKU, p.Description, p.Unit, p.UnitPrice, p.TaxRate, p.IsActive)
	if db.IsUniqueViolation(err, "products_sku_key") {
		return ErrDuplicateSKU
	}
	if err != nil {
		return fmt.Errorf("products: update %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the product. Line items keep their copied name and price;
// their product_id is nulled by the foreign key.
func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("products: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
