package deals

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// Repository is the deal persistence contract.
type Repository interface {
	List(ctx context.Context, where filter.Expr, limit, offset int) ([]Deal, int, error)
	Get(ctx context.Context, id int64) (Deal, error)
	Insert(ctx context.Context, d Deal) (int64, error)
	Update(ctx context.Context, d Deal) error
	SoftDelete(ctx context.Context, id int64) error
}

type pgRepository struct {
	db db.DBTX
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(q db.DBTX) Repository {
	return &pgRepository{db: q}
}

const selectDeal = `SELECT d.id, d.title, d.value, d.currency, d.stage, d.probability, d.expected_close_date, d.closed_at,
	d.lead_id, d.company_id, COALESCE(c.name, ''), d.owner_id, COALESCE(u.name, ''), d.created_by, d.created_at, d.updated_at
FROM deals d
LEFT JOIN companies c ON c.id = d.company_id
LEFT JOIN users u ON u.id = d.owner_id`

func scanDeal(row pgx.Row) (Deal, error) {
	var d Deal
	err := row.Scan(&d.ID, &d.Title, &d.Value, &d.Currency, &d.Stage, &d.Probability, &d.ExpectedCloseDate, &d.ClosedAt,
		&d.LeadID, &d.CompanyID, &d.CompanyName, &d.OwnerID, &d.OwnerName, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *pgRepository) List(ctx context.Context, where filter.Expr, limit, offset int) ([]Deal, int, error) {
	clause, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM deals d WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("deals: count: %w", err)
	}
	limitMark, args := filter.Placeholder(args, limit)
	offsetMark, args := filter.Placeholder(args, offset)
	rows, err := r.db.Query(ctx, selectDeal+` WHERE `+clause+` ORDER BY d.updated_at DESC, d.id DESC LIMIT `+limitMark+` OFFSET `+offsetMark, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("deals: list: %w", err)
	}
	defer rows.Close()
	var out []Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Deal, error) {
	d, err := scanDeal(r.db.QueryRow(ctx, selectDeal+` WHERE d.id = $1 AND d.deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Deal{}, ErrNotFound
	}
	return d, err
}

func (r *pgRepository) Insert(ctx context.Context, d Deal) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO deals (title, value, currency, stage, probability, expected_close_date, closed_at,
	lead_id, company_id, owner_id, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		d.Title, d.Value, d.Currency, d.Stage, d.Probability, d.ExpectedCloseDate, d.ClosedAt,
		d.LeadID, d.CompanyID, d.OwnerID, d.CreatedBy).Scan(&id)
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, d Deal) error {
	tag, err := r.db.Exec(ctx, `UPDATE deals SET title = $2, value = $3, currency = $4, stage = $5, probability = $6,
	expected_close_date = $7, closed_at = $8, lead_id = $9, company_id = $10, owner_id = $11, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`,
		d.ID, d.Title, d.Value, d.Currency, d.Stage, d.Probability, d.ExpectedCloseDate, d.ClosedAt, d.LeadID, d.CompanyID, d.OwnerID)
	if err != nil {
		return fmt.Errorf("deals: update %d: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE deals SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("deals: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
