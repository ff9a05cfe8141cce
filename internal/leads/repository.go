package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// Repository is the lead persistence contract.
type Repository interface {
	List(ctx context.Context, where filter.Expr, limit, offset int) ([]Lead, int, error)
	Get(ctx context.Context, id int64) (Lead, error)
	Insert(ctx context.Context, l Lead) (int64, error)
	Update(ctx context.Context, l Lead) error
	SoftDelete(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type pgRepository struct {
	db db.DBTX
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(q db.DBTX) Repository {
	return &pgRepository{db: q}
}

const selectLead = `SELECT l.id, l.name, l.email, l.phone, l.company_name, l.source, l.status, l.estimated_value,
	l.assigned_to, COALESCE(u.name, ''), l.created_by, l.notes, l.created_at, l.updated_at
FROM leads l
LEFT JOIN users u ON u.id = l.assigned_to`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.CompanyName, &l.Source, &l.Status, &l.EstimatedValue,
		&l.AssignedTo, &l.AssigneeName, &l.CreatedBy, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (r *pgRepository) List(ctx context.Context, where filter.Expr, limit, offset int) ([]Lead, int, error) {
	clause, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM leads l WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("leads: count: %w", err)
	}
	limitMark, args := filter.Placeholder(args, limit)
	offsetMark, args := filter.Placeholder(args, offset)
	rows, err := r.db.Query(ctx, selectLead+` WHERE `+clause+` ORDER BY l.created_at DESC, l.id DESC LIMIT `+limitMark+` OFFSET `+offsetMark, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("leads: list: %w", err)
	}
	defer rows.Close()
	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Lead, error) {
	l, err := scanLead(r.db.QueryRow(ctx, selectLead+` WHERE l.id = $1 AND l.deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *pgRepository) Insert(ctx context.Context, l Lead) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO leads (name, email, phone, company_name, source, status, estimated_value, assigned_to, created_by, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		l.Name, l.Email, l.Phone, l.CompanyName, l.Source, l.Status, l.EstimatedValue, l.AssignedTo, l.CreatedBy, l.Notes).Scan(&id)
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, l Lead) error {
	tag, err := r.db.Exec(ctx, `UPDATE leads SET name = $2, email = $3, phone = $4, company_name = $5, source = $6, status = $7,
	estimated_value = $8, assigned_to = $9, notes = $10, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`,
		l.ID, l.Name, l.Email, l.Phone, l.CompanyName, l.Source, l.Status, l.EstimatedValue, l.AssignedTo, l.Notes)
	if err != nil {
		return fmt.Errorf("leads: update %d: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE leads SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("leads: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row; dependent activities and communications keep
// their history with lead_id cleared by the foreign key.
func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("leads: purge %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
