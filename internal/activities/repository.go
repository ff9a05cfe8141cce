package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// Repository is the activity persistence contract.
type Repository interface {
	List(ctx context.Context, where filter.Expr, limit, offset int) ([]Activity, int, error)
	Get(ctx context.Context, id int64) (Activity, error)
	LeadAssignee(ctx context.Context, leadID int64) (assignee *int64, createdBy int64, err error)
	Insert(ctx context.Context, a Activity) (int64, error)
	Update(ctx context.Context, a Activity) error
	Complete(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

type pgRepository struct {
	db db.DBTX
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(q db.DBTX) Repository {
	return &pgRepository{db: q}
}

const fromActivities = `FROM activities a
LEFT JOIN leads l ON l.id = a.lead_id`

const selectActivity = `SELECT a.id, a.type, a.subject, COALESCE(a.description, ''), a.due_at, a.completed_at,
	a.lead_id, COALESCE(l.name, ''), l.assigned_to, a.deal_id, a.created_by, a.created_at, a.updated_at ` + fromActivities

func scanActivity(row pgx.Row) (Activity, error) {
	var a Activity
	err := row.Scan(&a.ID, &a.Type, &a.Subject, &a.Description, &a.DueAt, &a.CompletedAt,
		&a.LeadID, &a.LeadName, &a.LeadAssignee, &a.DealID, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *pgRepository) List(ctx context.Context, where filter.Expr, limit, offset int) ([]Activity, int, error) {
	clause, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+fromActivities+` WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("activities: count: %w", err)
	}
	limitMark, args := filter.Placeholder(args, limit)
	offsetMark, args := filter.Placeholder(args, offset)
	rows, err := r.db.Query(ctx, selectActivity+` WHERE `+clause+
		` ORDER BY a.completed_at IS NOT NULL, a.due_at NULLS LAST, a.id DESC LIMIT `+limitMark+` OFFSET `+offsetMark, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("activities: list: %w", err)
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Activity, error) {
	a, err := scanActivity(r.db.QueryRow(ctx, selectActivity+` WHERE a.id = $1 AND a.deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Activity{}, ErrNotFound
	}
	return a, err
}

func (r *pgRepository) LeadAssignee(ctx context.Context, leadID int64) (*int64, int64, error) {
	var assignee *int64
	var createdBy int64
	err := r.db.QueryRow(ctx, `SELECT assigned_to, created_by FROM leads WHERE id = $1 AND deleted_at IS NULL`, leadID).
		Scan(&assignee, &createdBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, ErrLeadNotVisible
	}
	return assignee, createdBy, err
}

func (r *pgRepository) Insert(ctx context.Context, a Activity) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO activities (type, subject, description, due_at, lead_id, deal_id, created_by)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7) RETURNING id`,
		a.Type, a.Subject, a.Description, a.DueAt, a.LeadID, a.DealID, a.CreatedBy).Scan(&id)
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, a Activity) error {
	tag, err := r.db.Exec(ctx, `UPDATE activities SET type = $2, subject = $3, description = NULLIF($4, ''), due_at = $5,
	lead_id = $6, deal_id = $7, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`,
		a.ID, a.Type, a.Subject, a.Description, a.DueAt, a.LeadID, a.DealID)
	if err != nil {
		return fmt.Errorf("activities: update %d: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) Complete(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE activities SET completed_at = $2, updated_at = NOW() WHERE id = $1 AND completed_at IS NULL AND deleted_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("activities: complete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyCompleted
	}
	return nil
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE activities SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("activities: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
