package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// StageRow aggregates deals in one pipeline stage.
type StageRow struct {
	Stage    string
	Count    int
	Value    decimal.Decimal
	Weighted decimal.Decimal
}

// InvoiceRow aggregates invoices in one status.
type InvoiceRow struct {
	Status  string
	Count   int
	Total   decimal.Decimal
	Paid    decimal.Decimal
	Overdue int
}

// Repository runs the dashboard aggregates. Every method receives the
// caller's scope already folded into where.
type Repository interface {
	LeadsByStatus(ctx context.Context, where filter.Expr) ([]Bucket, error)
	DealsByStage(ctx context.Context, where filter.Expr) ([]StageRow, error)
	ActivityCounts(ctx context.Context, where filter.Expr, dayStart, dayEnd time.Time) (ActivityStats, error)
	InvoicesByStatus(ctx context.Context, where filter.Expr, today time.Time) ([]InvoiceRow, error)
	QuotationsByStatus(ctx context.Context, where filter.Expr) ([]Bucket, error)
	Revenue(ctx context.Context, where filter.Expr) ([]RevenuePoint, error)
}

type pgRepository struct {
	db db.DBTX
}

// NewRepository constructs the PostgreSQL aggregate reader. q must be safe
// for concurrent use since the dashboard loads sections in parallel.
func NewRepository(q db.DBTX) Repository {
	return &pgRepository{db: q}
}

func collectBuckets(rows pgx.Rows, err error) ([]Bucket, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Bucket, error) {
		var b Bucket
		err := row.Scan(&b.Label, &b.Count, &b.Value)
		return b, err
	})
}

func (r *pgRepository) LeadsByStatus(ctx context.Context, where filter.Expr) ([]Bucket, error) {
	clause, args := filter.Where(where)
	out, err := collectBuckets(r.db.Query(ctx, `SELECT l.status, COUNT(*), COALESCE(SUM(l.estimated_value), 0)
FROM leads l WHERE `+clause+` GROUP BY l.status ORDER BY l.status`, args...))
	if err != nil {
		return nil, fmt.Errorf("analytics: leads: %w", err)
	}
	return out, nil
}

func (r *pgRepository) DealsByStage(ctx context.Context, where filter.Expr) ([]StageRow, error) {
	clause, args := filter.Where(where)
	rows, err := r.db.Query(ctx, `SELECT d.stage, COUNT(*), COALESCE(SUM(d.value), 0),
	COALESCE(SUM(d.value * d.probability / 100.0), 0)
FROM deals d WHERE `+clause+` GROUP BY d.stage ORDER BY d.stage`, args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: deals: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StageRow, error) {
		var s StageRow
		err := row.Scan(&s.Stage, &s.Count, &s.Value, &s.Weighted)
		return s, err
	})
}

func (r *pgRepository) ActivityCounts(ctx context.Context, where filter.Expr, dayStart, dayEnd time.Time) (ActivityStats, error) {
	clause, args := filter.Where(where)
	start, args := filter.Placeholder(args, dayStart)
	end, args := filter.Placeholder(args, dayEnd)
	var st ActivityStats
	err := r.db.QueryRow(ctx, `SELECT COUNT(*),
	COUNT(*) FILTER (WHERE a.due_at < `+start+`),
	COUNT(*) FILTER (WHERE a.due_at >= `+start+` AND a.due_at < `+end+`)
FROM activities a
LEFT JOIN leads l ON l.id = a.lead_id
WHERE a.completed_at IS NULL AND `+clause, args...).Scan(&st.Pending, &st.Overdue, &st.DueToday)
	if err != nil {
		return ActivityStats{}, fmt.Errorf("analytics: activities: %w", err)
	}
	return st, nil
}

func (r *pgRepository) InvoicesByStatus(ctx context.Context, where filter.Expr, today time.Time) ([]InvoiceRow, error) {
	clause, args := filter.Where(where)
	mark, args := filter.Placeholder(args, today)
	rows, err := r.db.Query(ctx, `SELECT i.status, COUNT(*), COALESCE(SUM(i.total_amount), 0), COALESCE(SUM(i.paid_amount), 0),
	COUNT(*) FILTER (WHERE i.status IN ('SENT', 'PARTIALLY_PAID') AND i.due_date < `+mark+`)
FROM invoices i WHERE `+clause+` GROUP BY i.status ORDER BY i.status`, args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: invoices: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (InvoiceRow, error) {
		var ir InvoiceRow
		err := row.Scan(&ir.Status, &ir.Count, &ir.Total, &ir.Paid, &ir.Overdue)
		return ir, err
	})
}

func (r *pgRepository) QuotationsByStatus(ctx context.Context, where filter.Expr) ([]Bucket, error) {
	clause, args := filter.Where(where)
	out, err := collectBuckets(r.db.Query(ctx, `SELECT q.status, COUNT(*), COALESCE(SUM(q.total_amount), 0)
FROM quotations q WHERE `+clause+` GROUP BY q.status ORDER BY q.status`, args...))
	if err != nil {
		return nil, fmt.Errorf("analytics: quotations: %w", err)
	}
	return out, nil
}

func (r *pgRepository) Revenue(ctx context.Context, where filter.Expr) ([]RevenuePoint, error) {
	clause, args := filter.Where(where)
	rows, err := r.db.Query(ctx, `SELECT to_char(date_trunc('month', p.paid_on), 'YYYY-MM'), SUM(p.amount)
FROM payments p
JOIN invoices i ON i.id = p.invoice_id
WHERE `+clause+` GROUP BY 1 ORDER BY 1`, args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: revenue: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RevenuePoint, error) {
		var p RevenuePoint
		err := row.Scan(&p.Month, &p.Amount)
		return p, err
	})
}
