package quotations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Repository is the quotation persistence contract.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	NextSequence(ctx context.Context) (int64, error)
	// Insert returns billing.ErrNumberTaken when the number is in use.
	Insert(ctx context.Context, q Quotation) (int64, error)
	Get(ctx context.Context, id int64) (Quotation, error)
	GetForUpdate(ctx context.Context, id int64) (Quotation, error)
	List(ctx context.Context, where filter.Expr, limit, offset int) ([]Quotation, int, error)
	UpdateHeader(ctx context.Context, q Quotation) error
	SoftDelete(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, change StatusChange) error
	// SetConverted links invoiceID once; it returns ErrAlreadyConverted when
	// a link exists.
	SetConverted(ctx context.Context, id, invoiceID int64) error
	WriteTotals(ctx context.Context, id int64, totals billing.Totals) error

	Items(ctx context.Context, id int64) ([]billing.LineItem, error)
	Item(ctx context.Context, itemID int64) (billing.LineItem, error)
	InsertItem(ctx context.Context, id int64, item billing.LineItem) (billing.LineItem, error)
	UpdateItem(ctx context.Context, item billing.LineItem) (billing.LineItem, error)
	DeleteItem(ctx context.Context, itemID int64) error

	Audit(ctx context.Context, log shared.AuditLog) error
}

type pgRepository struct {
	pool  *pgxpool.Pool
	db    db.DBTX
	lines billing.LineStore
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool, db: pool, lines: billing.NewLineStore(billing.QuotationLines)}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, ok := r.db.(pgx.Tx); ok {
		return fn(ctx, r)
	}
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgRepository{pool: r.pool, db: tx, lines: r.lines})
	})
}

func (r *pgRepository) NextSequence(ctx context.Context) (int64, error) {
	return billing.NewSequenceStore(r.db).Next(ctx, billing.DocQuotation)
}

func (r *pgRepository) Insert(ctx context.Context, q Quotation) (int64, error) {
	conn := r.db
	tx, isTx := r.db.(pgx.Tx)
	if isTx {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return 0, fmt.Errorf("quotations: savepoint: %w", err)
		}
		defer func() { _ = sp.Rollback(ctx) }()
		conn, tx = sp, sp
	}
	var id int64
	err := conn.QueryRow(ctx, `INSERT INTO quotations (number, title, status, currency, subtotal, tax_amount, discount_amount, total_amount,
	tax_override, discount_override, notes, lead_id, deal_id, company_id, created_by, issue_date, valid_until)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING id`,
		q.Number, q.Title, q.Status, q.Currency, q.Subtotal, q.TaxAmount, q.DiscountAmount, q.TotalAmount,
		q.TaxOverride, q.DiscountOverride, q.Notes, q.LeadID, q.DealID, q.CompanyID, q.CreatedBy, q.IssueDate, q.ValidUntil).Scan(&id)
	if db.IsUniqueViolation(err, "quotations_number_key") {
		return 0, billing.ErrNumberTaken
	}
	if err != nil {
		return 0, fmt.Errorf("quotations: insert: %w", err)
	}
	if isTx {
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("quotations: release savepoint: %w", err)
		}
	}
	return id, nil
}

const selectQuotation = `SELECT q.id, q.number, q.title, q.status, q.currency, q.subtotal, q.tax_amount, q.discount_amount, q.total_amount,
	q.tax_override, q.discount_override, q.notes, q.lead_id, q.deal_id, q.company_id, COALESCE(c.name, ''), q.created_by,
	q.issue_date, q.valid_until, q.sent_at, q.accepted_at, q.rejected_at, COALESCE(q.rejection_reason, ''),
	q.converted_invoice_id, q.created_at, q.updated_at
FROM quotations q
LEFT JOIN companies c ON c.id = q.company_id`

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	err := row.Scan(&q.ID, &q.Number, &q.Title, &q.Status, &q.Currency, &q.Subtotal, &q.TaxAmount, &q.DiscountAmount,
		&q.TotalAmount, &q.TaxOverride, &q.DiscountOverride, &q.Notes, &q.LeadID, &q.DealID, &q.CompanyID, &q.CompanyName,
		&q.CreatedBy, &q.IssueDate, &q.ValidUntil, &q.SentAt, &q.AcceptedAt, &q.RejectedAt, &q.RejectionReason,
		&q.ConvertedInvoiceID, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quotation{}, ErrNotFound
	}
	return q, err
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Quotation, error) {
	return scanQuotation(r.db.QueryRow(ctx, selectQuotation+` WHERE q.id = $1 AND q.deleted_at IS NULL`, id))
}

func (r *pgRepository) GetForUpdate(ctx context.Context, id int64) (Quotation, error) {
	return scanQuotation(r.db.QueryRow(ctx, selectQuotation+` WHERE q.id = $1 AND q.deleted_at IS NULL FOR UPDATE OF q`, id))
}

func (r *pgRepository) List(ctx context.Context, where filter.Expr, limit, offset int) ([]Quotation, int, error) {
	clause, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotations q WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("quotations: count: %w", err)
	}
	limitMark, args := filter.Placeholder(args, limit)
	offsetMark, args := filter.Placeholder(args, offset)
	rows, err := r.db.Query(ctx, selectQuotation+` WHERE `+clause+` ORDER BY q.issue_date DESC, q.id DESC LIMIT `+limitMark+` OFFSET `+offsetMark, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("quotations: list: %w", err)
	}
	defer rows.Close()
	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) UpdateHeader(ctx context.Context, q Quotation) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotations SET title = $2, currency = $3, issue_date = $4, valid_until = $5, tax_override = $6,
	discount_override = $7, notes = $8, lead_id = $9, deal_id = $10, company_id = $11, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`,
		q.ID, q.Title, q.Currency, q.IssueDate, q.ValidUntil, q.TaxOverride, q.DiscountOverride, q.Notes, q.LeadID, q.DealID, q.CompanyID)
	if err != nil {
		return fmt.Errorf("quotations: update %d: %w", q.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotations SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("quotations: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetStatus(ctx context.Context, id int64, change StatusChange) error {
	var column string
	switch change.Status {
	case billing.StatusSent:
		column = "sent_at"
	case billing.StatusAccepted:
		column = "accepted_at"
	case billing.StatusRejected:
		column = "rejected_at"
	default:
		return fmt.Errorf("quotations: no timestamp for status %s", change.Status)
	}
	_, err := r.db.Exec(ctx, `UPDATE quotations SET status = $2, `+column+` = $3,
	rejection_reason = CASE WHEN $2 = 'REJECTED' THEN $4 ELSE rejection_reason END, updated_at = NOW()
WHERE id = $1`, id, change.Status, change.At, change.Reason)
	return err
}

func (r *pgRepository) SetConverted(ctx context.Context, id, invoiceID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotations SET converted_invoice_id = $2, updated_at = NOW()
WHERE id = $1 AND converted_invoice_id IS NULL`, id, invoiceID)
	if err != nil {
		return fmt.Errorf("quotations: link invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyConverted
	}
	return nil
}

func (r *pgRepository) WriteTotals(ctx context.Context, id int64, totals billing.Totals) error {
	return r.lines.WriteTotals(ctx, r.db, id, totals)
}

func (r *pgRepository) Items(ctx context.Context, id int64) ([]billing.LineItem, error) {
	return r.lines.List(ctx, r.db, id)
}

func (r *pgRepository) Item(ctx context.Context, itemID int64) (billing.LineItem, error) {
	it, err := r.lines.Get(ctx, r.db, itemID)
	if errors.Is(err, billing.ErrItemNotFound) {
		return billing.LineItem{}, ErrItemNotFound
	}
	return it, err
}

func (r *pgRepository) InsertItem(ctx context.Context, id int64, item billing.LineItem) (billing.LineItem, error) {
	return r.lines.Insert(ctx, r.db, id, item)
}

func (r *pgRepository) UpdateItem(ctx context.Context, item billing.LineItem) (billing.LineItem, error) {
	it, err := r.lines.Update(ctx, r.db, item)
	if errors.Is(err, billing.ErrItemNotFound) {
		return billing.LineItem{}, ErrItemNotFound
	}
	return it, err
}

func (r *pgRepository) DeleteItem(ctx context.Context, itemID int64) error {
	err := r.lines.Delete(ctx, r.db, itemID)
	if errors.Is(err, billing.ErrItemNotFound) {
		return ErrItemNotFound
	}
	return err
}

func (r *pgRepository) Audit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(r.db).Record(ctx, log)
}

