package invoices

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

const idempotencyModule = "invoices.payment"

// Repository is the invoice persistence contract. Methods that mutate items
// or payments are only called inside WithTx after GetForUpdate.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	NextSequence(ctx context.Context) (int64, error)
	// Insert returns billing.ErrNumberTaken when the number is in use and
	// ErrAlreadyConverted when the quotation already has an invoice.
	Insert(ctx context.Context, inv Invoice) (int64, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	GetForUpdate(ctx context.Context, id int64) (Invoice, error)
	ByQuotation(ctx context.Context, quotationID int64) (Invoice, error)
	List(ctx context.Context, where filter.Expr, limit, offset int) ([]Invoice, int, error)
	UpdateHeader(ctx context.Context, inv Invoice) error
	SoftDelete(ctx context.Context, id int64) error
	SetSent(ctx context.Context, id int64, at time.Time) error
	SetPaymentState(ctx context.Context, id int64, paid decimal.Decimal, state billing.PaymentState) error
	WriteTotals(ctx context.Context, id int64, totals billing.Totals) error

	Items(ctx context.Context, id int64) ([]billing.LineItem, error)
	Item(ctx context.Context, itemID int64) (billing.LineItem, error)
	InsertItem(ctx context.Context, id int64, item billing.LineItem) (billing.LineItem, error)
	UpdateItem(ctx context.Context, item billing.LineItem) (billing.LineItem, error)
	DeleteItem(ctx context.Context, itemID int64) error

	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	Payment(ctx context.Context, id int64) (Payment, error)
	Payments(ctx context.Context, invoiceID int64) ([]Payment, error)
	PaymentTotal(ctx context.Context, invoiceID int64) (decimal.Decimal, error)

	LookupKey(ctx context.Context, key string) (int64, bool, error)
	RememberKey(ctx context.Context, key string, paymentID int64) error
	Audit(ctx context.Context, log shared.AuditLog) error
}

type pgRepository struct {
	pool  *pgxpool.Pool
	db    db.DBTX
	lines billing.LineStore
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool, db: pool, lines: billing.NewLineStore(billing.InvoiceLines)}
}

// WithTx runs fn under read committed so row locks taken by GetForUpdate
// serialise concurrent mutations of one invoice.
func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, ok := r.db.(pgx.Tx); ok {
		return fn(ctx, r)
	}
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgRepository{pool: r.pool, db: tx, lines: r.lines})
	})
}

func (r *pgRepository) NextSequence(ctx context.Context) (int64, error) {
	return billing.NewSequenceStore(r.db).Next(ctx, billing.DocInvoice)
}

func (r *pgRepository) Insert(ctx context.Context, inv Invoice) (int64, error) {
	q := r.db
	sp, isTx := r.db.(pgx.Tx)
	if isTx {
		nested, err := sp.Begin(ctx)
		if err != nil {
			return 0, fmt.Errorf("invoices: savepoint: %w", err)
		}
		defer func() { _ = nested.Rollback(ctx) }()
		q = nested
		sp = nested
	}
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO invoices (number, title, status, currency, subtotal, tax_amount, discount_amount, total_amount,
	tax_override, discount_override, paid_amount, notes, lead_id, deal_id, company_id, quotation_id, created_by, issue_date, due_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING id`,
		inv.Number, inv.Title, inv.Status, inv.Currency, inv.Subtotal, inv.TaxAmount, inv.DiscountAmount, inv.TotalAmount,
		inv.TaxOverride, inv.DiscountOverride, inv.Notes, inv.LeadID, inv.DealID, inv.CompanyID, inv.QuotationID,
		inv.CreatedBy, inv.IssueDate, inv.DueDate).Scan(&id)
	switch {
	case db.IsUniqueViolation(err, "invoices_number_key"):
		return 0, billing.ErrNumberTaken
	case db.IsUniqueViolation(err, "invoices_quotation_id_key"):
		return 0, ErrAlreadyConverted
	case err != nil:
		return 0, fmt.Errorf("invoices: insert: %w", err)
	}
	if isTx {
		if err := sp.Commit(ctx); err != nil {
			return 0, fmt.Errorf("invoices: release savepoint: %w", err)
		}
	}
	return id, nil
}

const selectInvoice = `SELECT i.id, i.number, i.title, i.status, i.currency, i.subtotal, i.tax_amount, i.discount_amount, i.total_amount,
	i.tax_override, i.discount_override, i.paid_amount, i.paid_at, i.notes, i.lead_id, i.deal_id, i.company_id,
	COALESCE(c.name, ''), i.quotation_id, i.created_by, i.issue_date, i.due_date, i.sent_at, i.created_at, i.updated_at
FROM invoices i
LEFT JOIN companies c ON c.id = i.company_id`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.Title, &inv.Status, &inv.Currency, &inv.Subtotal, &inv.TaxAmount,
		&inv.DiscountAmount, &inv.TotalAmount, &inv.TaxOverride, &inv.DiscountOverride, &inv.PaidAmount, &inv.PaidAt,
		&inv.Notes, &inv.LeadID, &inv.DealID, &inv.CompanyID, &inv.CompanyName, &inv.QuotationID, &inv.CreatedBy,
		&inv.IssueDate, &inv.DueDate, &inv.SentAt, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, selectInvoice+` WHERE i.id = $1 AND i.deleted_at IS NULL`, id))
}

func (r *pgRepository) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, selectInvoice+` WHERE i.id = $1 AND i.deleted_at IS NULL FOR UPDATE OF i`, id))
}

func (r *pgRepository) ByQuotation(ctx context.Context, quotationID int64) (Invoice, error) {
	return scanInvoice(r.db.QueryRow(ctx, selectInvoice+` WHERE i.quotation_id = $1 AND i.deleted_at IS NULL`, quotationID))
}

func (r *pgRepository) List(ctx context.Context, where filter.Expr, limit, offset int) ([]Invoice, int, error) {
	clause, args := filter.Where(where)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices i WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("invoices: count: %w", err)
	}
	limitMark, args := filter.Placeholder(args, limit)
	offsetMark, args := filter.Placeholder(args, offset)
	rows, err := r.db.Query(ctx, selectInvoice+` WHERE `+clause+` ORDER BY i.issue_date DESC, i.id DESC LIMIT `+limitMark+` OFFSET `+offsetMark, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) UpdateHeader(ctx context.Context, inv Invoice) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET title = $2, currency = $3, issue_date = $4, due_date = $5, tax_override = $6,
	discount_override = $7, notes = $8, lead_id = $9, deal_id = $10, company_id = $11, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`,
		inv.ID, inv.Title, inv.Currency, inv.IssueDate, inv.DueDate, inv.TaxOverride, inv.DiscountOverride, inv.Notes,
		inv.LeadID, inv.DealID, inv.CompanyID)
	if err != nil {
		return fmt.Errorf("invoices: update %d: %w", inv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("invoices: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetSent(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE invoices SET status = $2, sent_at = $3, updated_at = NOW() WHERE id = $1`, id, billing.StatusSent, at)
	return err
}

func (r *pgRepository) SetPaymentState(ctx context.Context, id int64, paid decimal.Decimal, state billing.PaymentState) error {
	_, err := r.db.Exec(ctx, `UPDATE invoices SET paid_amount = $2, status = $3, paid_at = $4, updated_at = NOW() WHERE id = $1`,
		id, paid, state.Status, state.PaidAt)
	return err
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

const paymentColumns = `id, invoice_id, amount, currency, method, paid_on, reference, created_by, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Currency, &p.Method, &p.PaidOn, &p.Reference, &p.CreatedBy, &p.CreatedAt)
	return p, err
}

func (r *pgRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	stored, err := scanPayment(r.db.QueryRow(ctx, `INSERT INTO payments (invoice_id, amount, currency, method, paid_on, reference, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+paymentColumns, p.InvoiceID, p.Amount, p.Currency, p.Method, p.PaidOn, p.Reference, p.CreatedBy))
	if err != nil {
		return Payment{}, fmt.Errorf("invoices: insert payment: %w", err)
	}
	return stored, nil
}

func (r *pgRepository) Payment(ctx context.Context, id int64) (Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

func (r *pgRepository) Payments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1 ORDER BY paid_on, id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoices: list payments: %w", err)
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) PaymentTotal(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`, invoiceID).Scan(&sum)
	return sum, err
}

func (r *pgRepository) LookupKey(ctx context.Context, key string) (int64, bool, error) {
	resource, found, err := shared.NewIdempotencyStore(r.db).Lookup(ctx, key, idempotencyModule)
	if err != nil || !found {
		return 0, false, err
	}
	id, err := strconv.ParseInt(resource, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invoices: idempotency resource %q: %w", resource, err)
	}
	return id, true, nil
}

func (r *pgRepository) RememberKey(ctx context.Context, key string, paymentID int64) error {
	return shared.NewIdempotencyStore(r.db).Remember(ctx, key, idempotencyModule, strconv.FormatInt(paymentID, 10))
}

func (r *pgRepository) Audit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(r.db).Record(ctx, log)
}
