package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// ErrItemNotFound is returned when an item id does not resolve to an item
// of a live document.
var ErrItemNotFound = errors.New("billing: line item not found")

// ErrDocumentNotFound is returned when the parent document is missing or
// soft-deleted.
var ErrDocumentNotFound = errors.New("billing: document not found")

// LineItem is one row of invoice_items or quotation_items.
type LineItem struct {
	ID           int64           `json:"id"`
	DocumentID   int64           `json:"document_id"`
	ProductID    *int64          `json:"product_id,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	SortOrder    int             `json:"sort_order"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Line returns the priced view of the item.
func (it LineItem) Line() Line {
	return Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRate: it.TaxRate, DiscountRate: it.DiscountRate}
}

// Priced fills the derived Subtotal and TotalAmount.
func (it LineItem) Priced() LineItem {
	l := it.Line()
	it.Subtotal = l.Subtotal().Round(MoneyPlaces)
	it.TotalAmount = l.Total()
	return it
}

// Lines extracts the priced views of items.
func Lines(items []LineItem) []Line {
	out := make([]Line, len(items))
	for i, it := range items {
		out[i] = it.Line()
	}
	return out
}

// LineTable names the tables a LineStore works on.
type LineTable struct {
	Items     string
	Parent    string
	Documents string
}

var (
	// InvoiceLines addresses invoice_items.
	InvoiceLines = LineTable{Items: "invoice_items", Parent: "invoice_id", Documents: "invoices"}
	// QuotationLines addresses quotation_items.
	QuotationLines = LineTable{Items: "quotation_items", Parent: "quotation_id", Documents: "quotations"}
)

// LineStore is the pgx access path to one item table. Every method takes the
// querier explicitly so callers can run it inside their transaction.
type LineStore struct {
	t LineTable
}

// NewLineStore constructs a store for table.
func NewLineStore(t LineTable) LineStore {
	return LineStore{t: t}
}

func (s LineStore) columns() string {
	return "id, " + s.t.Parent + ", product_id, name, description, quantity, unit, unit_price, tax_rate, discount_rate, subtotal, total_amount, sort_order, created_at, updated_at"
}

func scanItem(row pgx.Row) (LineItem, error) {
	var it LineItem
	err := row.Scan(&it.ID, &it.DocumentID, &it.ProductID, &it.Name, &it.Description, &it.Quantity, &it.Unit,
		&it.UnitPrice, &it.TaxRate, &it.DiscountRate, &it.Subtotal, &it.TotalAmount, &it.SortOrder, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// List returns the items of docID ordered by sort order.
func (s LineStore) List(ctx context.Context, q db.DBTX, docID int64) ([]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT `+s.columns()+` FROM `+s.t.Items+` WHERE `+s.t.Parent+` = $1 ORDER BY sort_order, id`, docID)
	if err != nil {
		return nil, fmt.Errorf("billing: list %s: %w", s.t.Items, err)
	}
	defer rows.Close()
	var items []LineItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Get loads one item of a live document.
func (s LineStore) Get(ctx context.Context, q db.DBTX, itemID int64) (LineItem, error) {
	row := q.QueryRow(ctx, `SELECT `+s.prefixed("i")+` FROM `+s.t.Items+` i
JOIN `+s.t.Documents+` d ON d.id = i.`+s.t.Parent+`
WHERE i.id = $1 AND d.deleted_at IS NULL`, itemID)
	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return LineItem{}, ErrItemNotFound
	}
	return it, err
}

func (s LineStore) prefixed(alias string) string {
	return alias + ".id, " + alias + "." + s.t.Parent + ", " + alias + ".product_id, " + alias + ".name, " + alias + ".description, " +
		alias + ".quantity, " + alias + ".unit, " + alias + ".unit_price, " + alias + ".tax_rate, " + alias + ".discount_rate, " +
		alias + ".subtotal, " + alias + ".total_amount, " + alias + ".sort_order, " + alias + ".created_at, " + alias + ".updated_at"
}

// Insert prices and stores item under docID. A zero SortOrder appends the
// item after the current last one.
func (s LineStore) Insert(ctx context.Context, q db.DBTX, docID int64, item LineItem) (LineItem, error) {
	item = item.Priced()
	row := q.QueryRow(ctx, `INSERT INTO `+s.t.Items+` (`+s.t.Parent+`, product_id, name, description, quantity, unit, unit_price, tax_rate, discount_rate, subtotal, total_amount, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
	CASE WHEN $12::int > 0 THEN $12::int ELSE (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM `+s.t.Items+` WHERE `+s.t.Parent+` = $1) END)
RETURNING `+s.columns(),
		docID, item.ProductID, item.Name, item.Description, item.Quantity, item.Unit, item.UnitPrice, item.TaxRate,
		item.DiscountRate, item.Subtotal, item.TotalAmount, item.SortOrder)
	stored, err := scanItem(row)
	if err != nil {
		return LineItem{}, fmt.Errorf("billing: insert %s: %w", s.t.Items, err)
	}
	return stored, nil
}

// Update re-prices and overwrites item.
func (s LineStore) Update(ctx context.Context, q db.DBTX, item LineItem) (LineItem, error) {
	item = item.Priced()
	row := q.QueryRow(ctx, `UPDATE `+s.t.Items+` SET product_id = $2, name = $3, description = $4, quantity = $5, unit = $6,
	unit_price = $7, tax_rate = $8, discount_rate = $9, subtotal = $10, total_amount = $11, sort_order = $12, updated_at = NOW()
WHERE id = $1
RETURNING `+s.columns(),
		item.ID, item.ProductID, item.Name, item.Description, item.Quantity, item.Unit, item.UnitPrice, item.TaxRate,
		item.DiscountRate, item.Subtotal, item.TotalAmount, item.SortOrder)
	stored, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return LineItem{}, ErrItemNotFound
	}
	if err != nil {
		return LineItem{}, fmt.Errorf("billing: update %s: %w", s.t.Items, err)
	}
	return stored, nil
}

// Delete removes itemID.
func (s LineStore) Delete(ctx context.Context, q db.DBTX, itemID int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM `+s.t.Items+` WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("billing: delete %s: %w", s.t.Items, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// WriteTotals overwrites the cached figures of docID.
func (s LineStore) WriteTotals(ctx context.Context, q db.DBTX, docID int64, totals Totals) error {
	tag, err := q.Exec(ctx, `UPDATE `+s.t.Documents+` SET subtotal = $2, tax_amount = $3, discount_amount = $4, total_amount = $5, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`,
		docID, totals.Subtotal, totals.TaxAmount, totals.DiscountAmount, totals.TotalAmount)
	if err != nil {
		return fmt.Errorf("billing: write totals of %s %d: %w", s.t.Documents, docID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Recompute derives document totals from the full current item set.
func Recompute(items []LineItem, o Overrides) Totals {
	return o.Apply(ComputeTotals(Lines(items)))
}
