package quotations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/invoices"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type memoryRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	seq        int64
	nextID     int64
	nextItem   int64
	quotations map[int64]Quotation
	items      map[int64]billing.LineItem
	taken      map[string]bool
	audits     []shared.AuditLog
	auditErr   error

	lastWhere filter.Expr
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		quotations: map[int64]Quotation{},
		items:      map[int64]billing.LineItem{},
		taken:      map[string]bool{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m)
}

func (m *memoryRepo) NextSequence(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *memoryRepo) Insert(_ context.Context, q Quotation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken[q.Number] {
		return 0, billing.ErrNumberTaken
	}
	m.nextID++
	q.ID = m.nextID
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	m.quotations[q.ID] = q
	m.taken[q.Number] = true
	return q.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return Quotation{}, ErrNotFound
	}
	return q, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Quotation, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) List(_ context.Context, where filter.Expr, limit, offset int) ([]Quotation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastWhere = where
	var out []Quotation
	for _, q := range m.quotations {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memoryRepo) update(id int64, fn func(*Quotation)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return ErrNotFound
	}
	fn(&q)
	m.quotations[id] = q
	return nil
}

func (m *memoryRepo) UpdateHeader(_ context.Context, q Quotation) error {
	return m.update(q.ID, func(cur *Quotation) {
		totals, status, converted := cur.Totals, cur.Status, cur.ConvertedInvoiceID
		*cur = q
		cur.Totals, cur.Status, cur.ConvertedInvoiceID = totals, status, converted
	})
}

func (m *memoryRepo) SoftDelete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotations[id]; !ok {
		return ErrNotFound
	}
	delete(m.quotations, id)
	return nil
}

func (m *memoryRepo) SetStatus(_ context.Context, id int64, change StatusChange) error {
	return m.update(id, func(q *Quotation) {
		q.Status = change.Status
		at := change.At
		switch change.Status {
		case billing.StatusSent:
			q.SentAt = &at
		case billing.StatusAccepted:
			q.AcceptedAt = &at
		case billing.StatusRejected:
			q.RejectedAt = &at
			q.RejectionReason = change.Reason
		}
	})
}

func (m *memoryRepo) SetConverted(_ context.Context, id, invoiceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return ErrNotFound
	}
	if q.ConvertedInvoiceID != nil {
		return ErrAlreadyConverted
	}
	q.ConvertedInvoiceID = &invoiceID
	m.quotations[id] = q
	return nil
}

func (m *memoryRepo) WriteTotals(_ context.Context, id int64, totals billing.Totals) error {
	return m.update(id, func(q *Quotation) { q.Totals = totals })
}

func (m *memoryRepo) Items(_ context.Context, id int64) ([]billing.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []billing.LineItem
	for _, it := range m.items {
		if it.DocumentID == id {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) Item(_ context.Context, itemID int64) (billing.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok {
		return billing.LineItem{}, ErrItemNotFound
	}
	return it, nil
}

func (m *memoryRepo) InsertItem(_ context.Context, id int64, item billing.LineItem) (billing.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextItem++
	item = item.Priced()
	item.ID = m.nextItem
	item.DocumentID = id
	m.items[item.ID] = item
	return item, nil
}

func (m *memoryRepo) UpdateItem(_ context.Context, item billing.LineItem) (billing.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return billing.LineItem{}, ErrItemNotFound
	}
	item = item.Priced()
	m.items[item.ID] = item
	return item, nil
}

func (m *memoryRepo) DeleteItem(_ context.Context, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[itemID]; !ok {
		return ErrItemNotFound
	}
	delete(m.items, itemID)
	return nil
}

func (m *memoryRepo) Audit(_ context.Context, log shared.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auditErr != nil {
		return m.auditErr
	}
	m.audits = append(m.audits, log)
	return nil
}

type scopeTable map[int64]access.Result

func (s scopeTable) Resolve(_ context.Context, callerID int64) (access.Result, error) {
	if r, ok := s[callerID]; ok {
		return r, nil
	}
	return access.Nobody(), nil
}

type fixedFormats struct{}

func (fixedFormats) NumberFormat(_ context.Context, docType billing.DocType) (billing.Format, error) {
	if docType == billing.DocQuotation {
		return billing.DefaultQuotationFormat, nil
	}
	return billing.DefaultInvoiceFormat, nil
}

// fakeInvoices records conversions and enforces one invoice per quotation.
type fakeInvoices struct {
	mu       sync.Mutex
	nextID   int64
	created  []invoices.CreateRequest
	byQuote  map[int64]invoices.Invoice
	failWith error
}

func newFakeInvoices() *fakeInvoices {
	return &fakeInvoices{byQuote: map[int64]invoices.Invoice{}}
}

func (f *fakeInvoices) Create(_ context.Context, actor shared.Actor, req invoices.CreateRequest) (invoices.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return invoices.Invoice{}, f.failWith
	}
	if req.QuotationID != nil {
		if _, ok := f.byQuote[*req.QuotationID]; ok {
			return invoices.Invoice{}, invoices.ErrAlreadyConverted
		}
	}
	f.nextID++
	f.created = append(f.created, req)
	items := make([]billing.LineItem, len(req.Items))
	for i, in := range req.Items {
		items[i] = in.Item()
	}
	inv := invoices.Invoice{
		ID:          f.nextID,
		Title:       req.Title,
		Status:      billing.StatusDraft,
		Currency:    req.Currency,
		QuotationID: req.QuotationID,
		CreatedBy:   actor.UserID,
		Items:       items,
	}
	inv.Totals = billing.Recompute(items, billing.Overrides{Tax: req.TaxOverride, Discount: req.DiscountOverride})
	if req.QuotationID != nil {
		f.byQuote[*req.QuotationID] = inv
	}
	return inv, nil
}

func (f *fakeInvoices) ByQuotation(_ context.Context, quotationID int64) (invoices.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.byQuote[quotationID]
	if !ok {
		return invoices.Invoice{}, invoices.ErrNotFound
	}
	return inv, nil
}
