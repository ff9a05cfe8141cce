package invoices

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// memoryRepo keeps invoices in maps. WithTx holds txMu for the whole
// callback, standing in for the row lock.
type memoryRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	seq      int64
	nextID   int64
	nextItem int64
	nextPay  int64
	invoices map[int64]Invoice
	items    map[int64]billing.LineItem
	payments map[int64]Payment
	keys     map[string]int64
	audits   []shared.AuditLog
	taken    map[string]bool

	lastWhere filter.Expr
	listCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices: map[int64]Invoice{},
		items:    map[int64]billing.LineItem{},
		payments: map[int64]Payment{},
		keys:     map[string]int64{},
		taken:    map[string]bool{},
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

func (m *memoryRepo) Insert(_ context.Context, inv Invoice) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken[inv.Number] {
		return 0, billing.ErrNumberTaken
	}
	if inv.QuotationID != nil {
		for _, other := range m.invoices {
			if other.QuotationID != nil && *other.QuotationID == *inv.QuotationID {
				return 0, ErrAlreadyConverted
			}
		}
	}
	m.nextID++
	inv.ID = m.nextID
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	m.invoices[inv.ID] = inv
	m.taken[inv.Number] = true
	return inv.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) ByQuotation(_ context.Context, quotationID int64) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.QuotationID != nil && *inv.QuotationID == quotationID {
			return inv, nil
		}
	}
	return Invoice{}, ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, where filter.Expr, limit, offset int) ([]Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastWhere = where
	m.listCalls++
	var out []Invoice
	for _, inv := range m.invoices {
		out = append(out, inv)
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

func (m *memoryRepo) update(id int64, fn func(*Invoice)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return ErrNotFound
	}
	fn(&inv)
	m.invoices[id] = inv
	return nil
}

func (m *memoryRepo) UpdateHeader(_ context.Context, inv Invoice) error {
	return m.update(inv.ID, func(cur *Invoice) {
		totals, status, paid, paidAt := cur.Totals, cur.Status, cur.PaidAmount, cur.PaidAt
		*cur = inv
		cur.Totals, cur.Status, cur.PaidAmount, cur.PaidAt = totals, status, paid, paidAt
	})
}

func (m *memoryRepo) SoftDelete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[id]; !ok {
		return ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

func (m *memoryRepo) SetSent(_ context.Context, id int64, at time.Time) error {
	return m.update(id, func(inv *Invoice) {
		inv.Status = billing.StatusSent
		inv.SentAt = &at
	})
}

func (m *memoryRepo) SetPaymentState(_ context.Context, id int64, paid decimal.Decimal, state billing.PaymentState) error {
	return m.update(id, func(inv *Invoice) {
		inv.PaidAmount = paid
		inv.Status = state.Status
		inv.PaidAt = state.PaidAt
	})
}

func (m *memoryRepo) WriteTotals(_ context.Context, id int64, totals billing.Totals) error {
	return m.update(id, func(inv *Invoice) { inv.Totals = totals })
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
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryRepo) Item(_ context.Context, itemID int64) (billing.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemID]
	if !ok {
		return billing.LineItem{}, ErrItemNotFound
	}
	if _, live := m.invoices[it.DocumentID]; !live {
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
	if item.SortOrder == 0 {
		item.SortOrder = int(m.nextItem)
	}
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

func (m *memoryRepo) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPay++
	p.ID = m.nextPay
	p.CreatedAt = time.Now()
	m.payments[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Payment(_ context.Context, id int64) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) Payments(_ context.Context, invoiceID int64) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) PaymentTotal(ctx context.Context, invoiceID int64) (decimal.Decimal, error) {
	ps, _ := m.Payments(ctx, invoiceID)
	sum := decimal.Zero
	for _, p := range ps {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (m *memoryRepo) LookupKey(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[key]
	return id, ok, nil
}

func (m *memoryRepo) RememberKey(_ context.Context, key string, paymentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = paymentID
	return nil
}

func (m *memoryRepo) Audit(_ context.Context, log shared.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

type recordingNotifier struct {
	mu    sync.Mutex
	mails []shared.DocumentMail
}

func (n *recordingNotifier) DocumentSent(_ context.Context, mail shared.DocumentMail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mails = append(n.mails, mail)
	return nil
}
