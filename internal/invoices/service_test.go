package invoices

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

var (
	admin = shared.Actor{UserID: 1}
	rep   = shared.Actor{UserID: 2}
	fixed = time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T) (*Service, *memoryRepo, *recordingNotifier) {
	t.Helper()
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	svc := NewService(Deps{
		Repo:     repo,
		Scope:    scopeTable{1: access.Unrestricted(), 2: access.Only(2)},
		Numbers:  fixedFormats{},
		Notifier: notifier,
		Now:      func() time.Time { return fixed },
	})
	return svc, repo, notifier
}

func taxedItem() billing.ItemInput {
	return billing.ItemInput{Name: "Consulting", Quantity: dec("2"), UnitPrice: dec("100"), TaxRate: dec("10")}
}

func discountedItem() billing.ItemInput {
	return billing.ItemInput{Name: "Support", Quantity: dec("1"), UnitPrice: dec("50"), DiscountRate: dec("10")}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s got %s", want, got)
}

func TestInvoiceLifecycleTotalsAndPayments(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, admin, CreateRequest{Title: "Retainer", Items: []billing.ItemInput{taxedItem()}})
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", inv.Number)
	assert.Equal(t, billing.StatusDraft, inv.Status)
	assertMoney(t, "200", inv.Subtotal)
	assertMoney(t, "20", inv.TaxAmount)
	assertMoney(t, "0", inv.DiscountAmount)
	assertMoney(t, "220", inv.TotalAmount)
	require.Len(t, inv.Items, 1)
	assertMoney(t, "220", inv.Items[0].TotalAmount)

	inv, err = svc.AddItem(ctx, admin, inv.ID, discountedItem())
	require.NoError(t, err)
	assertMoney(t, "250", inv.Subtotal)
	assertMoney(t, "20", inv.TaxAmount)
	assertMoney(t, "5", inv.DiscountAmount)
	assertMoney(t, "265", inv.TotalAmount)

	res, err := svc.RecordPayment(ctx, admin, inv.ID, "", PaymentRequest{Amount: dec("100"), Method: "bank"})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPartiallyPaid, res.Invoice.Status)
	assertMoney(t, "100", res.Invoice.PaidAmount)
	assert.Nil(t, res.Invoice.PaidAt)
	assert.Equal(t, "USD", res.Payment.Currency)
	assert.True(t, strings.HasPrefix(res.Payment.Reference, "PAY-"))

	res, err = svc.RecordPayment(ctx, admin, inv.ID, "", PaymentRequest{Amount: dec("165"), Method: "bank"})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, res.Invoice.Status)
	assertMoney(t, "265", res.Invoice.PaidAmount)
	require.NotNil(t, res.Invoice.PaidAt)
	assert.Equal(t, fixed, *res.Invoice.PaidAt)

	payments, err := svc.ListPayments(ctx, admin, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.NotEmpty(t, repo.audits)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	inv, err := svc.Create(ctx, admin, CreateRequest{Title: "x", Items: []billing.ItemInput{taxedItem(), discountedItem()}})
	require.NoError(t, err)

	first, err := svc.Recalculate(ctx, admin, inv.ID)
	require.NoError(t, err)
	second, err := svc.Recalculate(ctx, admin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Totals, second.Totals)
	assert.True(t, second.Balanced())
}

func TestItemRemovalRederivesPaymentStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	inv, err := svc.Create(ctx, admin, CreateRequest{Title: "x", Items: []billing.ItemInput{taxedItem(), discountedItem()}})
	require.NoError(t, err)

	res, err := svc.RecordPayment(ctx, admin, inv.ID, "", PaymentRequest{Amount: dec("220"), Method: "cash"})
	require.NoError(t, err)
	require.Equal(t, billing.StatusPartiallyPaid, res.Invoice.Status)

	inv, err = svc.RemoveItem(ctx, admin, res.Invoice.Items[1].ID)
	require.NoError(t, err)
	assertMoney(t, "220", inv.TotalAmount)
	assert.Equal(t, billing.StatusPaid, inv.Status)
	assert.NotNil(t, inv.PaidAt)

	inv, err = svc.UpdateItem(ctx, admin, inv.Items[0].ID, billing.ItemInput{Name: "Consulting", Quantity: dec("3"), UnitPrice: dec("100"), TaxRate: dec("10")})
	require.NoError(t, err)
	assertMoney(t, "330", inv.TotalAmount)
	assert.Equal(t, billing.StatusPartiallyPaid, inv.Status)
	assert.Nil(t, inv.PaidAt)
}

func TestGeneratedNumbersSkipCollisions(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.taken["INV-000001"] = true
	repo.taken["INV-000002"] = true

	inv, err := svc.Create(context.Background(), admin, CreateRequest{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, "INV-000003", inv.Number)
}

func TestGeneratedNumbersUniqueUnderConcurrency(t *testing.T) {
	svc, _, _ := newTestService(t)
	const n = 25
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := svc.Create(context.Background(), admin, CreateRequest{Title: fmt.Sprintf("doc %d", i)})
			if assert.NoError(t, err) {
				numbers[i] = inv.Number
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, num := range numbers {
		assert.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestExplicitDuplicateNumber(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, admin, CreateRequest{Number: "CUSTOM-1", Title: "a"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, admin, CreateRequest{Number: "CUSTOM-1", Title: "b"})
	require.ErrorIs(t, err, ErrDuplicateNumber)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateRejectsInvalidItems(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), admin, CreateRequest{
		Title: "x",
		Items: []billing.ItemInput{{Name: "bad", Quantity: dec("0"), UnitPrice: dec("1")}},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), admin, CreateRequest{})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestScopeHidesForeignInvoices(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	inv, err := svc.Create(ctx, admin, CreateRequest{Title: "owned by admin"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, rep, inv.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddItem(ctx, rep, inv.ID, taxedItem())
	require.ErrorIs(t, err, httpx.ErrNotFound)
	_, err = svc.RecordPayment(ctx, rep, inv.ID, "", PaymentRequest{Amount: dec("1"), Method: "cash"})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	own, err := svc.Create(ctx, rep, CreateRequest{Title: "owned by rep"})
	require.NoError(t, err)
	_, err = svc.Get(ctx, rep, own.ID)
	require.NoError(t, err)
}

func TestListKeepsScopeGroupIntact(t *testing.T) {
	svc, repo, _ := newTestService(t)
	_, _, err := svc.List(context.Background(), rep, ListFilters{Status: "SENT", Search: "acme"})
	require.NoError(t, err)

	sql, args := filter.Where(repo.lastWhere)
	assert.Equal(t, "i.created_by = ANY($1) AND i.deleted_at IS NULL AND i.status = $2 AND (i.number ILIKE $3 OR i.title ILIKE $4)", sql)
	assert.Equal(t, []int64{2}, args[0])
}

func TestListForUnknownCallerSkipsStorage(t *testing.T) {
	svc, repo, _ := newTestService(t)
	out, meta, err := svc.List(context.Background(), shared.Actor{UserID: 99}, ListFilters{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, meta.Total)
	assert.Equal(t, 0, repo.listCalls)
}

func TestIdempotentPaymentReplays(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	inv, err := svc.Create(ctx, admin, CreateRequest{Title: "x", Items: []billing.ItemInput{taxedItem()}})
	require.NoError(t, err)

	first, err := svc.RecordPayment(ctx, admin, inv.ID, "key-1", PaymentRequest{Amount: dec("50"), Method: "card"})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := svc.RecordPayment(ctx, admin, inv.ID, "key-1", PaymentRequest{Amount: dec("50"), Method: "card"})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Len(t, repo.payments, 1)
	assertMoney(t, "50", second.Invoice.PaidAmount)
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _ := newTestService(t)
	inv, err := svc.Create(context.Background(), admin, CreateRequest{Title: "x"})
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), admin, inv.ID, "", PaymentRequest{Amount: dec("0"), Method: "cash"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestMarkSentTransitionsAndNotifies(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()
	inv, err := svc.Create(ctx, admin, CreateRequest{Title: "x", Items: []billing.ItemInput{taxedItem()}})
	require.NoError(t, err)

	sent, err := svc.MarkSent(ctx, admin, inv.ID, SendRequest{Email: "billing@globex.test"})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	require.Len(t, notifier.mails, 1)
	assert.Equal(t, shared.DocumentMail{Kind: shared.KindInvoice, DocumentID: inv.ID, To: "billing@globex.test", ActorID: 1}, notifier.mails[0])

	_, err = svc.MarkSent(ctx, admin, inv.ID, SendRequest{})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, admin, inv.ID, "", PaymentRequest{Amount: dec("220"), Method: "cash"})
	require.NoError(t, err)
	_, err = svc.MarkSent(ctx, admin, inv.ID, SendRequest{})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestUpdateOverridesRecalculates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	inv, err := svc.Create(ctx, admin, CreateRequest{Title: "x", Items: []billing.ItemInput{taxedItem(), discountedItem()}})
	require.NoError(t, err)

	zero := dec("0")
	title := "renamed"
	inv, err = svc.Update(ctx, admin, inv.ID, UpdateRequest{Title: &title, TaxOverride: &zero})
	require.NoError(t, err)
	assert.Equal(t, "renamed", inv.Title)
	assertMoney(t, "245", inv.TotalAmount)

	inv, err = svc.Update(ctx, admin, inv.ID, UpdateRequest{ClearOverrides: true})
	require.NoError(t, err)
	assertMoney(t, "265", inv.TotalAmount)
}

func TestDeleteHidesInvoice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	inv, err := svc.Create(ctx, admin, CreateRequest{Title: "x"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, admin, inv.ID))
	_, err = svc.Get(ctx, admin, inv.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExportCSV(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, admin, CreateRequest{Title: "Retainer", Items: []billing.ItemInput{taxedItem()}})
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, svc.ExportCSV(ctx, admin, ListFilters{}, buf))
	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "INV-000001", records[1][1])
	assert.Equal(t, "220.00", records[1][11])
	assert.Equal(t, "220.00", records[1][13])
}
