package analytics

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type mockRepo struct {
	mu        sync.Mutex
	calls     atomic.Int32
	leadWhere filter.Expr
	leads     []Bucket
	stages    []StageRow
	invoices  []InvoiceRow
	quotes    []Bucket
	revenue   []RevenuePoint
}

func (m *mockRepo) LeadsByStatus(_ context.Context, where filter.Expr) ([]Bucket, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.leadWhere = where
	m.mu.Unlock()
	return m.leads, nil
}

func (m *mockRepo) DealsByStage(context.Context, filter.Expr) ([]StageRow, error) { return m.stages, nil }

func (m *mockRepo) ActivityCounts(context.Context, filter.Expr, time.Time, time.Time) (ActivityStats, error) {
	return ActivityStats{Pending: 4, Overdue: 1}, nil
}

func (m *mockRepo) InvoicesByStatus(context.Context, filter.Expr, time.Time) ([]InvoiceRow, error) {
	return m.invoices, nil
}

func (m *mockRepo) QuotationsByStatus(context.Context, filter.Expr) ([]Bucket, error) {
	return m.quotes, nil
}

func (m *mockRepo) Revenue(context.Context, filter.Expr) ([]RevenuePoint, error) { return m.revenue, nil }

type scopeTable map[int64]access.Result

func (s scopeTable) Resolve(_ context.Context, callerID int64) (access.Result, error) {
	if r, ok := s[callerID]; ok {
		return r, nil
	}
	return access.Nobody(), nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	scope := scopeTable{1: access.Unrestricted(), 2: access.Only(2, 3), 3: access.Only(3)}
	svc := NewService(repo, scope, NewCache(client, time.Minute), nil)
	svc.now = func() time.Time { return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func sampleRepo() *mockRepo {
	return &mockRepo{
		leads: []Bucket{{Label: "NEW", Count: 3}, {Label: "QUALIFIED", Count: 2}},
		stages: []StageRow{
			{Stage: "PROPOSAL", Count: 2, Value: dec("1000"), Weighted: dec("500")},
			{Stage: "WON", Count: 1, Value: dec("800"), Weighted: dec("800")},
			{Stage: "LOST", Count: 1, Value: dec("300"), Weighted: dec("0")},
		},
		invoices: []InvoiceRow{
			{Status: "DRAFT", Count: 1, Total: dec("50")},
			{Status: "SENT", Count: 2, Total: dec("400"), Overdue: 1},
			{Status: "PARTIALLY_PAID", Count: 1, Total: dec("200"), Paid: dec("80")},
			{Status: "PAID", Count: 1, Total: dec("100"), Paid: dec("120")},
		},
		quotes:  []Bucket{{Label: "ACCEPTED", Count: 3}, {Label: "REJECTED", Count: 1}, {Label: "SENT", Count: 5}},
		revenue: []RevenuePoint{{Month: "2026-04", Amount: dec("80")}, {Month: "2026-06", Amount: dec("120")}},
	}
}

func TestDashboardAggregates(t *testing.T) {
	svc := newTestService(t, sampleRepo())
	d, hit, err := svc.Dashboard(context.Background(), shared.Actor{UserID: 1})
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Equal(t, 5, d.Leads.Total)
	assert.Equal(t, 2, d.Deals.OpenCount)
	assert.True(t, d.Deals.OpenValue.Equal(dec("1000")))
	assert.True(t, d.Deals.WeightedValue.Equal(dec("500")))
	assert.True(t, d.Deals.WonValue.Equal(dec("800")))
	assert.Equal(t, 4, d.Activities.Pending)

	assert.True(t, d.Invoices.Invoiced.Equal(dec("700")), d.Invoices.Invoiced.String())
	assert.True(t, d.Invoices.Collected.Equal(dec("200")))
	assert.True(t, d.Invoices.Outstanding.Equal(dec("520")), d.Invoices.Outstanding.String())
	assert.Equal(t, 1, d.Invoices.OverdueCount)
	assert.True(t, d.Quotations.AcceptanceRate.Equal(dec("75")))

	require.Len(t, d.Revenue, 6)
	assert.Equal(t, "2026-01", d.Revenue[0].Month)
	assert.True(t, d.Revenue[3].Amount.Equal(dec("80")))
	assert.True(t, d.Revenue[4].Amount.IsZero())
	assert.Equal(t, "2026-06", d.Revenue[5].Month)
}

func TestDashboardCacheHitAndBump(t *testing.T) {
	repo := sampleRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	actor := shared.Actor{UserID: 2}

	_, hit, err := svc.Dashboard(ctx, actor)
	require.NoError(t, err)
	assert.False(t, hit)
	_, hit, err = svc.Dashboard(ctx, actor)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.EqualValues(t, 1, repo.calls.Load())

	require.NoError(t, svc.Invalidate(ctx))
	_, hit, err = svc.Dashboard(ctx, actor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.EqualValues(t, 2, repo.calls.Load())
}

func TestDashboardScopesQueries(t *testing.T) {
	repo := sampleRepo()
	svc := newTestService(t, repo)
	_, _, err := svc.Dashboard(context.Background(), shared.Actor{UserID: 2})
	require.NoError(t, err)

	sql, args := filter.Where(repo.leadWhere)
	assert.Equal(t, "(l.assigned_to = ANY($1) OR l.created_by = ANY($2)) AND l.deleted_at IS NULL", sql)
	assert.Equal(t, []any{[]int64{2, 3}, []int64{2, 3}}, args)
}

func TestDashboardScopesDoNotShareCache(t *testing.T) {
	repo := sampleRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	_, _, err := svc.Dashboard(ctx, shared.Actor{UserID: 2})
	require.NoError(t, err)
	_, hit, err := svc.Dashboard(ctx, shared.Actor{UserID: 3})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestUnknownCallerGetsEmptyDashboard(t *testing.T) {
	repo := sampleRepo()
	svc := newTestService(t, repo)
	d, _, err := svc.Dashboard(context.Background(), shared.Actor{UserID: 42})
	require.NoError(t, err)
	assert.Zero(t, d.Leads.Total)
	assert.Len(t, d.Revenue, 6)
	assert.Zero(t, repo.calls.Load())
}

type countingRecorder struct{ events []string }

func (c *countingRecorder) DocumentEvent(docType, event string) {
	c.events = append(c.events, docType+"."+event)
}

func TestInvalidatingRecorder(t *testing.T) {
	repo := sampleRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()
	actor := shared.Actor{UserID: 1}
	_, _, err := svc.Dashboard(ctx, actor)
	require.NoError(t, err)

	next := &countingRecorder{}
	InvalidatingRecorder{Next: next, Service: svc}.DocumentEvent("invoice", "paid")
	assert.Equal(t, []string{"invoice.paid"}, next.events)

	_, hit, err := svc.Dashboard(ctx, actor)
	require.NoError(t, err)
	assert.False(t, hit)
}
