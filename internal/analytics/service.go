package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

const revenueMonths = 6

var hundred = decimal.NewFromInt(100)

// ScopeResolver resolves the caller's visible users.
type ScopeResolver interface {
	Resolve(ctx context.Context, callerID int64) (access.Result, error)
}

// Service builds role-scoped dashboards.
type Service struct {
	repo   Repository
	scope  ScopeResolver
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService constructs the service. cache may be nil.
func NewService(repo Repository, scope ScopeResolver, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, scope: scope, cache: cache, logger: logger, now: time.Now}
}

// scopeToken identifies a visibility set in cache keys. Callers with the same
// set share a cached dashboard.
func scopeToken(r access.Result) string {
	if r.Unrestricted {
		return "all"
	}
	ids := make([]string, len(r.UserIDs))
	for i, id := range r.UserIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(ids, ","))).String()
}

// Dashboard returns the dashboard for actor and whether it was served from
// the cache. Concurrent requests for the same scope share one build.
func (s *Service) Dashboard(ctx context.Context, actor shared.Actor) (Dashboard, bool, error) {
	scope, err := s.scope.Resolve(ctx, actor.UserID)
	if err != nil {
		return Dashboard{}, false, fmt.Errorf("analytics: resolve scope: %w", err)
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	key, err := s.cache.BuildKey(ctx, "analytics", "dashboard", scopeToken(scope), today.Format("2006-01-02"))
	if err != nil {
		s.logger.Warn("dashboard cache unavailable", slog.Any("error", err))
		d, err := s.build(ctx, scope, today)
		return d, false, err
	}

	type result struct {
		dashboard Dashboard
		hit       bool
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var d Dashboard
		hit, err := s.cache.FetchJSON(context.WithoutCancel(ctx), key, &d, func(ctx context.Context) (any, error) {
			return s.build(ctx, scope, today)
		})
		return result{dashboard: d, hit: hit}, err
	})
	select {
	case <-ctx.Done():
		return Dashboard{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Dashboard{}, false, res.Err
		}
		out := res.Val.(result)
		return out.dashboard, out.hit, nil
	}
}

// Invalidate drops every cached dashboard.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) build(ctx context.Context, scope access.Result, today time.Time) (Dashboard, error) {
	d := Dashboard{GeneratedAt: s.now().UTC()}
	if !scope.Unrestricted && len(scope.UserIDs) == 0 {
		d.Revenue = fillMonths(nil, today, revenueMonths)
		return d, nil
	}

	leadsWhere := filter.And(scope.Predicate("l.assigned_to", "l.created_by"), filter.IsNull("l.deleted_at"))
	dealsWhere := filter.And(scope.Predicate("d.owner_id"), filter.IsNull("d.deleted_at"))
	activitiesWhere := filter.And(scope.Predicate("a.created_by", "l.assigned_to"), filter.IsNull("a.deleted_at"))
	invoicesWhere := filter.And(scope.Predicate("i.created_by"), filter.IsNull("i.deleted_at"))
	quotationsWhere := filter.And(scope.Predicate("q.created_by"), filter.IsNull("q.deleted_at"))
	firstMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(revenueMonths - 1), 0)
	revenueWhere := filter.And(invoicesWhere, filter.Gte("p.paid_on", firstMonth))

	var (
		leads      []Bucket
		stages     []StageRow
		invoices   []InvoiceRow
		quotations []Bucket
		revenue    []RevenuePoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		leads, err = s.repo.LeadsByStatus(gctx, leadsWhere)
		return err
	})
	g.Go(func() (err error) {
		stages, err = s.repo.DealsByStage(gctx, dealsWhere)
		return err
	})
	g.Go(func() (err error) {
		d.Activities, err = s.repo.ActivityCounts(gctx, activitiesWhere, today, today.Add(24*time.Hour))
		return err
	})
	g.Go(func() (err error) {
		invoices, err = s.repo.InvoicesByStatus(gctx, invoicesWhere, today)
		return err
	})
	g.Go(func() (err error) {
		quotations, err = s.repo.QuotationsByStatus(gctx, quotationsWhere)
		return err
	})
	g.Go(func() (err error) {
		revenue, err = s.repo.Revenue(gctx, revenueWhere)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d.Leads = summariseLeads(leads)
	d.Deals = summarisePipeline(stages)
	d.Invoices = summariseInvoices(invoices)
	d.Quotations = summariseQuotations(quotations)
	d.Revenue = fillMonths(revenue, today, revenueMonths)
	return d, nil
}

func summariseLeads(rows []Bucket) LeadStats {
	st := LeadStats{ByStatus: nonNil(rows)}
	for _, b := range rows {
		st.Total += b.Count
	}
	return st
}

func summarisePipeline(rows []StageRow) PipelineStats {
	st := PipelineStats{ByStage: make([]Bucket, 0, len(rows))}
	for _, r := range rows {
		st.ByStage = append(st.ByStage, Bucket{Label: r.Stage, Count: r.Count, Value: r.Value})
		switch r.Stage {
		case "WON":
			st.WonCount += r.Count
			st.WonValue = st.WonValue.Add(r.Value)
		case "LOST":
		default:
			st.OpenCount += r.Count
			st.OpenValue = st.OpenValue.Add(r.Value)
			st.WeightedValue = st.WeightedValue.Add(r.Weighted)
		}
	}
	st.WeightedValue = st.WeightedValue.Round(2)
	return st
}

func summariseInvoices(rows []InvoiceRow) InvoiceStats {
	st := InvoiceStats{ByStatus: make([]Bucket, 0, len(rows))}
	for _, r := range rows {
		st.ByStatus = append(st.ByStatus, Bucket{Label: r.Status, Count: r.Count, Value: r.Total})
		st.OverdueCount += r.Overdue
		st.Collected = st.Collected.Add(r.Paid)
		if r.Status == "DRAFT" {
			continue
		}
		st.Invoiced = st.Invoiced.Add(r.Total)
		if open := r.Total.Sub(r.Paid); r.Status != "PAID" && open.IsPositive() {
			st.Outstanding = st.Outstanding.Add(open)
		}
	}
	return st
}

func summariseQuotations(rows []Bucket) QuotationStats {
	st := QuotationStats{ByStatus: nonNil(rows)}
	var accepted, decided int
	for _, b := range rows {
		switch b.Label {
		case "ACCEPTED":
			accepted += b.Count
			decided += b.Count
		case "REJECTED":
			decided += b.Count
		}
	}
	if decided > 0 {
		st.AcceptanceRate = decimal.NewFromInt(int64(accepted)).Mul(hundred).Div(decimal.NewFromInt(int64(decided))).Round(2)
	}
	return st
}

// fillMonths returns one point per month for the window ending at today's
// month, zero filling months without payments.
func fillMonths(points []RevenuePoint, today time.Time, months int) []RevenuePoint {
	byMonth := make(map[string]decimal.Decimal, len(points))
	for _, p := range points {
		byMonth[p.Month] = p.Amount
	}
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	out := make([]RevenuePoint, 0, months)
	for i := 0; i < months; i++ {
		month := first.AddDate(0, i, 0).Format("2006-01")
		out = append(out, RevenuePoint{Month: month, Amount: byMonth[month]})
	}
	return out
}

func nonNil(b []Bucket) []Bucket {
	if b == nil {
		return []Bucket{}
	}
	return b
}
