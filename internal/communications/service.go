package communications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// ScopeResolver resolves the caller's visible users.
type ScopeResolver interface {
	Resolve(ctx context.Context, callerID int64) (access.Result, error)
}

// Service logs and reads communications. Entries are immutable.
type Service struct {
	repo   Repository
	scope  ScopeResolver
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, scope ScopeResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, scope: scope, logger: logger, now: time.Now}
}

// List returns one page of communications logged by visible users.
func (s *Service) List(ctx context.Context, actor shared.Actor, f ListFilters) ([]Communication, shared.Pagination, error) {
	scope, err := s.scope.Resolve(ctx, actor.UserID)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("communications: resolve scope: %w", err)
	}
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	conds := []filter.Expr{scope.Predicate("c.user_id")}
	if f.Channel != "" {
		conds = append(conds, filter.Eq("c.channel", f.Channel))
	}
	if f.Direction != "" {
		conds = append(conds, filter.Eq("c.direction", f.Direction))
	}
	if f.LeadID != nil {
		conds = append(conds, filter.Eq("c.lead_id", *f.LeadID))
	}
	if f.DealID != nil {
		conds = append(conds, filter.Eq("c.deal_id", *f.DealID))
	}
	if f.From != nil {
		conds = append(conds, filter.Gte("c.occurred_at", *f.From))
	}
	if f.To != nil {
		conds = append(conds, filter.Lt("c.occurred_at", f.To.AddDate(0, 0, 1)))
	}
	where := filter.And(conds...)
	if filter.IsFalse(where) {
		return []Communication{}, shared.NewPagination(page, limit, 0), nil
	}
	out, total, err := s.repo.List(ctx, where, limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if out == nil {
		out = []Communication{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

// Get returns a communication logged by a visible user.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Communication, error) {
	scope, err := s.scope.Resolve(ctx, actor.UserID)
	if err != nil {
		return Communication{}, fmt.Errorf("communications: resolve scope: %w", err)
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Communication{}, err
	}
	if !scope.Allows(c.UserID) {
		return Communication{}, ErrNotFound
	}
	return c, nil
}

// Create logs a communication as the caller.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (Communication, error) {
	if err := httpx.Validate(req); err != nil {
		return Communication{}, err
	}
	occurred := s.now().UTC()
	if req.OccurredAt != nil {
		occurred = req.OccurredAt.UTC()
	}
	id, err := s.repo.Insert(ctx, Communication{
		Channel:    req.Channel,
		Direction:  req.Direction,
		Subject:    req.Subject,
		Body:       req.Body,
		LeadID:     req.LeadID,
		DealID:     req.DealID,
		UserID:     actor.UserID,
		OccurredAt: occurred,
	})
	if err != nil {
		return Communication{}, fmt.Errorf("communications: create: %w", err)
	}
	s.logger.Info("communication logged",
		slog.Int64("id", id),
		slog.String("channel", string(req.Channel)),
		slog.String("direction", string(req.Direction)),
	)
	return s.repo.Get(ctx, id)
}
