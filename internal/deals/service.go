package deals

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// defaultProbability is the win probability assumed for each open stage.
var defaultProbability = map[Stage]int{
	StageProspecting:   10,
	StageQualification: 25,
	StageProposal:      50,
	StageNegotiation:   75,
	StageWon:           100,
	StageLost:          0,
}

// ScopeResolver resolves the caller's visible owners.
type ScopeResolver interface {
	Resolve(ctx context.Context, callerID int64) (access.Result, error)
}

// Service implements deal operations.
type Service struct {
	repo   Repository
	scope  ScopeResolver
	audit  shared.Auditor
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, scope ScopeResolver, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, scope: scope, audit: audit, logger: logger, now: time.Now}
}

func (s *Service) resolve(ctx context.Context, actor shared.Actor) (access.Result, error) {
	scope, err := s.scope.Resolve(ctx, actor.UserID)
	if err != nil {
		return access.Result{}, fmt.Errorf("deals: resolve scope: %w", err)
	}
	return scope, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	log := shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "deal", EntityID: strconv.FormatInt(id, 10), Meta: meta}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit deal change", slog.String("action", action), slog.Any("error", err))
	}
}

// List returns one page of deals the caller may see.
func (s *Service) List(ctx context.Context, actor shared.Actor, f ListFilters) ([]Deal, shared.Pagination, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	conds := []filter.Expr{scope.Predicate("d.owner_id"), filter.IsNull("d.deleted_at")}
	if f.Stage != "" {
		conds = append(conds, filter.Eq("d.stage", f.Stage))
	}
	if f.Open {
		conds = append(conds, filter.Not(filter.Or(filter.Eq("d.stage", StageWon), filter.Eq("d.stage", StageLost))))
	}
	if f.OwnerID != nil {
		conds = append(conds, filter.Eq("d.owner_id", *f.OwnerID))
	}
	if f.CompanyID != nil {
		conds = append(conds, filter.Eq("d.company_id", *f.CompanyID))
	}
	if f.Search != "" {
		conds = append(conds, filter.Contains("d.title", f.Search))
	}
	where := filter.And(conds...)
	if filter.IsFalse(where) {
		return []Deal{}, shared.NewPagination(page, limit, 0), nil
	}
	out, total, err := s.repo.List(ctx, where, limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if out == nil {
		out = []Deal{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

func (s *Service) visible(ctx context.Context, scope access.Result, id int64) (Deal, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Deal{}, err
	}
	if !scope.Allows(d.OwnerID) {
		return Deal{}, ErrNotFound
	}
	return d, nil
}

// Get returns one visible deal.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Deal, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Deal{}, err
	}
	return s.visible(ctx, scope, id)
}

// applyStage moves d to stage, stamping closed_at on WON/LOST and
// defaulting the probability unless one was given explicitly.
func (s *Service) applyStage(d *Deal, stage Stage, probability *int) {
	d.Stage = stage
	if probability != nil {
		d.Probability = *probability
	} else {
		d.Probability = defaultProbability[stage]
	}
	if stage.Closed() {
		if d.ClosedAt == nil {
			now := s.now().UTC()
			d.ClosedAt = &now
		}
	} else {
		d.ClosedAt = nil
	}
}

// Create stores a deal.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (Deal, error) {
	if err := httpx.Validate(req); err != nil {
		return Deal{}, err
	}
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Deal{}, err
	}
	d := Deal{
		Title:             req.Title,
		Value:             decimal.Zero,
		Currency:          req.Currency,
		ExpectedCloseDate: req.ExpectedCloseDate,
		LeadID:            req.LeadID,
		CompanyID:         req.CompanyID,
		OwnerID:           actor.UserID,
		CreatedBy:         actor.UserID,
	}
	if req.Value != nil {
		d.Value = *req.Value
	}
	if d.Currency == "" {
		d.Currency = "USD"
	}
	if req.OwnerID != nil && *req.OwnerID != actor.UserID {
		if !scope.Allows(*req.OwnerID) {
			return Deal{}, ErrOwnerOutOfScope
		}
		d.OwnerID = *req.OwnerID
	}
	stage := req.Stage
	if stage == "" {
		stage = StageProspecting
	}
	s.applyStage(&d, stage, req.Probability)
	id, err := s.repo.Insert(ctx, d)
	if err != nil {
		return Deal{}, fmt.Errorf("deals: create: %w", err)
	}
	s.record(ctx, actor, "deal.create", id, nil)
	return s.repo.Get(ctx, id)
}

// Update patches a visible deal.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateRequest) (Deal, error) {
	if err := httpx.Validate(req); err != nil {
		return Deal{}, err
	}
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Deal{}, err
	}
	d, err := s.visible(ctx, scope, id)
	if err != nil {
		return Deal{}, err
	}
	from := d.Stage
	if req.Title != nil {
		d.Title = *req.Title
	}
	if req.Value != nil {
		d.Value = *req.Value
	}
	if req.Currency != nil {
		d.Currency = *req.Currency
	}
	if req.ExpectedCloseDate != nil {
		d.ExpectedCloseDate = req.ExpectedCloseDate
	}
	if req.LeadID != nil {
		d.LeadID = req.LeadID
	}
	if req.CompanyID != nil {
		d.CompanyID = req.CompanyID
	}
	if req.OwnerID != nil && *req.OwnerID != d.OwnerID {
		if *req.OwnerID != actor.UserID && !scope.Allows(*req.OwnerID) {
			return Deal{}, ErrOwnerOutOfScope
		}
		d.OwnerID = *req.OwnerID
	}
	switch {
	case req.Stage != nil && *req.Stage != d.Stage:
		s.applyStage(&d, *req.Stage, req.Probability)
	case req.Probability != nil:
		d.Probability = *req.Probability
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return Deal{}, err
	}
	var meta map[string]any
	if from != d.Stage {
		meta = map[string]any{"from": string(from), "to": string(d.Stage)}
	}
	s.record(ctx, actor, "deal.update", id, meta)
	return s.repo.Get(ctx, id)
}

// Delete soft-deletes a visible deal.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return err
	}
	if _, err := s.visible(ctx, scope, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "deal.delete", id, nil)
	return nil
}
