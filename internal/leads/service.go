package leads

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Owner columns compared against the caller's visible user ids.
var ownerColumns = []string{"l.assigned_to", "l.created_by"}

// ScopeResolver resolves the caller's visible owners.
type ScopeResolver interface {
	Resolve(ctx context.Context, callerID int64) (access.Result, error)
}

// Service implements lead operations.
type Service struct {
	repo   Repository
	scope  ScopeResolver
	audit  shared.Auditor
	logger *slog.Logger
}

// NewService constructs the service.
func NewService(repo Repository, scope ScopeResolver, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, scope: scope, audit: audit, logger: logger}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64) {
	log := shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "lead", EntityID: strconv.FormatInt(id, 10)}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit lead change", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) visible(ctx context.Context, actor shared.Actor, id int64) (Lead, access.Result, error) {
	scope, err := s.scope.Resolve(ctx, actor.UserID)
	if err != nil {
		return Lead{}, access.Result{}, fmt.Errorf("leads: resolve scope: %w", err)
	}
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return Lead{}, access.Result{}, err
	}
	if !scope.Allows(l.Owners()...) {
		return Lead{}, access.Result{}, ErrNotFound
	}
	return l, scope, nil
}

// List returns one page of leads the caller may see.
func (s *Service) List(ctx context.Context, actor shared.Actor, f ListFilters) ([]Lead, shared.Pagination, error) {
	scope, err := s.scope.Resolve(ctx, actor.UserID)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("leads: resolve scope: %w", err)
	}
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	conds := []filter.Expr{scope.Predicate(ownerColumns...), filter.IsNull("l.deleted_at")}
	if f.Status != "" {
		conds = append(conds, filter.Eq("l.status", f.Status))
	}
	if f.Source != "" {
		conds = append(conds, filter.Eq("l.source", f.Source))
	}
	if f.AssignedTo != nil {
		conds = append(conds, filter.Eq("l.assigned_to", *f.AssignedTo))
	}
	if f.Search != "" {
		conds = append(conds, filter.Or(
			filter.Contains("l.name", f.Search),
			filter.Contains("l.email", f.Search),
			filter.Contains("l.company_name", f.Search),
		))
	}
	where := filter.And(conds...)
	if filter.IsFalse(where) {
		return []Lead{}, shared.NewPagination(page, limit, 0), nil
	}
	out, total, err := s.repo.List(ctx, where, limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if out == nil {
		out = []Lead{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

// Get returns one visible lead.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Lead, error) {
	l, _, err := s.visible(ctx, actor, id)
	return l, err
}

// Create stores a lead owned by the caller.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (Lead, error) {
	if err := httpx.Validate(req); err != nil {
		return Lead{}, err
	}
	scope, err := s.scope.Resolve(ctx, actor.UserID)
	if err != nil {
		return Lead{}, fmt.Errorf("leads: resolve scope: %w", err)
	}
	l := Lead{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		CompanyName:    req.CompanyName,
		Source:         req.Source,
		Status:         req.Status,
		EstimatedValue: decimal.Zero,
		AssignedTo:     req.AssignedTo,
		CreatedBy:      actor.UserID,
		Notes:          req.Notes,
	}
	if l.Status == "" {
		l.Status = StatusNew
	}
	if req.EstimatedValue != nil {
		l.EstimatedValue = *req.EstimatedValue
	}
	if l.AssignedTo == nil {
		self := actor.UserID
		l.AssignedTo = &self
	} else if *l.AssignedTo != actor.UserID && !scope.Allows(*l.AssignedTo) {
		return Lead{}, ErrAssigneeOutOfScope
	}
	id, err := s.repo.Insert(ctx, l)
	if err != nil {
		return Lead{}, fmt.Errorf("leads: create: %w", err)
	}
	s.record(ctx, actor, "lead.create", id)
	return s.repo.Get(ctx, id)
}

// Update patches a visible lead.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateRequest) (Lead, error) {
	if err := httpx.Validate(req); err != nil {
		return Lead{}, err
	}
	l, scope, err := s.visible(ctx, actor, id)
	if err != nil {
		return Lead{}, err
	}
	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Email != nil {
		l.Email = *req.Email
	}
	if req.Phone != nil {
		l.Phone = *req.Phone
	}
	if req.CompanyName != nil {
		l.CompanyName = *req.CompanyName
	}
	if req.Source != nil {
		l.Source = *req.Source
	}
	if req.Status != nil {
		l.Status = *req.Status
	}
	if req.EstimatedValue != nil {
		l.EstimatedValue = *req.EstimatedValue
	}
	if req.AssignedTo != nil {
		if *req.AssignedTo != actor.UserID && !scope.Allows(*req.AssignedTo) {
			return Lead{}, ErrAssigneeOutOfScope
		}
		l.AssignedTo = req.AssignedTo
	}
	if req.Notes != nil {
		l.Notes = *req.Notes
	}
	if err := s.repo.Update(ctx, l); err != nil {
		return Lead{}, err
	}
	s.record(ctx, actor, "lead.update", id)
	return s.repo.Get(ctx, id)
}

// Delete soft-deletes a visible lead.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if _, _, err := s.visible(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "lead.delete", id)
	return nil
}

// PermanentDelete removes a visible lead for good.
func (s *Service) PermanentDelete(ctx context.Context, actor shared.Actor, id int64) error {
	if _, _, err := s.visible(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "lead.purge", id)
	return nil
}
