package activities

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// An activity is visible through its author or the assignee of its lead.
var ownerColumns = []string{"a.created_by", "l.assigned_to"}

// ScopeResolver resolves the caller's visible users.
type ScopeResolver interface {
	Resolve(ctx context.Context, callerID int64) (access.Result, error)
}

// Service implements activity operations.
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
		return access.Result{}, fmt.Errorf("activities: resolve scope: %w", err)
	}
	return scope, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64) {
	log := shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "activity", EntityID: strconv.FormatInt(id, 10)}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit activity change", slog.String("action", action), slog.Any("error", err))
	}
}

// List returns one page of visible activities, open ones first.
func (s *Service) List(ctx context.Context, actor shared.Actor, f ListFilters) ([]Activity, shared.Pagination, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	conds := []filter.Expr{scope.Predicate(ownerColumns...), filter.IsNull("a.deleted_at")}
	if f.Type != "" {
		conds = append(conds, filter.Eq("a.type", f.Type))
	}
	if f.LeadID != nil {
		conds = append(conds, filter.Eq("a.lead_id", *f.LeadID))
	}
	if f.DealID != nil {
		conds = append(conds, filter.Eq("a.deal_id", *f.DealID))
	}
	if f.Pending {
		conds = append(conds, filter.IsNull("a.completed_at"))
	}
	if f.DueBefore != nil {
		conds = append(conds, filter.Lt("a.due_at", *f.DueBefore))
	}
	if f.Search != "" {
		conds = append(conds, filter.Contains("a.subject", f.Search))
	}
	where := filter.And(conds...)
	if filter.IsFalse(where) {
		return []Activity{}, shared.NewPagination(page, limit, 0), nil
	}
	out, total, err := s.repo.List(ctx, where, limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if out == nil {
		out = []Activity{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

func (s *Service) visible(ctx context.Context, scope access.Result, id int64) (Activity, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	if !scope.Allows(a.Owners()...) {
		return Activity{}, ErrNotFound
	}
	return a, nil
}

// checkLead rejects linking to a lead the caller cannot see.
func (s *Service) checkLead(ctx context.Context, scope access.Result, leadID *int64) error {
	if leadID == nil || scope.Unrestricted {
		return nil
	}
	assignee, createdBy, err := s.repo.LeadAssignee(ctx, *leadID)
	if err != nil {
		return err
	}
	owners := []int64{createdBy}
	if assignee != nil {
		owners = append(owners, *assignee)
	}
	if !scope.Allows(owners...) {
		return ErrLeadNotVisible
	}
	return nil
}

// Get returns one visible activity.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (Activity, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Activity{}, err
	}
	return s.visible(ctx, scope, id)
}

// Create logs an activity authored by the caller.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (Activity, error) {
	if err := httpx.Validate(req); err != nil {
		return Activity{}, err
	}
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Activity{}, err
	}
	if err := s.checkLead(ctx, scope, req.LeadID); err != nil {
		return Activity{}, err
	}
	id, err := s.repo.Insert(ctx, Activity{
		Type:        req.Type,
		Subject:     req.Subject,
		Description: req.Description,
		DueAt:       req.DueAt,
		LeadID:      req.LeadID,
		DealID:      req.DealID,
		CreatedBy:   actor.UserID,
	})
	if err != nil {
		return Activity{}, fmt.Errorf("activities: create: %w", err)
	}
	s.record(ctx, actor, "activity.create", id)
	return s.repo.Get(ctx, id)
}

// Update patches a visible activity.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateRequest) (Activity, error) {
	if err := httpx.Validate(req); err != nil {
		return Activity{}, err
	}
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Activity{}, err
	}
	a, err := s.visible(ctx, scope, id)
	if err != nil {
		return Activity{}, err
	}
	if req.Type != nil {
		a.Type = *req.Type
	}
	if req.Subject != nil {
		a.Subject = *req.Subject
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.DueAt != nil {
		a.DueAt = req.DueAt
	}
	if req.LeadID != nil {
		if err := s.checkLead(ctx, scope, req.LeadID); err != nil {
			return Activity{}, err
		}
		a.LeadID = req.LeadID
	}
	if req.DealID != nil {
		a.DealID = req.DealID
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return Activity{}, err
	}
	s.record(ctx, actor, "activity.update", id)
	return s.repo.Get(ctx, id)
}

// Complete stamps completed_at. Completing twice is a conflict.
func (s *Service) Complete(ctx context.Context, actor shared.Actor, id int64) (Activity, error) {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return Activity{}, err
	}
	a, err := s.visible(ctx, scope, id)
	if err != nil {
		return Activity{}, err
	}
	if a.Completed() {
		return Activity{}, ErrAlreadyCompleted
	}
	if err := s.repo.Complete(ctx, id, s.now().UTC()); err != nil {
		return Activity{}, err
	}
	s.record(ctx, actor, "activity.complete", id)
	return s.repo.Get(ctx, id)
}

// Delete soft-deletes a visible activity.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	scope, err := s.resolve(ctx, actor)
	if err != nil {
		return err
	}
	if _, err := s.visible(ctx, scope, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "activity.delete", id)
	return nil
}
