package companies

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Service manages the company directory.
type Service struct {
	repo   Repository
	audit  shared.Auditor
	logger *slog.Logger
}

// NewService constructs the service.
func NewService(repo Repository, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64) {
	log := shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "company", EntityID: strconv.FormatInt(id, 10)}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit company change", slog.String("action", action), slog.Any("error", err))
	}
}

// List pages companies by name.
func (s *Service) List(ctx context.Context, f ListFilters) ([]Company, shared.Pagination, error) {
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	conds := []filter.Expr{filter.IsNull("deleted_at")}
	if f.Industry != "" {
		conds = append(conds, filter.Eq("industry", f.Industry))
	}
	if f.Search != "" {
		conds = append(conds, filter.Or(
			filter.Contains("name", f.Search),
			filter.Contains("email", f.Search),
			filter.Contains("website", f.Search),
		))
	}
	out, total, err := s.repo.List(ctx, filter.And(conds...), limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if out == nil {
		out = []Company{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

// Get returns one company.
func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a company.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in Input) (Company, error) {
	if err := httpx.Validate(in); err != nil {
		return Company{}, err
	}
	id, err := s.repo.Insert(ctx, Company{
		Name:      in.Name,
		Industry:  in.Industry,
		Website:   in.Website,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedBy: actor.UserID,
	})
	if err != nil {
		return Company{}, fmt.Errorf("companies: create: %w", err)
	}
	s.record(ctx, actor, "company.create", id)
	return s.repo.Get(ctx, id)
}

// Update replaces a company's details.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, in Input) (Company, error) {
	if err := httpx.Validate(in); err != nil {
		return Company{}, err
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Company{}, err
	}
	c.Name, c.Industry, c.Website = in.Name, in.Industry, in.Website
	c.Email, c.Phone, c.Address = in.Email, in.Phone, in.Address
	if err := s.repo.Update(ctx, c); err != nil {
		return Company{}, err
	}
	s.record(ctx, actor, "company.update", id)
	return s.repo.Get(ctx, id)
}

// Delete soft-deletes a company. Linked deals and documents keep the id.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "company.delete", id)
	return nil
}
