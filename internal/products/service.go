package products

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// Service manages the product catalogue.
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
	log := shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "product", EntityID: strconv.FormatInt(id, 10)}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit product change", slog.String("action", action), slog.Any("error", err))
	}
}

// List pages the catalogue.
func (s *Service) List(ctx context.Context, f ListFilters) ([]Product, shared.Pagination, error) {
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	var conds []filter.Expr
	if f.Active != nil {
		conds = append(conds, filter.Eq("is_active", *f.Active))
	}
	if f.Search != "" {
		conds = append(conds, filter.Or(filter.Contains("name", f.Search), filter.Contains("sku", f.Search)))
	}
	out, total, err := s.repo.List(ctx, filter.And(conds...), limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if out == nil {
		out = []Product{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) normalize(in Input, p *Product) error {
	if err := httpx.Validate(in); err != nil {
		return err
	}
	if in.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(hundred) {
		return ErrInvalidRate
	}
	p.Name = strings.TrimSpace(in.Name)
	p.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	p.Description = in.Description
	p.Unit = in.Unit
	if p.Unit == "" {
		p.Unit = "pcs"
	}
	p.UnitPrice = in.UnitPrice
	p.TaxRate = in.TaxRate
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}

// Create adds a product. SKUs are stored upper-cased and must be unique.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in Input) (Product, error) {
	p := Product{IsActive: true}
	if err := s.normalize(in, &p); err != nil {
		return Product{}, err
	}
	id, err := s.repo.Insert(ctx, p)
	if err != nil {
		return Product{}, fmt.Errorf("products: create: %w", err)
	}
	s.record(ctx, actor, "product.create", id)
	return s.repo.Get(ctx, id)
}

// Update replaces a product.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, in Input) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.normalize(in, &p); err != nil {
		return Product{}, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "product.update", id)
	return s.repo.Get(ctx, id)
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "product.delete", id)
	return nil
}
