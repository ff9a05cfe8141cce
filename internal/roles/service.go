package roles

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

var sortColumns = map[string]string{
	"name":       "r.name",
	"created_at": "r.created_at",
	"scope":      "r.access_scope",
}

// Service handles role business logic.
type Service struct {
	repo   Repository
	audit  shared.Auditor
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	log := shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "role", EntityID: strconv.FormatInt(id, 10), Meta: meta}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit role change", slog.String("action", action), slog.Any("error", err))
	}
}

func orderBy(f ListFilters) string {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "r.name"
	}
	dir := "ASC"
	if strings.EqualFold(f.SortDir, "desc") {
		dir = "DESC"
	}
	return col + " " + dir + ", r.id"
}

// ListRoles returns a page of roles.
func (s *Service) ListRoles(ctx context.Context, f ListFilters) ([]Role, shared.Pagination, error) {
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	var where filter.Expr = filter.True()
	if f.Search != "" {
		where = filter.Or(filter.Contains("r.name", f.Search), filter.Contains("r.description", f.Search))
	}
	out, total, err := s.repo.List(ctx, where, orderBy(f), limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("roles: list: %w", err)
	}
	if out == nil {
		out = []Role{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

// Get returns one role.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func checkPermissions(ctx context.Context, tx Repository, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	known, err := tx.KnownPermissions(ctx, keys)
	if err != nil {
		return err
	}
	if len(known) == len(keys) {
		return nil
	}
	for _, k := range keys {
		if !slices.Contains(known, k) {
			return fmt.Errorf("%w: %s", ErrUnknownPermission, k)
		}
	}
	return ErrUnknownPermission
}

// Create stores a role with its permissions. Scope defaults to SELF.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (Role, error) {
	if err := httpx.Validate(req); err != nil {
		return Role{}, err
	}
	role := Role{Name: strings.TrimSpace(req.Name), Description: req.Description, AccessScope: req.AccessScope, IsActive: true}
	if role.AccessScope == "" {
		role.AccessScope = access.ScopeSelf
	}
	if !role.AccessScope.Valid() {
		return Role{}, ErrInvalidScope
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}
	keys := normalizeKeys(req.Permissions)
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := checkPermissions(ctx, tx, keys); err != nil {
			return err
		}
		var err error
		if id, err = tx.Insert(ctx, role); err != nil {
			return err
		}
		return tx.SetPermissions(ctx, id, keys)
	})
	if err != nil {
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	s.record(ctx, actor, "role.create", id, map[string]any{"scope": string(role.AccessScope)})
	return s.repo.Get(ctx, id)
}

// Update patches the role header.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateRequest) (Role, error) {
	if err := httpx.Validate(req); err != nil {
		return Role{}, err
	}
	if req.AccessScope != nil && !req.AccessScope.Valid() {
		return Role{}, ErrInvalidScope
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		role, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			role.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			role.Description = *req.Description
		}
		if req.AccessScope != nil {
			role.AccessScope = *req.AccessScope
		}
		if req.IsActive != nil {
			role.IsActive = *req.IsActive
		}
		return tx.Update(ctx, role)
	})
	if err != nil {
		return Role{}, fmt.Errorf("roles: update %d: %w", id, err)
	}
	s.record(ctx, actor, "role.update", id, nil)
	return s.repo.Get(ctx, id)
}

// SetPermissions replaces the role's permission keys.
func (s *Service) SetPermissions(ctx context.Context, actor shared.Actor, id int64, req PermissionsRequest) (Role, error) {
	keys := normalizeKeys(req.Permissions)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.Get(ctx, id); err != nil {
			return err
		}
		if err := checkPermissions(ctx, tx, keys); err != nil {
			return err
		}
		return tx.SetPermissions(ctx, id, keys)
	})
	if err != nil {
		return Role{}, fmt.Errorf("roles: permissions of %d: %w", id, err)
	}
	s.record(ctx, actor, "role.permissions", id, map[string]any{"permissions": keys})
	return s.repo.Get(ctx, id)
}

// Delete removes the role and its assignments.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("roles: delete %d: %w", id, err)
	}
	s.record(ctx, actor, "role.delete", id, nil)
	return nil
}
