package users

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Service handles user business logic.
type Service struct {
	repo   Repository
	audit  shared.Auditor
	logger *slog.Logger
	cost   int
}

// NewService builds Service instance.
func NewService(repo Repository, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, cost: bcrypt.DefaultCost}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64) {
	log := shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "user", EntityID: strconv.FormatInt(id, 10)}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit user change", slog.String("action", action), slog.Any("error", err))
	}
}

// List returns a page of users, newest hires last.
func (s *Service) List(ctx context.Context, f ListFilters) ([]User, shared.Pagination, error) {
	page, limit := shared.NormalizePage(f.Page, f.Limit)
	conds := []filter.Expr{filter.IsNull("u.deleted_at")}
	if f.Search != "" {
		conds = append(conds, filter.Or(filter.Contains("u.name", f.Search), filter.Contains("u.email", f.Search)))
	}
	if f.Active != nil {
		conds = append(conds, filter.Eq("u.is_active", *f.Active))
	}
	if f.RoleID != nil {
		conds = append(conds, filter.Exists("SELECT 1 FROM user_roles ur WHERE ur.user_id = u.id AND ur.role_id = ?", *f.RoleID))
	}
	if f.Managers {
		conds = append(conds, filter.Exists("SELECT 1 FROM users m WHERE m.manager_id = u.id AND m.deleted_at IS NULL"))
	}
	out, total, err := s.repo.List(ctx, filter.And(conds...), limit, shared.Offset(page, limit))
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("users: list: %w", err)
	}
	if out == nil {
		out = []User{}
	}
	return out, shared.NewPagination(page, limit, total), nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) checkRoles(ctx context.Context, tx Repository, ids []int64) ([]int64, error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return ids, nil
	}
	known, err := tx.KnownRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(known) != len(ids) {
		return nil, ErrUnknownRole
	}
	return ids, nil
}

func (s *Service) checkManager(ctx context.Context, tx Repository, id int64, managerID *int64) error {
	if managerID == nil {
		return nil
	}
	if *managerID == id {
		return ErrSelfManaged
	}
	if _, err := tx.Get(ctx, *managerID); err != nil {
		return fmt.Errorf("%w: manager %d: %v", httpx.ErrValidation, *managerID, err)
	}
	return nil
}

// Create hashes the password and stores the user with its roles.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateRequest) (User, error) {
	if err := httpx.Validate(req); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	draft := Draft{Email: req.Email, Name: req.Name, PasswordHash: string(hash), ManagerID: req.ManagerID, IsActive: true}
	if req.IsActive != nil {
		draft.IsActive = *req.IsActive
	}
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		roles, err := s.checkRoles(ctx, tx, req.RoleIDs)
		if err != nil {
			return err
		}
		if err := s.checkManager(ctx, tx, 0, req.ManagerID); err != nil {
			return err
		}
		id, err = tx.Insert(ctx, draft)
		if err != nil {
			return err
		}
		return tx.SetRoles(ctx, id, roles)
	})
	if err != nil {
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	s.record(ctx, actor, "user.create", id)
	return s.repo.Get(ctx, id)
}

// Update patches a user, rehashing the password when one is supplied.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateRequest) (User, error) {
	if err := httpx.Validate(req); err != nil {
		return User{}, err
	}
	var hash []byte
	if req.Password != nil {
		var err error
		if hash, err = bcrypt.GenerateFromPassword([]byte(*req.Password), s.cost); err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		u, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.Name != nil {
			u.Name = *req.Name
		}
		if req.ClearManager {
			u.ManagerID = nil
		}
		if req.ManagerID != nil {
			if err := s.checkManager(ctx, tx, id, req.ManagerID); err != nil {
				return err
			}
			u.ManagerID = req.ManagerID
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if err := tx.Update(ctx, u); err != nil {
			return err
		}
		if hash != nil {
			return tx.SetPassword(ctx, id, string(hash))
		}
		return nil
	})
	if err != nil {
		return User{}, fmt.Errorf("users: update %d: %w", id, err)
	}
	s.record(ctx, actor, "user.update", id)
	return s.repo.Get(ctx, id)
}

// AssignRoles replaces the user's role set.
func (s *Service) AssignRoles(ctx context.Context, actor shared.Actor, id int64, req RolesRequest) (User, error) {
	if err := httpx.Validate(req); err != nil {
		return User{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.Get(ctx, id); err != nil {
			return err
		}
		roles, err := s.checkRoles(ctx, tx, req.RoleIDs)
		if err != nil {
			return err
		}
		return tx.SetRoles(ctx, id, roles)
	})
	if err != nil {
		return User{}, fmt.Errorf("users: assign roles to %d: %w", id, err)
	}
	s.record(ctx, actor, "user.roles", id)
	return s.repo.Get(ctx, id)
}

// Delete deactivates the user and hides it from listings.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if id == actor.UserID {
		return ErrSelfDelete
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("users: delete %d: %w", id, err)
	}
	s.record(ctx, actor, "user.delete", id)
	return nil
}

// PermanentDelete removes the row and detaches direct reports.
func (s *Service) PermanentDelete(ctx context.Context, actor shared.Actor, id int64) error {
	if id == actor.UserID {
		return ErrSelfDelete
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		return tx.Purge(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("users: purge %d: %w", id, err)
	}
	s.record(ctx, actor, "user.purge", id)
	return nil
}
