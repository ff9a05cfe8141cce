package rbac

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Store is the persistence port of the Service.
type Store interface {
	// UserPermissions returns permission keys granted through the user's
	// active roles.
	UserPermissions(ctx context.Context, userID int64) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpsertPermission(ctx context.Context, def shared.PermissionDef) error
}

// BootstrapChecker tells whether a caller is a role-less bootstrap admin.
type BootstrapChecker interface {
	IsBootstrap(ctx context.Context, userID int64) (bool, error)
}

// Service answers permission questions.
type Service struct {
	store Store
	boot  BootstrapChecker
}

// NewService constructs a Service. boot may be nil.
func NewService(store Store, boot BootstrapChecker) *Service {
	return &Service{store: store, boot: boot}
}

// EffectivePermissions returns deduplicated permission keys for a user.
// Bootstrap callers receive the whole catalogue.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if s.boot != nil {
		ok, err := s.boot.IsBootstrap(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("rbac: bootstrap check: %w", err)
		}
		if ok {
			return shared.AllPermissionKeys(), nil
		}
	}
	keys, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: permissions of %d: %w", userID, err)
	}
	for i := range keys {
		keys[i] = strings.ToLower(keys[i])
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// ListPermissions returns the stored catalogue.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// SyncCatalogue upserts every entry of shared.Catalogue.
func (s *Service) SyncCatalogue(ctx context.Context) (int, error) {
	defs := shared.Catalogue()
	for _, def := range defs {
		if err := s.store.UpsertPermission(ctx, def); err != nil {
			return 0, fmt.Errorf("rbac: upsert %s: %w", def.Key, err)
		}
	}
	return len(defs), nil
}

// PgStore implements Store on PostgreSQL.
type PgStore struct {
	db db.DBTX
}

// NewPgStore constructs the store.
func NewPgStore(q db.DBTX) *PgStore {
	return &PgStore{db: q}
}

// UserPermissions implements Store.
func (s *PgStore) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT p.key
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id AND r.is_active
JOIN role_permissions rp ON rp.role_id = r.id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1
ORDER BY p.key`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// ListPermissions implements Store.
func (s *PgStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.Query(ctx, `SELECT id, key, module, description FROM permissions ORDER BY module, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Module, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// UpsertPermission implements Store.
func (s *PgStore) UpsertPermission(ctx context.Context, def shared.PermissionDef) error {
	_, err := s.db.Exec(ctx, `INSERT INTO permissions (key, module, description) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET module = EXCLUDED.module, description = EXCLUDED.description`, def.Key, def.Module, def.Description)
	return err
}
