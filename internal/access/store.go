package access

import (
	"context"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// PgStore reads users and roles from PostgreSQL.
type PgStore struct {
	db db.DBTX
}

// NewPgStore constructs the store.
func NewPgStore(q db.DBTX) *PgStore {
	return &PgStore{db: q}
}

// UserExists implements Store.
func (s *PgStore) UserExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND is_active AND deleted_at IS NULL)`, id).Scan(&ok)
	return ok, err
}

// RoleGrants implements Store.
func (s *PgStore) RoleGrants(ctx context.Context, userID int64) ([]RoleGrant, error) {
	rows, err := s.db.Query(ctx, `SELECT r.id, r.name, r.access_scope, r.is_active
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1
ORDER BY r.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		var scope string
		if err := rows.Scan(&g.RoleID, &g.Name, &scope, &g.Active); err != nil {
			return nil, err
		}
		g.Scope = Scope(scope)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// DirectReports implements Store.
func (s *PgStore) DirectReports(ctx context.Context, managerID int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM users WHERE manager_id = $1 AND deleted_at IS NULL ORDER BY id`, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
