package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// IdempotencyStore persists processed keys together with the id of the
// resource the first request produced.
type IdempotencyStore struct {
	db db.DBTX
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(q db.DBTX) *IdempotencyStore {
	return &IdempotencyStore{db: q}
}

// WithTx binds the store to a transaction.
func (s *IdempotencyStore) WithTx(q db.DBTX) *IdempotencyStore {
	return &IdempotencyStore{db: q}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// Lookup returns the resource recorded for key within module.
func (s *IdempotencyStore) Lookup(ctx context.Context, key, module string) (string, bool, error) {
	if s == nil {
		return "", false, errors.New("idempotency store not initialised")
	}
	var resource string
	err := s.db.QueryRow(ctx, `SELECT resource_id FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module).Scan(&resource)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return resource, true, nil
}

// Remember stores key for module. A second insert of the same key yields
// ErrIdempotencyConflict.
func (s *IdempotencyStore) Remember(ctx context.Context, key, module, resource string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, resource_id, created_at) VALUES ($1, $2, $3, $4)`, key, module, resource, time.Now())
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
