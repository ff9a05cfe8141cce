// Package access resolves which owners' records a caller may see.
//
// Every scoped module asks the Resolver for a Result and turns it into a
// filter predicate by naming its owner columns. Scope semantics live here
// only; modules never interpret roles themselves.
package access

import (
	"context"
	"fmt"
	"slices"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
)

// Scope is a role's data visibility level.
type Scope string

const (
	ScopeGlobal Scope = "GLOBAL"
	ScopeTeam   Scope = "TEAM"
	ScopeSelf   Scope = "SELF"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeTeam, ScopeSelf:
		return true
	}
	return false
}

// RoleGrant is one role assigned to a user.
type RoleGrant struct {
	RoleID int64
	Name   string
	Scope  Scope
	Active bool
}

// Store is the read side the resolver needs.
type Store interface {
	// UserExists reports whether id is an active, non-deleted user.
	UserExists(ctx context.Context, id int64) (bool, error)
	RoleGrants(ctx context.Context, userID int64) ([]RoleGrant, error)
	// DirectReports lists users whose manager is managerID.
	DirectReports(ctx context.Context, managerID int64) ([]int64, error)
}

// Policy carries deployment-level decisions.
type Policy struct {
	// BootstrapUnrestricted gives users without any role assignment global
	// visibility instead of self-only.
	BootstrapUnrestricted bool
}

// Result is the resolved visibility of one caller.
type Result struct {
	Unrestricted bool
	// UserIDs is sorted and de-duplicated. Empty with Unrestricted false
	// means the caller sees nothing.
	UserIDs []int64
}

// Unrestricted is the result for callers that see every record.
func Unrestricted() Result { return Result{Unrestricted: true} }

// Nobody is the fail-closed result.
func Nobody() Result { return Result{} }

// Only restricts visibility to ids.
func Only(ids ...int64) Result {
	return Result{UserIDs: normalize(ids)}
}

// Predicate renders the result against the given owner columns: TRUE when
// unrestricted, FALSE when empty, otherwise one OR group of
// column = ANY(ids) terms.
func (r Result) Predicate(ownerColumns ...string) filter.Expr {
	if r.Unrestricted {
		return filter.True()
	}
	if len(r.UserIDs) == 0 || len(ownerColumns) == 0 {
		return filter.False()
	}
	terms := make([]filter.Expr, 0, len(ownerColumns))
	for _, col := range ownerColumns {
		terms = append(terms, filter.AnyInt64(col, r.UserIDs))
	}
	return filter.Or(terms...)
}

// Allows reports whether a record owned by any of owners is visible. Zero
// owner ids are ignored.
func (r Result) Allows(owners ...int64) bool {
	if r.Unrestricted {
		return true
	}
	for _, id := range owners {
		if id == 0 {
			continue
		}
		if _, found := slices.BinarySearch(r.UserIDs, id); found {
			return true
		}
	}
	return false
}

// Resolver computes Results from role assignments.
type Resolver struct {
	store  Store
	policy Policy
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, policy Policy) *Resolver {
	return &Resolver{store: store, policy: policy}
}

// Resolve computes the visibility of callerID.
func (r *Resolver) Resolve(ctx context.Context, callerID int64) (Result, error) {
	if callerID <= 0 {
		return Nobody(), nil
	}
	exists, err := r.store.UserExists(ctx, callerID)
	if err != nil {
		return Result{}, fmt.Errorf("access: load user %d: %w", callerID, err)
	}
	if !exists {
		return Nobody(), nil
	}
	grants, err := r.store.RoleGrants(ctx, callerID)
	if err != nil {
		return Result{}, fmt.Errorf("access: load roles of %d: %w", callerID, err)
	}
	if len(grants) == 0 {
		if r.policy.BootstrapUnrestricted {
			return Unrestricted(), nil
		}
		return Only(callerID), nil
	}

	ids := []int64{callerID}
	teamLoaded := false
	for _, g := range grants {
		if !g.Active {
			continue
		}
		switch g.Scope {
		case ScopeGlobal:
			return Unrestricted(), nil
		case ScopeTeam:
			if teamLoaded {
				continue
			}
			reports, err := r.store.DirectReports(ctx, callerID)
			if err != nil {
				return Result{}, fmt.Errorf("access: load reports of %d: %w", callerID, err)
			}
			ids = append(ids, reports...)
			teamLoaded = true
		}
	}
	return Only(ids...), nil
}

// IsBootstrap reports whether callerID exists, holds no role at all and the
// bootstrap policy is on. Such callers are treated as administrators.
func (r *Resolver) IsBootstrap(ctx context.Context, callerID int64) (bool, error) {
	if !r.policy.BootstrapUnrestricted || callerID <= 0 {
		return false, nil
	}
	exists, err := r.store.UserExists(ctx, callerID)
	if err != nil || !exists {
		return false, err
	}
	grants, err := r.store.RoleGrants(ctx, callerID)
	if err != nil {
		return false, err
	}
	return len(grants) == 0, nil
}

func normalize(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
