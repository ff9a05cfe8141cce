package roles

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	roles     map[int64]Role
	catalogue []string
	lastWhere filter.Expr
	lastOrder string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		roles:     map[int64]Role{},
		catalogue: []string{shared.PermLeadsView, shared.PermLeadsEdit, shared.PermInvoicesView},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) List(_ context.Context, where filter.Expr, order string, limit, offset int) ([]Role, int, error) {
	m.lastWhere, m.lastOrder = where, order
	var out []Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryRepo) Insert(_ context.Context, r Role) (int64, error) {
	for _, other := range m.roles {
		if other.Name == r.Name {
			return 0, ErrDuplicateName
		}
	}
	m.nextID++
	r.ID = m.nextID
	r.Permissions = []string{}
	m.roles[r.ID] = r
	return r.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, r Role) error {
	if _, ok := m.roles[r.ID]; !ok {
		return ErrNotFound
	}
	m.roles[r.ID] = r
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *memoryRepo) SetPermissions(_ context.Context, id int64, keys []string) error {
	r := m.roles[id]
	r.Permissions = slices.Clone(keys)
	m.roles[id] = r
	return nil
}

func (m *memoryRepo) KnownPermissions(_ context.Context, keys []string) ([]string, error) {
	var out []string
	for _, k := range keys {
		if slices.Contains(m.catalogue, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

var admin = shared.Actor{UserID: 1}

func TestCreateDefaultsAndPermissions(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	role, err := svc.Create(ctx, admin, CreateRequest{Name: " Sales ", Permissions: []string{"LEADS.VIEW", "leads.view", "leads.edit"}})
	require.NoError(t, err)
	assert.Equal(t, "Sales", role.Name)
	assert.Equal(t, access.ScopeSelf, role.AccessScope)
	assert.True(t, role.IsActive)
	assert.Equal(t, []string{"leads.edit", "leads.view"}, role.Permissions)

	_, err = svc.Create(ctx, admin, CreateRequest{Name: "Sales"})
	require.ErrorIs(t, err, ErrDuplicateName)

	_, err = svc.Create(ctx, admin, CreateRequest{Name: "Ops", AccessScope: "WORLD"})
	require.ErrorIs(t, err, ErrInvalidScope)

	_, err = svc.Create(ctx, admin, CreateRequest{Name: "Ops", Permissions: []string{"nope.view"}})
	require.ErrorIs(t, err, ErrUnknownPermission)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateAndReplacePermissions(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	role, err := svc.Create(ctx, admin, CreateRequest{Name: "Managers", AccessScope: access.ScopeTeam})
	require.NoError(t, err)

	global := access.ScopeGlobal
	inactive := false
	role, err = svc.Update(ctx, admin, role.ID, UpdateRequest{AccessScope: &global, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, access.ScopeGlobal, role.AccessScope)
	assert.False(t, role.IsActive)

	role, err = svc.SetPermissions(ctx, admin, role.ID, PermissionsRequest{Permissions: []string{"invoices.view"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"invoices.view"}, role.Permissions)

	_, err = svc.SetPermissions(ctx, admin, 99, PermissionsRequest{})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, admin, role.ID))
	require.ErrorIs(t, svc.Delete(ctx, admin, role.ID), ErrNotFound)
}

func TestListSortWhitelist(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, _, err := svc.ListRoles(context.Background(), ListFilters{SortBy: "name; DROP TABLE roles", SortDir: "desc"})
	require.NoError(t, err)
	assert.Equal(t, "r.name DESC, r.id", repo.lastOrder)
	assert.True(t, filter.IsTrue(repo.lastWhere))

	_, _, err = svc.ListRoles(context.Background(), ListFilters{SortBy: "scope", Search: "ops"})
	require.NoError(t, err)
	assert.Equal(t, "r.access_scope ASC, r.id", repo.lastOrder)
	sql, _ := filter.Where(repo.lastWhere)
	assert.Equal(t, "(r.name ILIKE $1 OR r.description ILIKE $2)", sql)
}
