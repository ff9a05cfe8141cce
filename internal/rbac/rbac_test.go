package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type memoryStore struct {
	perms    map[int64][]string
	catalog  map[string]shared.PermissionDef
	failWith error
}

func (m *memoryStore) UserPermissions(_ context.Context, userID int64) ([]string, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return append([]string(nil), m.perms[userID]...), nil
}

func (m *memoryStore) ListPermissions(context.Context) ([]Permission, error) {
	var out []Permission
	for _, def := range m.catalog {
		out = append(out, Permission{Key: def.Key, Module: def.Module})
	}
	return out, nil
}

func (m *memoryStore) UpsertPermission(_ context.Context, def shared.PermissionDef) error {
	if m.catalog == nil {
		m.catalog = map[string]shared.PermissionDef{}
	}
	m.catalog[def.Key] = def
	return nil
}

type staticBoot map[int64]bool

func (b staticBoot) IsBootstrap(_ context.Context, id int64) (bool, error) { return b[id], nil }

func TestEffectivePermissionsDedupes(t *testing.T) {
	store := &memoryStore{perms: map[int64][]string{1: {"Leads.View", "leads.view", "deals.view"}}}
	got, err := NewService(store, nil).EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"deals.view", "leads.view"}, got)
}

func TestBootstrapGetsWholeCatalogue(t *testing.T) {
	svc := NewService(&memoryStore{}, staticBoot{7: true})
	got, err := svc.EffectivePermissions(context.Background(), 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, shared.AllPermissionKeys(), got)

	got, err = svc.EffectivePermissions(context.Background(), 8)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSyncCatalogue(t *testing.T) {
	store := &memoryStore{}
	n, err := NewService(store, nil).SyncCatalogue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(shared.Catalogue()), n)
	assert.Contains(t, store.catalog, shared.PermInvoicesPayment)
}

func serve(m Middleware, mw func(http.Handler) http.Handler, actor *shared.Actor) *httptest.ResponseRecorder {
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	store := &memoryStore{perms: map[int64][]string{1: {"invoices.view"}, 2: {"invoices.view", "invoices.payment"}}}
	m := Middleware{Service: NewService(store, nil)}

	assert.Equal(t, http.StatusUnauthorized, serve(m, m.RequireAny("invoices.view"), nil).Code)
	assert.Equal(t, http.StatusNoContent, serve(m, m.RequireAny("invoices.view", "x.y"), &shared.Actor{UserID: 1}).Code)
	assert.Equal(t, http.StatusForbidden, serve(m, m.RequireAll("invoices.view", "invoices.payment"), &shared.Actor{UserID: 1}).Code)
	assert.Equal(t, http.StatusNoContent, serve(m, m.RequireAll("INVOICES.PAYMENT", "invoices.view"), &shared.Actor{UserID: 2}).Code)

	store.failWith = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, serve(m, m.RequireAny("invoices.view"), &shared.Actor{UserID: 2}).Code)
}
