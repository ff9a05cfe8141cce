package deals

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	deals     map[int64]Deal
	lastWhere filter.Expr
	listCalls int
}

func (m *memoryRepo) List(_ context.Context, where filter.Expr, limit, offset int) ([]Deal, int, error) {
	m.lastWhere = where
	m.listCalls++
	out := make([]Deal, 0, len(m.deals))
	for id := int64(1); id <= m.nextID; id++ {
		if d, ok := m.deals[id]; ok {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Deal, error) {
	d, ok := m.deals[id]
	if !ok {
		return Deal{}, ErrNotFound
	}
	return d, nil
}

func (m *memoryRepo) Insert(_ context.Context, d Deal) (int64, error) {
	m.nextID++
	d.ID = m.nextID
	m.deals[d.ID] = d
	return d.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, d Deal) error {
	if _, ok := m.deals[d.ID]; !ok {
		return ErrNotFound
	}
	m.deals[d.ID] = d
	return nil
}

func (m *memoryRepo) SoftDelete(_ context.Context, id int64) error {
	if _, ok := m.deals[id]; !ok {
		return ErrNotFound
	}
	delete(m.deals, id)
	return nil
}

type scopeTable map[int64]access.Result

func (s scopeTable) Resolve(_ context.Context, callerID int64) (access.Result, error) {
	if r, ok := s[callerID]; ok {
		return r, nil
	}
	return access.Nobody(), nil
}

var (
	manager = shared.Actor{UserID: 2}
	rep     = shared.Actor{UserID: 3}
	other   = shared.Actor{UserID: 4}
)

func newTestService() (*Service, *memoryRepo) {
	repo := &memoryRepo{deals: map[int64]Deal{}}
	scope := scopeTable{
		1: access.Unrestricted(),
		2: access.Only(2, 3),
		3: access.Only(3),
		4: access.Only(4),
	}
	svc := NewService(repo, scope, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestCreateDefaults(t *testing.T) {
	svc, _ := newTestService()
	d, err := svc.Create(context.Background(), rep, CreateRequest{Title: "Renewal"})
	require.NoError(t, err)
	assert.Equal(t, StageProspecting, d.Stage)
	assert.Equal(t, 10, d.Probability)
	assert.Equal(t, "USD", d.Currency)
	assert.Equal(t, rep.UserID, d.OwnerID)
	assert.True(t, d.Value.IsZero())
	assert.Nil(t, d.ClosedAt)
}

func TestClosingStagesPinProbability(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	value := decimal.NewFromInt(5000)
	d, err := svc.Create(ctx, rep, CreateRequest{Title: "Expansion", Value: &value})
	require.NoError(t, err)

	won := StageWon
	d, err = svc.Update(ctx, rep, d.ID, UpdateRequest{Stage: &won})
	require.NoError(t, err)
	assert.Equal(t, 100, d.Probability)
	require.NotNil(t, d.ClosedAt)

	lost := StageLost
	d, err = svc.Update(ctx, rep, d.ID, UpdateRequest{Stage: &lost})
	require.NoError(t, err)
	assert.Equal(t, 0, d.Probability)

	reopened := StageNegotiation
	d, err = svc.Update(ctx, rep, d.ID, UpdateRequest{Stage: &reopened})
	require.NoError(t, err)
	assert.Equal(t, 75, d.Probability)
	assert.Nil(t, d.ClosedAt)
}

func TestOwnerMustBeVisible(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	target := rep.UserID
	d, err := svc.Create(ctx, manager, CreateRequest{Title: "Delegated", OwnerID: &target})
	require.NoError(t, err)
	assert.Equal(t, rep.UserID, d.OwnerID)

	outsider := other.UserID
	_, err = svc.Create(ctx, manager, CreateRequest{Title: "Nope", OwnerID: &outsider})
	require.ErrorIs(t, err, ErrOwnerOutOfScope)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.Get(ctx, other, d.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, manager, d.ID)
	require.NoError(t, err)
}

func TestListScopedByOwner(t *testing.T) {
	svc, repo := newTestService()
	_, _, err := svc.List(context.Background(), manager, ListFilters{Stage: "PROPOSAL", Search: "acme"})
	require.NoError(t, err)

	sql, args := filter.Where(repo.lastWhere)
	assert.Equal(t, "d.owner_id = ANY($1) AND d.deleted_at IS NULL AND d.stage = $2 AND d.title ILIKE $3", sql)
	assert.Equal(t, []any{[]int64{2, 3}, "PROPOSAL", "%acme%"}, args)
}

func TestListUnknownCallerSeesNothing(t *testing.T) {
	svc, repo := newTestService()
	out, meta, err := svc.List(context.Background(), shared.Actor{UserID: 99}, ListFilters{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, meta.Total)
	assert.Zero(t, repo.listCalls)
}
