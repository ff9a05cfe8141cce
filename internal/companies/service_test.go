package companies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	rows      map[int64]Company
	lastWhere filter.Expr
}

func (m *memoryRepo) List(_ context.Context, where filter.Expr, limit, offset int) ([]Company, int, error) {
	m.lastWhere = where
	return nil, 0, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Company, error) {
	c, ok := m.rows[id]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) Insert(_ context.Context, c Company) (int64, error) {
	m.nextID++
	c.ID = m.nextID
	m.rows[c.ID] = c
	return c.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, c Company) error {
	m.rows[c.ID] = c
	return nil
}

func (m *memoryRepo) SoftDelete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type auditSink struct{ actions []string }

func (a *auditSink) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func TestCompanyLifecycle(t *testing.T) {
	repo := &memoryRepo{rows: map[int64]Company{}}
	audit := &auditSink{}
	svc := NewService(repo, audit, nil)
	ctx := context.Background()
	actor := shared.Actor{UserID: 5}

	c, err := svc.Create(ctx, actor, Input{Name: "Acme", Website: "https://acme.example"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.CreatedBy)

	c, err = svc.Update(ctx, actor, c.ID, Input{Name: "Acme Corp", Industry: "Manufacturing"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", c.Name)
	assert.Empty(t, c.Website)

	require.NoError(t, svc.Delete(ctx, actor, c.ID))
	_, err = svc.Get(ctx, c.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	assert.Equal(t, []string{"company.create", "company.update", "company.delete"}, audit.actions)
}

func TestCreateValidatesWebsite(t *testing.T) {
	svc := NewService(&memoryRepo{rows: map[int64]Company{}}, nil, nil)
	_, err := svc.Create(context.Background(), shared.Actor{UserID: 1}, Input{Name: "Bad", Website: "not a url"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestListSearch(t *testing.T) {
	repo := &memoryRepo{rows: map[int64]Company{}}
	svc := NewService(repo, nil, nil)
	out, _, err := svc.List(context.Background(), ListFilters{Search: "50%"})
	require.NoError(t, err)
	assert.NotNil(t, out)

	sql, args := filter.Where(repo.lastWhere)
	assert.Equal(t, "deleted_at IS NULL AND (name ILIKE $1 OR email ILIKE $2 OR website ILIKE $3)", sql)
	assert.Equal(t, `%50\%%`, args[0])
}
