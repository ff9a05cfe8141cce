package communications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/filter"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type memoryRepo struct {
	log       []Communication
	lastWhere filter.Expr
}

func (m *memoryRepo) List(_ context.Context, where filter.Expr, limit, offset int) ([]Communication, int, error) {
	m.lastWhere = where
	return m.log, len(m.log), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Communication, error) {
	if id < 1 || int(id) > len(m.log) {
		return Communication{}, ErrNotFound
	}
	return m.log[id-1], nil
}

func (m *memoryRepo) Insert(_ context.Context, c Communication) (int64, error) {
	c.ID = int64(len(m.log) + 1)
	m.log = append(m.log, c)
	return c.ID, nil
}

type scopeTable map[int64]access.Result

func (s scopeTable) Resolve(_ context.Context, callerID int64) (access.Result, error) {
	if r, ok := s[callerID]; ok {
		return r, nil
	}
	return access.Nobody(), nil
}

var now = time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memoryRepo) {
	repo := &memoryRepo{}
	svc := NewService(repo, scopeTable{2: access.Only(2, 3), 3: access.Only(3)}, nil)
	svc.now = func() time.Time { return now }
	return svc, repo
}

func TestCreateStampsCaller(t *testing.T) {
	svc, _ := newTestService()
	c, err := svc.Create(context.Background(), shared.Actor{UserID: 3}, CreateRequest{
		Channel:   ChannelWhatsApp,
		Direction: DirectionOutbound,
		Body:      "Sent the proposal",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.UserID)
	assert.Equal(t, now, c.OccurredAt)
}

func TestCreateRejectsUnknownChannel(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), shared.Actor{UserID: 3}, CreateRequest{
		Channel:   "PIGEON",
		Direction: DirectionInbound,
		Body:      "coo",
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestGetHonoursScope(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, shared.Actor{UserID: 3}, CreateRequest{Channel: ChannelCall, Direction: DirectionInbound, Body: "Callback"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, shared.Actor{UserID: 2}, c.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, shared.Actor{UserID: 4}, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListPredicate(t *testing.T) {
	svc, repo := newTestService()
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := svc.List(context.Background(), shared.Actor{UserID: 2}, ListFilters{Channel: "EMAIL", From: &from})
	require.NoError(t, err)

	sql, args := filter.Where(repo.lastWhere)
	assert.Equal(t, "c.user_id = ANY($1) AND c.channel = $2 AND c.occurred_at >= $3", sql)
	assert.Equal(t, []any{[]int64{2, 3}, "EMAIL", from}, args)
}
