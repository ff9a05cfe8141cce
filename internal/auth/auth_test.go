package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/auth"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

type staticPerms []string

func (p staticPerms) EffectivePermissions(context.Context, int64) ([]string, error) {
	return p, nil
}

func newFixture(t *testing.T, active bool) (*auth.Service, *miniredis.Miniredis, http.Handler) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{user: &auth.User{ID: 7, Email: "rep@crm.test", Name: "Rep", PasswordHash: string(hashed), IsActive: active, Roles: []string{"sales"}}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := auth.NewService(repo, auth.NewTokens("test-secret-test-secret-test-secret", time.Hour), auth.NewRevocations(client), staticPerms{"leads.view"}, nil)
	router := chi.NewRouter()
	router.Route("/auth", auth.NewHandler(nil, svc).MountRoutes)
	return svc, mr, router
}

func login(t *testing.T, router http.Handler, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"rep@crm.test","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func tokenFrom(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Data auth.LoginResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.Token)
	return envelope.Data.Token
}

func withToken(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestLoginMeLogout(t *testing.T) {
	_, mr, router := newFixture(t, true)

	res := login(t, router, "correct-horse")
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotContains(t, res.Body.String(), "password_hash")
	token := tokenFrom(t, res)

	me := httptest.NewRecorder()
	router.ServeHTTP(me, withToken(http.MethodGet, "/auth/me", token))
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"leads.view"`)
	assert.Contains(t, me.Body.String(), `"rep@crm.test"`)

	out := httptest.NewRecorder()
	router.ServeHTTP(out, withToken(http.MethodPost, "/auth/logout", token))
	require.Equal(t, http.StatusOK, out.Code)
	assert.Len(t, mr.Keys(), 1)

	again := httptest.NewRecorder()
	router.ServeHTTP(again, withToken(http.MethodGet, "/auth/me", token))
	assert.Equal(t, http.StatusUnauthorized, again.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, _, router := newFixture(t, true)
	res := login(t, router, "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "invalid email or password")
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	_, _, router := newFixture(t, false)
	res := login(t, router, "correct-horse")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidatesBody(t *testing.T) {
	_, _, router := newFixture(t, true)
	res := login(t, router, "short")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRequireRejectsMissingAndForgedTokens(t *testing.T) {
	_, _, router := newFixture(t, true)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	forged, _, err := auth.NewTokens("another-secret-another-secret-xx", time.Hour).Issue(auth.User{ID: 7, Email: "rep@crm.test"})
	require.NoError(t, err)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, withToken(http.MethodGet, "/auth/me", forged))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestVerifyBuildsActor(t *testing.T) {
	svc, _, _ := newFixture(t, true)
	res, err := svc.Login(context.Background(), auth.LoginRequest{Email: "rep@crm.test", Password: "correct-horse"})
	require.NoError(t, err)

	actor, err := svc.Verify(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), actor.UserID)
	assert.Equal(t, []string{"sales"}, actor.Roles)
	assert.NotEmpty(t, actor.TokenID)
}

func TestRevocationExpires(t *testing.T) {
	svc, mr, _ := newFixture(t, true)
	ctx := context.Background()
	res, err := svc.Login(ctx, auth.LoginRequest{Email: "rep@crm.test", Password: "correct-horse"})
	require.NoError(t, err)
	actor, err := svc.Verify(ctx, res.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, actor))
	_, err = svc.Verify(ctx, res.Token)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
	require.ErrorIs(t, err, shared.ErrTokenRevoked)

	mr.FastForward(2 * time.Hour)
	assert.Empty(t, mr.Keys())
}
