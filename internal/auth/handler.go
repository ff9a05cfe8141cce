package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers auth routes on provided router. Only /login is
// public; the rest require a bearer token.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(h.Require)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
	})
}

// Require rejects requests without a valid bearer token and attaches the
// actor to the request context.
func (h *Handler) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			httpx.RespondError(w, ErrUnauthenticated)
			return
		}
		actor, err := h.service.Verify(r.Context(), raw)
		if err != nil {
			if errors.Is(err, httpx.ErrUnauthorized) {
				httpx.RespondError(w, err)
				return
			}
			httpx.Fail(h.logger, w, r, "verify token", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func bearer(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Login(r.Context(), req)
	if errors.Is(err, shared.ErrInvalidCredentials) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "login", err)
		return
	}
	httpx.OK(w, res)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Logout(r.Context(), actor); err != nil {
		httpx.Fail(h.logger, w, r, "logout", err)
		return
	}
	httpx.OK(w, map[string]bool{"logged_out": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	profile, err := h.service.Me(r.Context(), actor)
	if err != nil {
		httpx.Fail(h.logger, w, r, "current user", err)
		return
	}
	httpx.OK(w, profile)
}
