package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// ErrUnauthenticated is returned for missing, invalid, expired or revoked tokens.
var ErrUnauthenticated = fmt.Errorf("authentication required: %w", httpx.ErrUnauthorized)

// RevocationList stores logged-out token ids.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// PermissionSource resolves effective permission keys.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo        Repository
	tokens      *Tokens
	revocations RevocationList
	perms       PermissionSource
	logger      *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *Tokens, revocations RevocationList, perms PermissionSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, revocations: revocations, perms: perms, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("auth lookup", slog.Any("error", err))
		}
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues an access token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if err := httpx.Validate(req); err != nil {
		return LoginResult{}, err
	}
	user, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResult{}, err
	}
	token, claims, err := s.tokens.Issue(*user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, TokenType: "Bearer", ExpiresAt: claims.ExpiresAt.Time, User: *user}, nil
}

// Verify turns a bearer token into the calling actor.
func (s *Service) Verify(ctx context.Context, raw string) (shared.Actor, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return shared.Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return shared.Actor{}, fmt.Errorf("auth: revocation lookup: %w", err)
	}
	if revoked {
		return shared.Actor{}, fmt.Errorf("%w: %w", ErrUnauthenticated, shared.ErrTokenRevoked)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return shared.Actor{}, fmt.Errorf("%w: bad subject", ErrUnauthenticated)
	}
	return shared.Actor{UserID: id, Email: claims.Email, Roles: claims.Roles, TokenID: claims.ID}, nil
}

// Logout revokes the actor's token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, actor shared.Actor) error {
	if actor.TokenID == "" {
		return ErrUnauthenticated
	}
	if err := s.revocations.Revoke(ctx, actor.TokenID, s.tokens.TTL()); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}

// Me returns the caller's profile and effective permissions.
func (s *Service) Me(ctx context.Context, actor shared.Actor) (Profile, error) {
	user, err := s.repo.FindByID(ctx, actor.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		return Profile{}, ErrUnauthenticated
	}
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{User: *user, Permissions: []string{}}
	if s.perms != nil {
		perms, err := s.perms.EffectivePermissions(ctx, actor.UserID)
		if err != nil {
			return Profile{}, err
		}
		if perms != nil {
			profile.Permissions = perms
		}
	}
	return profile, nil
}
