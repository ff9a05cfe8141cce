package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents an authenticated user account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Claims is the JWT payload of an access token.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Profile is the /auth/me payload.
type Profile struct {
	User        User     `json:"user"`
	Permissions []string `json:"permissions"`
}
