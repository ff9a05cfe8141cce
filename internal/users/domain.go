package users

import (
	"fmt"
	"time"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var (
	ErrNotFound       = fmt.Errorf("user not found: %w", httpx.ErrNotFound)
	ErrDuplicateEmail = fmt.Errorf("email already registered: %w", httpx.ErrDuplicate)
	ErrUnknownRole    = fmt.Errorf("unknown role: %w", httpx.ErrValidation)
	ErrSelfManaged    = fmt.Errorf("user cannot manage themselves: %w", httpx.ErrValidation)
	ErrSelfDelete     = fmt.Errorf("cannot delete the current user: %w", httpx.ErrConflict)
)

// RoleRef is a role assigned to a user.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User represents a user account for management.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ManagerID *int64    `json:"manager_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	Roles     []RoleRef `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Draft is what the repository persists on create.
type Draft struct {
	Email        string
	Name         string
	PasswordHash string
	ManagerID    *int64
	IsActive     bool
}

// CreateRequest creates a user with optional role assignments.
type CreateRequest struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Name      string  `json:"name" validate:"required,max=120"`
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	ManagerID *int64  `json:"manager_id"`
	IsActive  *bool   `json:"is_active"`
	RoleIDs   []int64 `json:"role_ids"`
}

// UpdateRequest patches a user. Nil fields are left unchanged.
type UpdateRequest struct {
	Email        *string `json:"email" validate:"omitempty,email,max=255"`
	Name         *string `json:"name" validate:"omitempty,min=1,max=120"`
	Password     *string `json:"password" validate:"omitempty,min=8,max=72"`
	ManagerID    *int64  `json:"manager_id"`
	ClearManager bool    `json:"clear_manager"`
	IsActive     *bool   `json:"is_active"`
}

// RolesRequest replaces a user's role assignments.
type RolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"dive,gt=0"`
}

// ListFilters narrows List.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	Active   *bool
	RoleID   *int64
	Managers bool
}
