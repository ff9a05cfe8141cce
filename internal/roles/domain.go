package roles

import (
	"fmt"
	"time"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var (
	ErrNotFound          = fmt.Errorf("role not found: %w", httpx.ErrNotFound)
	ErrDuplicateName     = fmt.Errorf("role name already in use: %w", httpx.ErrDuplicate)
	ErrUnknownPermission = fmt.Errorf("unknown permission: %w", httpx.ErrValidation)
	ErrInvalidScope      = fmt.Errorf("access scope must be GLOBAL, TEAM or SELF: %w", httpx.ErrValidation)
)

// Role represents a role for management.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	AccessScope access.Scope `json:"access_scope"`
	IsActive    bool         `json:"is_active"`
	Permissions []string     `json:"permissions"`
	UserCount   int          `json:"user_count"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// CreateRequest creates a role.
type CreateRequest struct {
	Name        string       `json:"name" validate:"required,max=80"`
	Description string       `json:"description" validate:"max=500"`
	AccessScope access.Scope `json:"access_scope"`
	IsActive    *bool        `json:"is_active"`
	Permissions []string     `json:"permissions"`
}

// UpdateRequest patches a role. Nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string       `json:"name" validate:"omitempty,min=1,max=80"`
	Description *string       `json:"description" validate:"omitempty,max=500"`
	AccessScope *access.Scope `json:"access_scope"`
	IsActive    *bool         `json:"is_active"`
}

// PermissionsRequest replaces a role's permission set.
type PermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// ListFilters narrows List.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
}
