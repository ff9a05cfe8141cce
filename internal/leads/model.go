package leads

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var (
	ErrNotFound = fmt.Errorf("lead not found: %w", httpx.ErrNotFound)
	// ErrAssigneeOutOfScope is returned when a caller assigns a lead to a
	// user outside their visibility.
	ErrAssigneeOutOfScope = fmt.Errorf("assignee outside caller scope: %w", httpx.ErrForbidden)
)

// Status is the qualification stage of a lead.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusContacted Status = "CONTACTED"
	StatusQualified Status = "QUALIFIED"
	StatusLost      Status = "LOST"
	StatusConverted Status = "CONVERTED"
)

// Lead is a prospective customer.
type Lead struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	CompanyName    string          `json:"company_name,omitempty"`
	Source         string          `json:"source,omitempty"`
	Status         Status          `json:"status"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	AssignedTo     *int64          `json:"assigned_to,omitempty"`
	AssigneeName   string          `json:"assignee_name,omitempty"`
	CreatedBy      int64           `json:"created_by"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Owners returns the user ids that own the lead for scope checks.
func (l Lead) Owners() []int64 {
	if l.AssignedTo != nil {
		return []int64{*l.AssignedTo, l.CreatedBy}
	}
	return []int64{l.CreatedBy}
}

// CreateRequest creates a lead. AssignedTo defaults to the caller.
type CreateRequest struct {
	Name           string           `json:"name" validate:"required,max=200"`
	Email          string           `json:"email" validate:"omitempty,email,max=255"`
	Phone          string           `json:"phone" validate:"max=50"`
	CompanyName    string           `json:"company_name" validate:"max=200"`
	Source         string           `json:"source" validate:"max=50"`
	Status         Status           `json:"status" validate:"omitempty,oneof=NEW CONTACTED QUALIFIED LOST CONVERTED"`
	EstimatedValue *decimal.Decimal `json:"estimated_value"`
	AssignedTo     *int64           `json:"assigned_to"`
	Notes          string           `json:"notes" validate:"max=4000"`
}

// UpdateRequest patches a lead. Nil fields are left unchanged.
type UpdateRequest struct {
	Name           *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Email          *string          `json:"email" validate:"omitempty,email,max=255"`
	Phone          *string          `json:"phone" validate:"omitempty,max=50"`
	CompanyName    *string          `json:"company_name" validate:"omitempty,max=200"`
	Source         *string          `json:"source" validate:"omitempty,max=50"`
	Status         *Status          `json:"status" validate:"omitempty,oneof=NEW CONTACTED QUALIFIED LOST CONVERTED"`
	EstimatedValue *decimal.Decimal `json:"estimated_value"`
	AssignedTo     *int64           `json:"assigned_to"`
	Notes          *string          `json:"notes" validate:"omitempty,max=4000"`
}

// ListFilters narrows List.
type ListFilters struct {
	Page       int
	Limit      int
	Status     string
	Source     string
	AssignedTo *int64
	Search     string
}
