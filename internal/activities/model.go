package activities

import (
	"fmt"
	"time"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var (
	ErrNotFound         = fmt.Errorf("activity not found: %w", httpx.ErrNotFound)
	ErrAlreadyCompleted = fmt.Errorf("activity already completed: %w", httpx.ErrConflict)
	ErrLeadNotVisible   = fmt.Errorf("lead outside caller scope: %w", httpx.ErrForbidden)
)

// Type classifies an activity.
type Type string

const (
	TypeCall    Type = "CALL"
	TypeMeeting Type = "MEETING"
	TypeTask    Type = "TASK"
	TypeNote    Type = "NOTE"
	TypeEmail   Type = "EMAIL"
)

// Activity is a logged or scheduled interaction.
type Activity struct {
	ID           int64      `json:"id"`
	Type         Type       `json:"type"`
	Subject      string     `json:"subject"`
	Description  string     `json:"description,omitempty"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	LeadID       *int64     `json:"lead_id,omitempty"`
	LeadName     string     `json:"lead_name,omitempty"`
	LeadAssignee *int64     `json:"-"`
	DealID       *int64     `json:"deal_id,omitempty"`
	CreatedBy    int64      `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Completed reports whether the activity has been closed.
func (a Activity) Completed() bool { return a.CompletedAt != nil }

// Owners lists the users through whom the activity is visible.
func (a Activity) Owners() []int64 {
	owners := []int64{a.CreatedBy}
	if a.LeadAssignee != nil {
		owners = append(owners, *a.LeadAssignee)
	}
	return owners
}

// CreateRequest logs an activity.
type CreateRequest struct {
	Type        Type       `json:"type" validate:"required,oneof=CALL MEETING TASK NOTE EMAIL"`
	Subject     string     `json:"subject" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	DueAt       *time.Time `json:"due_at"`
	LeadID      *int64     `json:"lead_id" validate:"omitempty,gt=0"`
	DealID      *int64     `json:"deal_id" validate:"omitempty,gt=0"`
}

// UpdateRequest patches an activity.
type UpdateRequest struct {
	Type        *Type      `json:"type" validate:"omitempty,oneof=CALL MEETING TASK NOTE EMAIL"`
	Subject     *string    `json:"subject" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueAt       *time.Time `json:"due_at"`
	LeadID      *int64     `json:"lead_id" validate:"omitempty,gt=0"`
	DealID      *int64     `json:"deal_id" validate:"omitempty,gt=0"`
}

// ListFilters narrows List.
type ListFilters struct {
	Page      int
	Limit     int
	Type      string
	LeadID    *int64
	DealID    *int64
	Pending   bool
	DueBefore *time.Time
	Search    string
}
