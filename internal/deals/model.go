package deals

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var (
	ErrNotFound        = fmt.Errorf("deal not found: %w", httpx.ErrNotFound)
	ErrOwnerOutOfScope = fmt.Errorf("owner outside caller scope: %w", httpx.ErrForbidden)
)

// Stage is a pipeline stage.
type Stage string

const (
	StageProspecting   Stage = "PROSPECTING"
	StageQualification Stage = "QUALIFICATION"
	StageProposal      Stage = "PROPOSAL"
	StageNegotiation   Stage = "NEGOTIATION"
	StageWon           Stage = "WON"
	StageLost          Stage = "LOST"
)

// Closed reports whether the stage ends the pipeline.
func (s Stage) Closed() bool { return s == StageWon || s == StageLost }

// Deal is a sales opportunity.
type Deal struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title"`
	Value             decimal.Decimal `json:"value"`
	Currency          string          `json:"currency"`
	Stage             Stage           `json:"stage"`
	Probability       int             `json:"probability"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date,omitempty"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty"`
	LeadID            *int64          `json:"lead_id,omitempty"`
	CompanyID         *int64          `json:"company_id,omitempty"`
	CompanyName       string          `json:"company_name,omitempty"`
	OwnerID           int64           `json:"owner_id"`
	OwnerName         string          `json:"owner_name,omitempty"`
	CreatedBy         int64           `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CreateRequest creates a deal. OwnerID defaults to the caller.
type CreateRequest struct {
	Title             string           `json:"title" validate:"required,max=200"`
	Value             *decimal.Decimal `json:"value"`
	Currency          string           `json:"currency" validate:"omitempty,len=3,uppercase"`
	Stage             Stage            `json:"stage" validate:"omitempty,oneof=PROSPECTING QUALIFICATION PROPOSAL NEGOTIATION WON LOST"`
	Probability       *int             `json:"probability" validate:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date"`
	LeadID            *int64           `json:"lead_id"`
	CompanyID         *int64           `json:"company_id"`
	OwnerID           *int64           `json:"owner_id"`
}

// UpdateRequest patches a deal. Nil fields are left unchanged.
type UpdateRequest struct {
	Title             *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Value             *decimal.Decimal `json:"value"`
	Currency          *string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	Stage             *Stage           `json:"stage" validate:"omitempty,oneof=PROSPECTING QUALIFICATION PROPOSAL NEGOTIATION WON LOST"`
	Probability       *int             `json:"probability" validate:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date"`
	LeadID            *int64           `json:"lead_id"`
	CompanyID         *int64           `json:"company_id"`
	OwnerID           *int64           `json:"owner_id"`
}

// ListFilters narrows List.
type ListFilters struct {
	Page      int
	Limit     int
	Stage     string
	OwnerID   *int64
	CompanyID *int64
	Open      bool
	Search    string
}
