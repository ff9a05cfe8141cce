package quotations

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var (
	ErrNotFound          = fmt.Errorf("quotation not found: %w", httpx.ErrNotFound)
	ErrItemNotFound      = fmt.Errorf("quotation item not found: %w", httpx.ErrNotFound)
	ErrDuplicateNumber   = fmt.Errorf("quotation number already in use: %w", httpx.ErrDuplicate)
	ErrInvalidTransition = fmt.Errorf("invalid quotation status transition: %w", httpx.ErrConflict)
	ErrAlreadyConverted  = fmt.Errorf("quotation already converted to an invoice: %w", httpx.ErrConflict)
)

// Quotation is the quotation header with its cached totals.
type Quotation struct {
	ID     int64          `json:"id"`
	Number string         `json:"number"`
	Title  string         `json:"title"`
	Status billing.Status `json:"status"`
	billing.Totals
	Currency           string             `json:"currency"`
	TaxOverride        *decimal.Decimal   `json:"tax_override,omitempty"`
	DiscountOverride   *decimal.Decimal   `json:"discount_override,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	LeadID             *int64             `json:"lead_id,omitempty"`
	DealID             *int64             `json:"deal_id,omitempty"`
	CompanyID          *int64             `json:"company_id,omitempty"`
	CompanyName        string             `json:"company_name,omitempty"`
	CreatedBy          int64              `json:"created_by"`
	IssueDate          time.Time          `json:"issue_date"`
	ValidUntil         *time.Time         `json:"valid_until,omitempty"`
	SentAt             *time.Time         `json:"sent_at,omitempty"`
	AcceptedAt         *time.Time         `json:"accepted_at,omitempty"`
	RejectedAt         *time.Time         `json:"rejected_at,omitempty"`
	RejectionReason    string             `json:"rejection_reason,omitempty"`
	ConvertedInvoiceID *int64             `json:"converted_invoice_id,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Items              []billing.LineItem `json:"items,omitempty"`
}

// Overrides returns the document-level totals overrides.
func (q Quotation) Overrides() billing.Overrides {
	return billing.Overrides{Tax: q.TaxOverride, Discount: q.DiscountOverride}
}

// StatusChange is a status transition to persist.
type StatusChange struct {
	Status billing.Status
	At     time.Time
	Reason string
}

// CreateRequest creates a quotation with its items.
type CreateRequest struct {
	Number           string              `json:"number" validate:"max=50"`
	Title            string              `json:"title" validate:"required,max=200"`
	Currency         string              `json:"currency" validate:"omitempty,len=3,uppercase"`
	IssueDate        *time.Time          `json:"issue_date"`
	ValidUntil       *time.Time          `json:"valid_until"`
	TaxOverride      *decimal.Decimal    `json:"tax_override"`
	DiscountOverride *decimal.Decimal    `json:"discount_override"`
	Notes            string              `json:"notes" validate:"max=4000"`
	LeadID           *int64              `json:"lead_id"`
	DealID           *int64              `json:"deal_id"`
	CompanyID        *int64              `json:"company_id"`
	Items            []billing.ItemInput `json:"items" validate:"dive"`
}

// UpdateRequest patches the header. Nil fields are left unchanged.
type UpdateRequest struct {
	Title            *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Currency         *string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	IssueDate        *time.Time       `json:"issue_date"`
	ValidUntil       *time.Time       `json:"valid_until"`
	TaxOverride      *decimal.Decimal `json:"tax_override"`
	DiscountOverride *decimal.Decimal `json:"discount_override"`
	ClearOverrides   bool             `json:"clear_overrides"`
	Notes            *string          `json:"notes" validate:"omitempty,max=4000"`
	LeadID           *int64           `json:"lead_id"`
	DealID           *int64           `json:"deal_id"`
	CompanyID        *int64           `json:"company_id"`
}

// SendRequest marks a quotation sent and optionally e-mails it.
type SendRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// RejectRequest carries the rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// ListFilters narrows List.
type ListFilters struct {
	Page      int
	Limit     int
	Status    string
	Search    string
	CompanyID *int64
	From      *time.Time
	To        *time.Time
}
