package invoices

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var (
	ErrNotFound          = fmt.Errorf("invoice not found: %w", httpx.ErrNotFound)
	ErrItemNotFound      = fmt.Errorf("invoice item not found: %w", httpx.ErrNotFound)
	ErrDuplicateNumber   = fmt.Errorf("invoice number already in use: %w", httpx.ErrDuplicate)
	ErrInvalidTransition = fmt.Errorf("invalid invoice status transition: %w", httpx.ErrConflict)
	ErrAlreadyConverted  = fmt.Errorf("quotation already converted: %w", httpx.ErrConflict)
)

// Invoice is the invoice header with its cached totals.
type Invoice struct {
	ID     int64          `json:"id"`
	Number string         `json:"number"`
	Title  string         `json:"title"`
	Status billing.Status `json:"status"`
	billing.Totals
	Currency         string             `json:"currency"`
	TaxOverride      *decimal.Decimal   `json:"tax_override,omitempty"`
	DiscountOverride *decimal.Decimal   `json:"discount_override,omitempty"`
	PaidAmount       decimal.Decimal    `json:"paid_amount"`
	PaidAt           *time.Time         `json:"paid_at,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	LeadID           *int64             `json:"lead_id,omitempty"`
	DealID           *int64             `json:"deal_id,omitempty"`
	CompanyID        *int64             `json:"company_id,omitempty"`
	CompanyName      string             `json:"company_name,omitempty"`
	QuotationID      *int64             `json:"quotation_id,omitempty"`
	CreatedBy        int64              `json:"created_by"`
	IssueDate        time.Time          `json:"issue_date"`
	DueDate          *time.Time         `json:"due_date,omitempty"`
	SentAt           *time.Time         `json:"sent_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Items            []billing.LineItem `json:"items,omitempty"`
}

// Overrides returns the document-level totals overrides.
func (i Invoice) Overrides() billing.Overrides {
	return billing.Overrides{Tax: i.TaxOverride, Discount: i.DiscountOverride}
}

// PaymentState returns the payment-derived part of the invoice.
func (i Invoice) PaymentState() billing.PaymentState {
	return billing.PaymentState{Status: i.Status, PaidAt: i.PaidAt}
}

// Balance is what remains to be paid. Over-payment yields a negative value.
func (i Invoice) Balance() decimal.Decimal {
	return i.TotalAmount.Sub(i.PaidAmount)
}

// Payment is an immutable payment record.
type Payment struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
	PaidOn    time.Time       `json:"paid_on"`
	Reference string          `json:"reference"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateRequest creates an invoice with its items. An empty Number asks for
// a generated one.
type CreateRequest struct {
	Number           string              `json:"number" validate:"max=50"`
	Title            string              `json:"title" validate:"required,max=200"`
	Currency         string              `json:"currency" validate:"omitempty,len=3,uppercase"`
	IssueDate        *time.Time          `json:"issue_date"`
	DueDate          *time.Time          `json:"due_date"`
	TaxOverride      *decimal.Decimal    `json:"tax_override"`
	DiscountOverride *decimal.Decimal    `json:"discount_override"`
	Notes            string              `json:"notes" validate:"max=4000"`
	LeadID           *int64              `json:"lead_id"`
	DealID           *int64              `json:"deal_id"`
	CompanyID        *int64              `json:"company_id"`
	Items            []billing.ItemInput `json:"items" validate:"dive"`

	// QuotationID links a converted quotation. Not accepted from clients.
	QuotationID *int64 `json:"-"`
}

// UpdateRequest patches the invoice header. Nil fields are left unchanged.
type UpdateRequest struct {
	Title            *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Currency         *string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	IssueDate        *time.Time       `json:"issue_date"`
	DueDate          *time.Time       `json:"due_date"`
	TaxOverride      *decimal.Decimal `json:"tax_override"`
	DiscountOverride *decimal.Decimal `json:"discount_override"`
	ClearOverrides   bool             `json:"clear_overrides"`
	Notes            *string          `json:"notes" validate:"omitempty,max=4000"`
	LeadID           *int64           `json:"lead_id"`
	DealID           *int64           `json:"deal_id"`
	CompanyID        *int64           `json:"company_id"`
}

// SendRequest marks an invoice sent and optionally e-mails it.
type SendRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// PaymentRequest records a payment.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	Method    string          `json:"method" validate:"required,max=50"`
	PaidOn    *time.Time      `json:"paid_on"`
	Reference string          `json:"reference" validate:"max=100"`
}

// PaymentResult is the outcome of RecordPayment. Replayed is set when an
// idempotency key matched an earlier request.
type PaymentResult struct {
	Payment  Payment `json:"payment"`
	Invoice  Invoice `json:"invoice"`
	Replayed bool    `json:"replayed"`
}

// ListFilters narrows List and ExportCSV.
type ListFilters struct {
	Page      int
	Limit     int
	Status    string
	Search    string
	CompanyID *int64
	From      *time.Time
	To        *time.Time
}
