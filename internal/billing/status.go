package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is a financial document status. Invoices and quotations share the
// DRAFT and SENT values.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusSent          Status = "SENT"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusAccepted      Status = "ACCEPTED"
	StatusRejected      Status = "REJECTED"
)

// PaymentState is the payment-derived part of an invoice.
type PaymentState struct {
	Status Status
	PaidAt *time.Time
}

// DerivePaymentStatus applies the paid amount to an invoice state:
//   - paid <= 0 leaves the state untouched
//   - 0 < paid < total gives PARTIALLY_PAID and clears PaidAt
//   - paid >= total gives PAID, keeping an existing PaidAt or stamping now
//
// Over-payment is accepted as PAID.
func DerivePaymentStatus(current PaymentState, paid, total decimal.Decimal, now time.Time) PaymentState {
	if !paid.IsPositive() {
		return current
	}
	if paid.LessThan(total) {
		return PaymentState{Status: StatusPartiallyPaid}
	}
	if current.Status == StatusPaid && current.PaidAt != nil {
		return current
	}
	stamp := now
	return PaymentState{Status: StatusPaid, PaidAt: &stamp}
}

// Transitions maps a target status to the statuses it may be entered from.
type Transitions map[Status][]Status

// Allows reports whether from -> to is permitted.
func (t Transitions) Allows(from, to Status) bool {
	for _, s := range t[to] {
		if s == from {
			return true
		}
	}
	return false
}

// InvoiceTransitions are the explicit invoice transitions. Payment statuses
// are only reached through DerivePaymentStatus.
var InvoiceTransitions = Transitions{
	StatusSent: {StatusDraft, StatusSent},
}

// QuotationTransitions make ACCEPTED and REJECTED terminal.
var QuotationTransitions = Transitions{
	StatusSent:     {StatusDraft},
	StatusAccepted: {StatusDraft, StatusSent},
	StatusRejected: {StatusDraft, StatusSent},
}
