// Package documents renders invoices and quotations to PDF.
package documents

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
)

// Party is the customer block printed on a document.
type Party struct {
	Name    string
	Email   string
	Address string
}

// Document is the resolved view a template renders.
type Document struct {
	Kind       string
	Number     string
	Title      string
	Status     string
	Currency   string
	Notes      string
	IssueDate  time.Time
	DueLabel   string
	DueDate    *time.Time
	BillTo     *Party
	Items      []billing.LineItem
	Totals     billing.Totals
	PaidAmount *decimal.Decimal
}

// Balance is the amount still due.
func (d Document) Balance() decimal.Decimal {
	if d.PaidAmount == nil {
		return d.Totals.TotalAmount
	}
	return d.Totals.TotalAmount.Sub(*d.PaidAmount)
}

// Filename is the attachment name used for downloads.
func (d Document) Filename() string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ' ':
			return '-'
		}
		return r
	}, d.Number)
	if name == "" {
		name = strings.ToLower(d.Kind)
	}
	return name + ".pdf"
}
