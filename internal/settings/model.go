package settings

import (
	"time"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
)

// PDF templates shipped with the binary.
const (
	TemplateClassic = "classic"
	TemplateModern  = "modern"
)

// Business is the single business settings record.
type Business struct {
	CompanyName     string         `json:"company_name"`
	Address         string         `json:"address"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	TaxID           string         `json:"tax_id"`
	LogoURL         string         `json:"logo_url"`
	PDFTemplate     string         `json:"pdf_template"`
	DefaultCurrency string         `json:"default_currency"`
	InvoiceFormat   billing.Format `json:"invoice_number"`
	QuotationFormat billing.Format `json:"quotation_number"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Defaults is what a fresh installation uses until settings are saved.
func Defaults() Business {
	return Business{
		PDFTemplate:     TemplateClassic,
		DefaultCurrency: "USD",
		InvoiceFormat:   billing.DefaultInvoiceFormat,
		QuotationFormat: billing.DefaultQuotationFormat,
	}
}

// Format returns the number format configured for docType.
func (b Business) Format(docType billing.DocType) billing.Format {
	if docType == billing.DocQuotation {
		return b.QuotationFormat
	}
	return b.InvoiceFormat
}

// UpdateRequest is the PUT /settings/business payload.
type UpdateRequest struct {
	CompanyName     string          `json:"company_name" validate:"required,max=200"`
	Address         string          `json:"address" validate:"max=500"`
	Email           string          `json:"email" validate:"omitempty,email"`
	Phone           string          `json:"phone" validate:"max=50"`
	TaxID           string          `json:"tax_id" validate:"max=50"`
	LogoURL         string          `json:"logo_url" validate:"omitempty,url"`
	PDFTemplate     string          `json:"pdf_template" validate:"omitempty,oneof=classic modern"`
	DefaultCurrency string          `json:"default_currency" validate:"omitempty,len=3,uppercase"`
	InvoiceNumber   *NumberSettings `json:"invoice_number"`
	QuotationNumber *NumberSettings `json:"quotation_number"`
}

// NumberSettings configures one document number format.
type NumberSettings struct {
	Prefix string `json:"prefix" validate:"max=20"`
	Suffix string `json:"suffix" validate:"max=20"`
	Width  int    `json:"width" validate:"gte=1,lte=12"`
}
