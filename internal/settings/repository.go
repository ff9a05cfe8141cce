package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
)

// Repository persists the settings row.
type Repository interface {
	// Get returns the stored settings and false when none were saved yet.
	Get(ctx context.Context) (Business, bool, error)
	Save(ctx context.Context, b Business) (Business, error)
}

type pgRepository struct {
	db db.DBTX
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(q db.DBTX) Repository {
	return &pgRepository{db: q}
}

const selectSettings = `SELECT company_name, address, email, phone, tax_id, logo_url, pdf_template, default_currency,
	invoice_prefix, invoice_suffix, invoice_width, quotation_prefix, quotation_suffix, quotation_width, updated_at
FROM business_settings WHERE id = 1`

func scanBusiness(row pgx.Row) (Business, error) {
	var b Business
	err := row.Scan(&b.CompanyName, &b.Address, &b.Email, &b.Phone, &b.TaxID, &b.LogoURL, &b.PDFTemplate, &b.DefaultCurrency,
		&b.InvoiceFormat.Prefix, &b.InvoiceFormat.Suffix, &b.InvoiceFormat.Width,
		&b.QuotationFormat.Prefix, &b.QuotationFormat.Suffix, &b.QuotationFormat.Width, &b.UpdatedAt)
	return b, err
}

func (r *pgRepository) Get(ctx context.Context) (Business, bool, error) {
	b, err := scanBusiness(r.db.QueryRow(ctx, selectSettings))
	if errors.Is(err, pgx.ErrNoRows) {
		return Business{}, false, nil
	}
	if err != nil {
		return Business{}, false, err
	}
	return b, true, nil
}

func (r *pgRepository) Save(ctx context.Context, b Business) (Business, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO business_settings (id, company_name, address, email, phone, tax_id, logo_url, pdf_template, default_currency,
	invoice_prefix, invoice_suffix, invoice_width, quotation_prefix, quotation_suffix, quotation_width, updated_at)
VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
ON CONFLICT (id) DO UPDATE SET company_name = EXCLUDED.company_name, address = EXCLUDED.address, email = EXCLUDED.email,
	phone = EXCLUDED.phone, tax_id = EXCLUDED.tax_id, logo_url = EXCLUDED.logo_url, pdf_template = EXCLUDED.pdf_template,
	default_currency = EXCLUDED.default_currency, invoice_prefix = EXCLUDED.invoice_prefix, invoice_suffix = EXCLUDED.invoice_suffix,
	invoice_width = EXCLUDED.invoice_width, quotation_prefix = EXCLUDED.quotation_prefix, quotation_suffix = EXCLUDED.quotation_suffix,
	quotation_width = EXCLUDED.quotation_width, updated_at = NOW()
RETURNING company_name, address, email, phone, tax_id, logo_url, pdf_template, default_currency,
	invoice_prefix, invoice_suffix, invoice_width, quotation_prefix, quotation_suffix, quotation_width, updated_at`,
		b.CompanyName, b.Address, b.Email, b.Phone, b.TaxID, b.LogoURL, b.PDFTemplate, b.DefaultCurrency,
		b.InvoiceFormat.Prefix, b.InvoiceFormat.Suffix, b.InvoiceFormat.Width,
		b.QuotationFormat.Prefix, b.QuotationFormat.Suffix, b.QuotationFormat.Width)
	return scanBusiness(row)
}
