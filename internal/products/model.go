package products

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
)

var (
	ErrNotFound     = fmt.Errorf("product not found: %w", httpx.ErrNotFound)
	ErrDuplicateSKU = fmt.Errorf("sku already exists: %w", httpx.ErrDuplicate)
	ErrInvalidRate  = fmt.Errorf("tax rate must be between 0 and 100: %w", httpx.ErrValidation)
	ErrInvalidPrice = fmt.Errorf("unit price must not be negative: %w", httpx.ErrValidation)
)

// Product is a catalogue entry used to prefill document line items.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Description string          `json:"description,omitempty"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Input is the create and replace payload.
type Input struct {
	Name        string          `json:"name" validate:"required,max=200"`
	SKU         string          `json:"sku" validate:"required,max=64"`
	Description string          `json:"description" validate:"max=2000"`
	Unit        string          `json:"unit" validate:"max=20"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	IsActive    *bool           `json:"is_active"`
}

// ListFilters narrows List.
type ListFilters struct {
	Page   int
	Limit  int
	Active *bool
	Search string
}
