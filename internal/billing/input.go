package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidLine reports a line item outside the accepted ranges.
var ErrInvalidLine = errors.New("billing: invalid line item")

var hundred = decimal.NewFromInt(100)

// ItemInput is the client payload for a line item.
type ItemInput struct {
	ProductID    *int64          `json:"product_id"`
	Name         string          `json:"name" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=2000"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit" validate:"max=20"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	SortOrder    int             `json:"sort_order" validate:"gte=0"`
}

// Check enforces the numeric ranges the validator tags cannot express on
// decimals.
func (in ItemInput) Check() error {
	switch {
	case !in.Quantity.IsPositive():
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidLine)
	case in.UnitPrice.IsNegative():
		return fmt.Errorf("%w: unit_price must not be negative", ErrInvalidLine)
	case in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(hundred):
		return fmt.Errorf("%w: tax_rate must be between 0 and 100", ErrInvalidLine)
	case in.DiscountRate.IsNegative() || in.DiscountRate.GreaterThan(hundred):
		return fmt.Errorf("%w: discount_rate must be between 0 and 100", ErrInvalidLine)
	}
	return nil
}

// Item converts the input into an unsaved, priced line item.
func (in ItemInput) Item() LineItem {
	return LineItem{
		ProductID:    in.ProductID,
		Name:         in.Name,
		Description:  in.Description,
		Quantity:     in.Quantity,
		Unit:         in.Unit,
		UnitPrice:    in.UnitPrice,
		TaxRate:      in.TaxRate,
		DiscountRate: in.DiscountRate,
		SortOrder:    in.SortOrder,
	}.Priced()
}

// Input converts a stored item back into a payload, for copying items
// between documents.
func (it LineItem) Input() ItemInput {
	return ItemInput{
		ProductID:    it.ProductID,
		Name:         it.Name,
		Description:  it.Description,
		Quantity:     it.Quantity,
		Unit:         it.Unit,
		UnitPrice:    it.UnitPrice,
		TaxRate:      it.TaxRate,
		DiscountRate: it.DiscountRate,
		SortOrder:    it.SortOrder,
	}
}
