package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(qty, price, tax, discount string) Line {
	return Line{Quantity: d(qty), UnitPrice: d(price), TaxRate: d(tax), DiscountRate: d(discount)}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: want %s got %s", field, want, got)
}

func TestSingleTaxedLine(t *testing.T) {
	l := line("2", "100", "10", "0")
	totals := ComputeTotals([]Line{l})

	assertMoney(t, "200", totals.Subtotal, "subtotal")
	assertMoney(t, "20", totals.TaxAmount, "tax")
	assertMoney(t, "0", totals.DiscountAmount, "discount")
	assertMoney(t, "220", totals.TotalAmount, "total")
	assertMoney(t, "220", l.Total(), "line total")
}

func TestSecondDiscountedLine(t *testing.T) {
	totals := ComputeTotals([]Line{line("2", "100", "10", "0"), line("1", "50", "0", "10")})

	assertMoney(t, "250", totals.Subtotal, "subtotal")
	assertMoney(t, "20", totals.TaxAmount, "tax")
	assertMoney(t, "5", totals.DiscountAmount, "discount")
	assertMoney(t, "265", totals.TotalAmount, "total")
}

func TestLineCompoundsWhileDocumentDoesNot(t *testing.T) {
	l := line("1", "100", "10", "10")

	// 100 * 1.10 * 0.90
	assertMoney(t, "99", l.Total(), "line total")

	totals := ComputeTotals([]Line{l})
	// 100 + 10 - 10
	assertMoney(t, "100", totals.TotalAmount, "document total")
}

func TestEmptyInputYieldsZeros(t *testing.T) {
	totals := ComputeTotals(nil)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.TotalAmount.IsZero())
	assert.True(t, totals.Balanced())
}

func TestTotalsBalanceAfterRounding(t *testing.T) {
	lines := []Line{
		line("3", "33.3333", "7.5", "2.5"),
		line("0.5", "19.99", "12.25", "0"),
		line("7", "0.015", "0", "33.33"),
	}
	totals := ComputeTotals(lines)
	assert.True(t, totals.Balanced())
	for _, v := range []decimal.Decimal{totals.Subtotal, totals.TaxAmount, totals.DiscountAmount} {
		assert.LessOrEqual(t, -v.Exponent(), int32(MoneyPlaces))
	}
}

func TestRoundingIsHalfUp(t *testing.T) {
	totals := ComputeTotals([]Line{line("1", "0.005", "0", "0")})
	assertMoney(t, "0.01", totals.Subtotal, "subtotal")
}

func TestComputeTotalsIsIdempotent(t *testing.T) {
	lines := []Line{line("2", "100", "10", "0"), line("1", "50", "0", "10")}
	assert.Equal(t, ComputeTotals(lines), ComputeTotals(lines))
}

func TestOverridesReplaceAggregates(t *testing.T) {
	base := ComputeTotals([]Line{line("2", "100", "10", "0")})
	tax := d("15")
	discount := d("5.555")

	got := Overrides{Tax: &tax, Discount: &discount}.Apply(base)
	assertMoney(t, "15", got.TaxAmount, "tax")
	assertMoney(t, "5.56", got.DiscountAmount, "discount")
	assertMoney(t, "209.44", got.TotalAmount, "total")
	assert.True(t, got.Balanced())

	assert.Equal(t, base, Overrides{}.Apply(base))
}

func TestLineItemPriced(t *testing.T) {
	it := LineItem{Quantity: d("3"), UnitPrice: d("9.999"), TaxRate: d("5"), DiscountRate: d("0")}.Priced()
	assertMoney(t, "30", it.Subtotal, "subtotal")
	assertMoney(t, "31.5", it.TotalAmount, "total")
}

func TestRecomputeAppliesOverrides(t *testing.T) {
	items := []LineItem{
		ItemInput{Name: "a", Quantity: d("2"), UnitPrice: d("100"), TaxRate: d("10")}.Item(),
		ItemInput{Name: "b", Quantity: d("1"), UnitPrice: d("50"), DiscountRate: d("10")}.Item(),
	}
	assert.True(t, Recompute(items, Overrides{}).TotalAmount.Equal(d("265")))

	tax := d("0")
	got := Recompute(items, Overrides{Tax: &tax})
	assert.True(t, got.TotalAmount.Equal(d("245")))
	assert.True(t, got.Balanced())
}

func TestItemInputCheck(t *testing.T) {
	ok := ItemInput{Name: "a", Quantity: d("1"), UnitPrice: d("0")}
	require.NoError(t, ok.Check())

	bad := []ItemInput{
		{Name: "a", Quantity: d("0"), UnitPrice: d("1")},
		{Name: "a", Quantity: d("1"), UnitPrice: d("-1")},
		{Name: "a", Quantity: d("1"), UnitPrice: d("1"), TaxRate: d("101")},
		{Name: "a", Quantity: d("1"), UnitPrice: d("1"), DiscountRate: d("-5")},
	}
	for _, in := range bad {
		require.ErrorIs(t, in.Check(), ErrInvalidLine)
	}
}
