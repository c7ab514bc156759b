// Package pricing computes line totals, subtotals, and bill totals. All
// functions are pure; money is decimal throughout.
package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// TaxRate is the fixed tax applied on top of an order subtotal.
var TaxRate = decimal.NewFromFloat(0.10)

// Validation errors returned before any computation happens.
var (
	ErrNegativePrice      = errors.New("price must not be negative")
	ErrNegativeAdjustment = errors.New("modifier adjustment must not be negative")
	ErrInvalidQuantity    = errors.New("quantity must be greater than 0")
)

// LineTotal returns (basePrice + Σ adjustments) × quantity. Negative prices,
// negative adjustments, and quantities below 1 are rejected.
func LineTotal(basePrice decimal.Decimal, adjustments []decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if basePrice.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	if quantity < 1 {
		return decimal.Zero, ErrInvalidQuantity
	}

	unit := basePrice
	for i, adj := range adjustments {
		if adj.IsNegative() {
			return decimal.Zero, fmt.Errorf("adjustment %d: %w", i, ErrNegativeAdjustment)
		}
		unit = unit.Add(adj)
	}

	return unit.Mul(decimal.NewFromInt(int64(quantity))), nil
}

// Line holds the inputs needed to recompute one persisted line total.
type Line struct {
	UnitPrice   decimal.Decimal
	Adjustments []decimal.Decimal
	Quantity    int
}

// Subtotal recomputes an order subtotal from its lines. Recomputing from
// persisted lines must always reproduce the order's cached subtotal.
func Subtotal(lines []Line) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i, l := range lines {
		total, err := LineTotal(l.UnitPrice, l.Adjustments, l.Quantity)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "line %d", i)
		}
		sum = sum.Add(total)
	}
	return sum, nil
}

// Tax returns the tax due on a subtotal.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate)
}

// Total returns subtotal × (1 + TaxRate).
func Total(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Add(Tax(subtotal))
}
