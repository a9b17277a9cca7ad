// Package pricing turns a cost and a target percentage into a sale price
// under either the margin-of-price or the markup-on-cost model.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"menucost/models"
)

// Scale is the number of fractional digits kept on price divisions.
const Scale = 12

var ErrInvalidPricingInput = errors.New("pricing: invalid pricing input")

var (
	hundred   = decimal.NewFromInt(100)
	maxMargin = decimal.NewFromInt(99)
)

// ValidateTarget checks a target percentage for the given mode. Margin targets
// must lie in [0, 99]; markup targets only need to be non-negative.
func ValidateTarget(mode models.PricingMode, target decimal.Decimal) error {
	if target.IsNegative() {
		return fmt.Errorf("%w: target %s is negative", ErrInvalidPricingInput, target)
	}
	switch mode {
	case models.PricingMargin:
		if target.GreaterThan(maxMargin) {
			return fmt.Errorf("%w: margin %s must be below 100", ErrInvalidPricingInput, target)
		}
	case models.PricingMarkup:
	default:
		return fmt.Errorf("%w: unknown pricing mode %q", ErrInvalidPricingInput, mode)
	}
	return nil
}

func validateCost(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return fmt.Errorf("%w: cost %s is negative", ErrInvalidPricingInput, cost)
	}
	return nil
}

// MarginPrice returns cost / (1 - m/100).
func MarginPrice(cost, margin decimal.Decimal) (decimal.Decimal, error) {
	if err := validateCost(cost); err != nil {
		return decimal.Zero, err
	}
	if err := ValidateTarget(models.PricingMargin, margin); err != nil {
		return decimal.Zero, err
	}
	divisor := hundred.Sub(margin)
	return cost.Mul(hundred).DivRound(divisor, Scale), nil
}

// MarkupPrice returns cost * (1 + m/100).
func MarkupPrice(cost, markup decimal.Decimal) (decimal.Decimal, error) {
	if err := validateCost(cost); err != nil {
		return decimal.Zero, err
	}
	if err := ValidateTarget(models.PricingMarkup, markup); err != nil {
		return decimal.Zero, err
	}
	return cost.Mul(hundred.Add(markup)).DivRound(hundred, Scale), nil
}

// SuggestedPrice dispatches on the pricing mode.
func SuggestedPrice(mode models.PricingMode, cost, target decimal.Decimal) (decimal.Decimal, error) {
	switch mode {
	case models.PricingMargin:
		return MarginPrice(cost, target)
	case models.PricingMarkup:
		return MarkupPrice(cost, target)
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown pricing mode %q", ErrInvalidPricingInput, mode)
	}
}

// EffectiveMargin returns (price - cost) / price * 100 whatever the menu's
// mode. It is meant for display and audit only.
func EffectiveMargin(price, cost decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: price %s must be positive", ErrInvalidPricingInput, price)
	}
	if err := validateCost(cost); err != nil {
		return decimal.Zero, err
	}
	return price.Sub(cost).Mul(hundred).DivRound(price, Scale), nil
}

// MarkupAsMargin converts a markup percentage into the margin it yields,
// m * 100 / (100 + m).
func MarkupAsMargin(markup decimal.Decimal) decimal.Decimal {
	return markup.Mul(hundred).DivRound(hundred.Add(markup), Scale)
}
