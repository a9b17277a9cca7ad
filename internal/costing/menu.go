package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"menucost/internal/pricing"
)

// PriceScale is the number of fractional digits kept on sale prices.
const PriceScale = 2

// MenuEntryPrice is the recomputed cost and price of a menu entry.
// SuggestedPrice is left as stored when the entry carries an override.
type MenuEntryPrice struct {
	EntryID        uint
	Cost           decimal.Decimal
	SuggestedPrice decimal.Decimal
	Overridden     bool
	Unpriced       bool
}

// PriceMenuEntry re-costs the entry from its product and applies the entry's
// pricing target.
func (c *Calculator) PriceMenuEntry(ref MenuEntryRef) (MenuEntryPrice, error) {
	entry := ref.Entry
	if _, ok := c.snap.Products[entry.ProductID]; !ok {
		return MenuEntryPrice{}, fmt.Errorf("%w: menu entry %d product %d", ErrMissingComponent, entry.ID, entry.ProductID)
	}

	var (
		cost     decimal.Decimal
		unpriced bool
	)
	if entry.SizeOptionID != nil {
		var err error
		cost, unpriced, err = c.productSizeCost(entry.ProductID, *entry.SizeOptionID)
		if err != nil {
			return MenuEntryPrice{}, fmt.Errorf("menu entry %d: %w", entry.ID, err)
		}
	} else {
		cost, unpriced = c.productBase(entry.ProductID)
	}
	if cost.Sign() < 0 {
		return MenuEntryPrice{}, fmt.Errorf("%w: menu entry %d cost %s", ErrNegativeCost, entry.ID, cost)
	}

	result := MenuEntryPrice{
		EntryID:        entry.ID,
		Cost:           cost,
		SuggestedPrice: entry.SuggestedPrice,
		Overridden:     entry.OverridePrice.Valid,
		Unpriced:       unpriced,
	}
	if result.Overridden {
		return result, nil
	}

	mode, target := entry.PricingMode, entry.TargetMargin
	if mode == "" && ref.Menu != nil {
		mode, target = ref.Menu.PricingMode, ref.Menu.TargetMargin
	}
	price, err := pricing.SuggestedPrice(mode, cost, target)
	if err != nil {
		return MenuEntryPrice{}, fmt.Errorf("menu entry %d: %w", entry.ID, err)
	}
	result.SuggestedPrice = price.Round(PriceScale)
	return result, nil
}
