package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"menucost/models"
)

// IngredientCost is the resolved price of an ingredient per base unit.
type IngredientCost struct {
	IngredientID uint
	UnitCost     decimal.Decimal
	BaseUnitID   uint
	Unpriced     bool
	// EntryID is the supplier entry that set the price, zero when unpriced.
	EntryID uint
}

// LatestEntry picks the most recent purchase: latest Date, then latest
// CreatedAt, then highest ID.
func LatestEntry(entries []models.SupplierEntry) (models.SupplierEntry, bool) {
	if len(entries) == 0 {
		return models.SupplierEntry{}, false
	}
	latest := entries[0]
	for _, entry := range entries[1:] {
		if newerEntry(entry, latest) {
			latest = entry
		}
	}
	return latest, true
}

func newerEntry(a, b models.SupplierEntry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// ResolveIngredient derives the ingredient's cost per base unit from its most
// recent supplier entry. Without entries the ingredient is unpriced at zero.
func (c *Calculator) ResolveIngredient(id uint) (IngredientCost, error) {
	ingredient, ok := c.snap.Ingredients[id]
	if !ok {
		return IngredientCost{}, fmt.Errorf("%w: ingredient %d", ErrMissingComponent, id)
	}
	base, err := c.ingredientBase(ingredient)
	if err != nil {
		return IngredientCost{}, err
	}

	result := IngredientCost{IngredientID: id, BaseUnitID: base.ID}
	entry, ok := LatestEntry(c.snap.Entries[id])
	if !ok {
		result.Unpriced = true
		result.UnitCost = decimal.Zero
	} else {
		if entry.Quantity.Sign() <= 0 {
			return IngredientCost{}, fmt.Errorf("%w: supplier entry %d", ErrInvalidQuantity, entry.ID)
		}
		if entry.TotalPrice.Sign() < 0 {
			return IngredientCost{}, fmt.Errorf("%w: supplier entry %d", ErrNegativeCost, entry.ID)
		}
		quantity, err := c.snap.Units.Convert(entry.Quantity, entry.UnitID, base.ID)
		if err != nil {
			return IngredientCost{}, fmt.Errorf("supplier entry %d: %w", entry.ID, err)
		}
		result.UnitCost = entry.TotalPrice.DivRound(quantity, CostScale)
		result.EntryID = entry.ID
	}

	c.mu.Lock()
	c.ingredients[id] = result
	c.mu.Unlock()
	return result, nil
}

// VariationCost prices a package variation at the ingredient's current cost.
func (c *Calculator) VariationCost(id uint) (decimal.Decimal, error) {
	variation, ok := c.snap.Variations[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: variation %d", ErrMissingComponent, id)
	}
	unitCost, err := c.ingredientUnitCost(ComponentRef{Kind: models.ComponentIngredient, ID: variation.IngredientID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("variation %d: %w", id, err)
	}
	if variation.Quantity.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: variation %d", ErrInvalidQuantity, id)
	}
	quantity, err := c.snap.Units.Convert(variation.Quantity, variation.UnitID, unitCost.UnitID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("variation %d: %w", id, err)
	}
	return quantity.Mul(unitCost.PerUnit).Round(CostScale), nil
}
