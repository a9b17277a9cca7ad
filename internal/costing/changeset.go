package costing

import "github.com/shopspring/decimal"

// VariationCost is the recomputed price of an ingredient variation.
type VariationCost struct {
	VariationID uint
	Cost        decimal.Decimal
}

// SizeCost is the derived cost of a product at one size option.
type SizeCost struct {
	ProductID    uint
	SizeOptionID uint
	Cost         decimal.Decimal
}

// Changeset collects the values that differ from the snapshot and must be
// written back in one transaction.
type Changeset struct {
	Ingredients []IngredientCost
	Variations  []VariationCost
	Recipes     []RecipeCost
	Products    []ProductCost
	SizeCosts   []SizeCost
	MenuEntries []MenuEntryPrice
}

func (c *Changeset) Len() int {
	return len(c.Ingredients) + len(c.Variations) + len(c.Recipes) +
		len(c.Products) + len(c.SizeCosts) + len(c.MenuEntries)
}

func (c *Changeset) Empty() bool { return c.Len() == 0 }

// IngredientChanged reports whether fresh differs from what the snapshot holds.
func (s *Snapshot) IngredientChanged(fresh IngredientCost) bool {
	stored, ok := s.Ingredients[fresh.IngredientID]
	return !ok || !stored.CurrentUnitCost.Equal(fresh.UnitCost) || stored.Unpriced != fresh.Unpriced
}

func (s *Snapshot) VariationChanged(fresh VariationCost) bool {
	stored, ok := s.Variations[fresh.VariationID]
	return !ok || !stored.Cost.Equal(fresh.Cost)
}

func (s *Snapshot) RecipeChanged(fresh RecipeCost) bool {
	stored, ok := s.Recipes[fresh.RecipeID]
	return !ok ||
		!stored.LaborCost.Equal(fresh.LaborCost) ||
		!stored.TotalCost.Equal(fresh.TotalCost) ||
		!stored.CostPerPortion.Equal(fresh.CostPerPortion) ||
		stored.Unpriced != fresh.Unpriced
}

func (s *Snapshot) ProductChanged(fresh ProductCost) bool {
	stored, ok := s.Products[fresh.ProductID]
	return !ok || !stored.BaseCost.Equal(fresh.BaseCost) || stored.Unpriced != fresh.Unpriced
}

// SizeCostChanged is true when the size row is missing or holds another cost.
func (s *Snapshot) SizeCostChanged(fresh SizeCost) bool {
	stored, ok := s.Products[fresh.ProductID]
	if !ok {
		return true
	}
	for _, row := range stored.SizeCosts {
		if row.SizeOptionID == fresh.SizeOptionID {
			return !row.Cost.Equal(fresh.Cost)
		}
	}
	return true
}

func (s *Snapshot) MenuEntryChanged(ref MenuEntryRef, fresh MenuEntryPrice) bool {
	return !ref.Entry.Cost.Equal(fresh.Cost) || !ref.Entry.SuggestedPrice.Equal(fresh.SuggestedPrice)
}
