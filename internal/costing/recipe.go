package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"menucost/models"
)

var minutesPerHour = decimal.NewFromInt(60)

// RecipeCost is the aggregated cost of a recipe. CostPerPortion is the cost
// of one yield unit.
type RecipeCost struct {
	RecipeID       uint
	ItemsCost      decimal.Decimal
	LaborCost      decimal.Decimal
	TotalCost      decimal.Decimal
	CostPerPortion decimal.Decimal
	Unpriced       bool
}

// LaborCost charges prep time at the hourly rate.
func LaborCost(prepTimeMinutes *int, hourlyRate decimal.Decimal) decimal.Decimal {
	if prepTimeMinutes == nil || *prepTimeMinutes == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(*prepTimeMinutes)).Mul(hourlyRate).DivRound(minutesPerHour, CostScale)
}

// RecalculateRecipe sums the recipe's lines and labor. Sub-recipes are read at
// their latest computed cost, so callers evaluate recipes leaves first.
func (c *Calculator) RecalculateRecipe(id uint) (RecipeCost, error) {
	recipe, ok := c.snap.Recipes[id]
	if !ok {
		return RecipeCost{}, fmt.Errorf("%w: recipe %d", ErrMissingComponent, id)
	}
	if recipe.YieldQuantity.Sign() <= 0 {
		return RecipeCost{}, fmt.Errorf("%w: recipe %d yield %s", ErrInvalidQuantity, id, recipe.YieldQuantity)
	}

	items := decimal.Zero
	unpriced := false
	for _, item := range recipe.Items {
		ref := ComponentRef{Kind: item.ComponentType, ID: item.ComponentID}
		switch ref.Kind {
		case models.ComponentIngredient, models.ComponentRecipe:
		default:
			return RecipeCost{}, fmt.Errorf("%w: recipe %d line %d references %q", ErrUnsupportedComponent, id, item.ID, ref.Kind)
		}
		if ref.Kind == models.ComponentRecipe && ref.ID == id {
			return RecipeCost{}, fmt.Errorf("%w: recipe %d uses itself", ErrCyclicDependency, id)
		}
		unitID := item.UnitID
		cost, flagged, err := c.lineCost(ref, item.Quantity, &unitID)
		if err != nil {
			return RecipeCost{}, fmt.Errorf("recipe %d line %d: %w", id, item.ID, err)
		}
		items = items.Add(cost)
		unpriced = unpriced || flagged
	}

	labor := LaborCost(recipe.PrepTimeMinutes, c.cfg.HourlyLaborRate)
	total := items.Add(labor).Round(CostScale)
	if total.Sign() < 0 {
		return RecipeCost{}, fmt.Errorf("%w: recipe %d total %s", ErrNegativeCost, id, total)
	}

	result := RecipeCost{
		RecipeID:       id,
		ItemsCost:      items.Round(CostScale),
		LaborCost:      labor,
		TotalCost:      total,
		CostPerPortion: total.DivRound(recipe.YieldQuantity, CostScale),
		Unpriced:       unpriced,
	}

	c.mu.Lock()
	c.recipes[id] = result
	c.mu.Unlock()
	return result, nil
}
