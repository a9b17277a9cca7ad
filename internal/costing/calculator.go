package costing

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"menucost/models"
)

// ComponentRef is the tagged reference carried by recipe and composition
// lines. SizeOptionID is only meaningful for nested products.
type ComponentRef struct {
	Kind         models.ComponentKind
	ID           uint
	SizeOptionID *uint
}

func (r ComponentRef) String() string {
	return fmt.Sprintf("%s %d", r.Kind, r.ID)
}

// UnitCost is the price of one costing unit of a component. UnitID is zero
// for components counted as whole items.
type UnitCost struct {
	PerUnit  decimal.Decimal
	UnitID   uint
	Unpriced bool
}

type unitCostFunc func(ComponentRef) (UnitCost, error)

// Calculator evaluates costs against one snapshot. Values computed during a
// run are kept in a ledger and shadow the stored values of the snapshot, so
// entities evaluated in dependency order always see fresh upstream costs.
// It is safe for concurrent use.
type Calculator struct {
	snap     *Snapshot
	cfg      Config
	dispatch map[models.ComponentKind]unitCostFunc

	mu          sync.RWMutex
	ingredients map[uint]IngredientCost
	recipes     map[uint]RecipeCost
	products    map[uint]ProductCost
}

func NewCalculator(snap *Snapshot, cfg Config) *Calculator {
	c := &Calculator{
		snap:        snap,
		cfg:         cfg,
		ingredients: make(map[uint]IngredientCost),
		recipes:     make(map[uint]RecipeCost),
		products:    make(map[uint]ProductCost),
	}
	c.dispatch = map[models.ComponentKind]unitCostFunc{
		models.ComponentIngredient: c.ingredientUnitCost,
		models.ComponentRecipe:     c.recipeUnitCost,
		models.ComponentProduct:    c.productUnitCost,
	}
	return c
}

func (c *Calculator) Snapshot() *Snapshot { return c.snap }

func (c *Calculator) Config() Config { return c.cfg }

// CostPerUnit resolves the current unit cost of any component.
func (c *Calculator) CostPerUnit(ref ComponentRef) (UnitCost, error) {
	fn, ok := c.dispatch[ref.Kind]
	if !ok {
		return UnitCost{}, fmt.Errorf("%w: %q", ErrUnsupportedComponent, ref.Kind)
	}
	return fn(ref)
}

// lineCost prices quantity of a component. A nil unit means the quantity is
// already in the component's costing unit.
func (c *Calculator) lineCost(ref ComponentRef, quantity decimal.Decimal, unitID *uint) (decimal.Decimal, bool, error) {
	if quantity.Sign() <= 0 {
		return decimal.Zero, false, fmt.Errorf("%w: %s has quantity %s", ErrInvalidQuantity, ref, quantity)
	}
	cost, err := c.CostPerUnit(ref)
	if err != nil {
		return decimal.Zero, false, err
	}

	qty := quantity
	if unitID != nil {
		if cost.UnitID != 0 {
			qty, err = c.snap.Units.Convert(quantity, *unitID, cost.UnitID)
		} else {
			qty, err = c.countQuantity(quantity, *unitID)
		}
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("%s: %w", ref, err)
		}
	}
	return qty.Mul(cost.PerUnit), cost.Unpriced, nil
}

// countQuantity converts a quantity of whole items (e.g. a dozen) into count
// base units.
func (c *Calculator) countQuantity(quantity decimal.Decimal, unitID uint) (decimal.Decimal, error) {
	unit, err := c.snap.Units.Unit(unitID)
	if err != nil {
		return decimal.Zero, err
	}
	base, err := c.snap.Units.Base(models.MeasurementCount)
	if err != nil {
		return decimal.Zero, err
	}
	return c.snap.Units.Convert(quantity, unit.ID, base.ID)
}

func (c *Calculator) ingredientUnitCost(ref ComponentRef) (UnitCost, error) {
	ingredient, ok := c.snap.Ingredients[ref.ID]
	if !ok {
		return UnitCost{}, fmt.Errorf("%w: %s", ErrMissingComponent, ref)
	}
	base, err := c.ingredientBase(ingredient)
	if err != nil {
		return UnitCost{}, err
	}

	c.mu.RLock()
	fresh, ok := c.ingredients[ref.ID]
	c.mu.RUnlock()
	if ok {
		return UnitCost{PerUnit: fresh.UnitCost, UnitID: base.ID, Unpriced: fresh.Unpriced}, nil
	}
	return UnitCost{PerUnit: ingredient.CurrentUnitCost, UnitID: base.ID, Unpriced: ingredient.Unpriced}, nil
}

func (c *Calculator) recipeUnitCost(ref ComponentRef) (UnitCost, error) {
	recipe, ok := c.snap.Recipes[ref.ID]
	if !ok {
		return UnitCost{}, fmt.Errorf("%w: %s", ErrMissingComponent, ref)
	}

	c.mu.RLock()
	fresh, ok := c.recipes[ref.ID]
	c.mu.RUnlock()
	if ok {
		return UnitCost{PerUnit: fresh.CostPerPortion, UnitID: recipe.YieldUnitID, Unpriced: fresh.Unpriced}, nil
	}
	return UnitCost{PerUnit: recipe.CostPerPortion, UnitID: recipe.YieldUnitID, Unpriced: recipe.Unpriced}, nil
}

func (c *Calculator) productUnitCost(ref ComponentRef) (UnitCost, error) {
	if _, ok := c.snap.Products[ref.ID]; !ok {
		return UnitCost{}, fmt.Errorf("%w: %s", ErrMissingComponent, ref)
	}
	if ref.SizeOptionID != nil {
		cost, unpriced, err := c.productSizeCost(ref.ID, *ref.SizeOptionID)
		if err != nil {
			return UnitCost{}, err
		}
		return UnitCost{PerUnit: cost, Unpriced: unpriced}, nil
	}
	base, unpriced := c.productBase(ref.ID)
	return UnitCost{PerUnit: base, Unpriced: unpriced}, nil
}

func (c *Calculator) productBase(id uint) (decimal.Decimal, bool) {
	c.mu.RLock()
	fresh, ok := c.products[id]
	c.mu.RUnlock()
	if ok {
		return fresh.BaseCost, fresh.Unpriced
	}
	product := c.snap.Products[id]
	return product.BaseCost, product.Unpriced
}

func (c *Calculator) ingredientBase(ingredient *models.Ingredient) (models.Unit, error) {
	unit, err := c.snap.Units.Unit(ingredient.UnitID)
	if err != nil {
		return models.Unit{}, fmt.Errorf("ingredient %d: %w", ingredient.ID, err)
	}
	return c.snap.Units.Base(unit.MeasurementType)
}
