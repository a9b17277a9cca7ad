package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"menucost/models"
)

// ProductCost is the aggregated cost of a product. For sized products
// BaseCost is the reference size and Sizes holds every option's cost.
type ProductCost struct {
	ProductID uint
	BaseCost  decimal.Decimal
	Unpriced  bool
	Sizes     map[uint]decimal.Decimal
}

// RecalculateProduct sums the composition lines of a product and derives the
// costs of its sizes from the result.
func (c *Calculator) RecalculateProduct(id uint) (ProductCost, error) {
	product, ok := c.snap.Products[id]
	if !ok {
		return ProductCost{}, fmt.Errorf("%w: product %d", ErrMissingComponent, id)
	}

	sum := decimal.Zero
	unpriced := false
	for _, item := range product.Composition {
		ref := ComponentRef{Kind: item.ComponentType, ID: item.ComponentID, SizeOptionID: item.SizeOptionID}
		if ref.Kind == models.ComponentProduct && ref.ID == id {
			return ProductCost{}, fmt.Errorf("%w: product %d uses itself", ErrCyclicDependency, id)
		}
		cost, flagged, err := c.lineCost(ref, item.Quantity, item.UnitID)
		if err != nil {
			return ProductCost{}, fmt.Errorf("product %d line %d: %w", id, item.ID, err)
		}
		sum = sum.Add(cost)
		unpriced = unpriced || flagged
	}

	base := sum.Round(CostScale)
	if base.Sign() < 0 {
		return ProductCost{}, fmt.Errorf("%w: product %d cost %s", ErrNegativeCost, id, base)
	}
	result := ProductCost{ProductID: id, BaseCost: base, Unpriced: unpriced}

	if product.SizeGroupID != nil {
		group, ok := c.snap.SizeGroups[*product.SizeGroupID]
		if !ok {
			return ProductCost{}, fmt.Errorf("%w: product %d size group %d", ErrMissingComponent, id, *product.SizeGroupID)
		}
		sizes, err := DeriveSizeCosts(base, group)
		if err != nil {
			return ProductCost{}, fmt.Errorf("product %d: %w", id, err)
		}
		result.Sizes = sizes
	}

	c.mu.Lock()
	c.products[id] = result
	c.mu.Unlock()
	return result, nil
}

// ProductCostForSize returns the cost of a product at one option of its size
// group, scaled from the reference cost.
func (c *Calculator) ProductCostForSize(productID, optionID uint) (decimal.Decimal, error) {
	cost, _, err := c.productSizeCost(productID, optionID)
	return cost, err
}

func (c *Calculator) productSizeCost(productID, optionID uint) (decimal.Decimal, bool, error) {
	product, ok := c.snap.Products[productID]
	if !ok {
		return decimal.Zero, false, fmt.Errorf("%w: product %d", ErrMissingComponent, productID)
	}
	if product.SizeGroupID == nil {
		return decimal.Zero, false, fmt.Errorf("%w: product %d has no size group", ErrMissingComponent, productID)
	}
	group, ok := c.snap.SizeGroups[*product.SizeGroupID]
	if !ok {
		return decimal.Zero, false, fmt.Errorf("%w: size group %d", ErrMissingComponent, *product.SizeGroupID)
	}
	reference, err := ReferenceOption(group)
	if err != nil {
		return decimal.Zero, false, err
	}
	option, ok := findOption(group, optionID)
	if !ok {
		return decimal.Zero, false, fmt.Errorf("%w: size option %d is not in group %d", ErrMissingComponent, optionID, group.ID)
	}
	base, unpriced := c.productBase(productID)
	return ScaleCost(base, option, reference), unpriced, nil
}
