package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"menucost/internal/costing"
	"menucost/internal/pricing"
	"menucost/internal/units"
	"menucost/models"
)

// The mutations below validate structural edits to the cost graph. Each one
// that changes a cost input returns the graph node whose downstream must be
// recalculated; callers pass it to the cascade orchestrator.

// RecordSupplierEntry stores a purchase after checking its unit can express
// the ingredient's measurement type.
func (s *Store) RecordSupplierEntry(ctx context.Context, entry *models.SupplierEntry) (costing.Node, error) {
	if entry.Quantity.Sign() <= 0 {
		return costing.Node{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if entry.TotalPrice.IsNegative() {
		return costing.Node{}, fmt.Errorf("%w: total price must not be negative", ErrInvalidInput)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ingredient models.Ingredient
		err := tx.Where("id = ? AND workspace_id = ?", entry.IngredientID, entry.WorkspaceID).First(&ingredient).Error
		if err != nil {
			return notFound(err, "ingredient %d", entry.IngredientID)
		}
		if err := compatibleUnits(tx, entry.WorkspaceID, ingredient.UnitID, entry.UnitID); err != nil {
			return err
		}
		if entry.SupplierID != nil {
			var supplier models.Supplier
			err := tx.Where("id = ? AND workspace_id = ?", *entry.SupplierID, entry.WorkspaceID).First(&supplier).Error
			if err != nil {
				return notFound(err, "supplier %d", *entry.SupplierID)
			}
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return costing.Node{}, err
	}
	return costing.Node{Kind: models.ComponentIngredient, ID: entry.IngredientID}, nil
}

func (s *Store) DeleteSupplierEntry(ctx context.Context, workspaceID, entryID uint) (costing.Node, error) {
	var entry models.SupplierEntry
	db := s.db.WithContext(ctx)
	if err := db.Where("id = ? AND workspace_id = ?", entryID, workspaceID).First(&entry).Error; err != nil {
		return costing.Node{}, notFound(err, "supplier entry %d", entryID)
	}
	if err := db.Delete(&entry).Error; err != nil {
		return costing.Node{}, fmt.Errorf("delete supplier entry %d: %w", entryID, err)
	}
	return costing.Node{Kind: models.ComponentIngredient, ID: entry.IngredientID}, nil
}

func compatibleUnits(tx *gorm.DB, workspaceID, expectedID, givenID uint) error {
	var list []models.Unit
	if err := tx.Where("workspace_id = ? AND id IN ?", workspaceID, []uint{expectedID, givenID}).Find(&list).Error; err != nil {
		return fmt.Errorf("load units: %w", err)
	}
	byID := make(map[uint]models.Unit, len(list))
	for _, unit := range list {
		byID[unit.ID] = unit
	}
	expected, ok := byID[expectedID]
	if !ok {
		return fmt.Errorf("%w: unit %d", ErrNotFound, expectedID)
	}
	given, ok := byID[givenID]
	if !ok {
		return fmt.Errorf("%w: unit %d", ErrNotFound, givenID)
	}
	if expected.MeasurementType != given.MeasurementType {
		return fmt.Errorf("%w: %s (%s) cannot express %s", units.ErrIncompatibleMeasurementType,
			given.Symbol, given.MeasurementType, expected.MeasurementType)
	}
	return nil
}

// AddRecipeItem appends a line to a recipe, rejecting lines that would make
// the recipe depend on itself.
func (s *Store) AddRecipeItem(ctx context.Context, workspaceID uint, item *models.RecipeItem) (costing.Node, error) {
	switch item.ComponentType {
	case models.ComponentIngredient, models.ComponentRecipe:
	default:
		return costing.Node{}, fmt.Errorf("%w: recipes cannot use %q", ErrInvalidInput, item.ComponentType)
	}
	if item.Quantity.Sign() <= 0 {
		return costing.Node{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	dependent := costing.Node{Kind: models.ComponentRecipe, ID: item.RecipeID}
	component := costing.Node{Kind: item.ComponentType, ID: item.ComponentID}
	snap, err := s.validateEdge(ctx, workspaceID, dependent, component)
	if err != nil {
		return costing.Node{}, err
	}
	if _, err := snap.Units.Unit(item.UnitID); err != nil {
		return costing.Node{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return costing.Node{}, fmt.Errorf("create recipe item: %w", err)
	}
	return dependent, nil
}

// AddCompositionItem appends a line to a product with the same cycle guard.
func (s *Store) AddCompositionItem(ctx context.Context, workspaceID uint, item *models.CompositionItem) (costing.Node, error) {
	switch item.ComponentType {
	case models.ComponentIngredient, models.ComponentRecipe, models.ComponentProduct:
	default:
		return costing.Node{}, fmt.Errorf("%w: unknown component type %q", ErrInvalidInput, item.ComponentType)
	}
	if item.Quantity.Sign() <= 0 {
		return costing.Node{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	dependent := costing.Node{Kind: models.ComponentProduct, ID: item.ProductID}
	component := costing.Node{Kind: item.ComponentType, ID: item.ComponentID}
	snap, err := s.validateEdge(ctx, workspaceID, dependent, component)
	if err != nil {
		return costing.Node{}, err
	}
	if item.UnitID != nil {
		if _, err := snap.Units.Unit(*item.UnitID); err != nil {
			return costing.Node{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if item.SizeOptionID != nil {
		if item.ComponentType != models.ComponentProduct {
			return costing.Node{}, fmt.Errorf("%w: only nested products take a size", ErrInvalidInput)
		}
		nested := snap.Products[item.ComponentID]
		option, ok := snap.SizeOptions[*item.SizeOptionID]
		if nested.SizeGroupID == nil || !ok || option.SizeGroupID != *nested.SizeGroupID {
			return costing.Node{}, fmt.Errorf("%w: size option %d does not belong to product %d", ErrInvalidInput, *item.SizeOptionID, item.ComponentID)
		}
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return costing.Node{}, fmt.Errorf("create composition item: %w", err)
	}
	return dependent, nil
}

func (s *Store) validateEdge(ctx context.Context, workspaceID uint, dependent, component costing.Node) (*costing.Snapshot, error) {
	snap, err := s.LoadSnapshot(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	graph := costing.BuildGraph(snap)
	if !graph.Has(dependent) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dependent)
	}
	if !graph.Has(component) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, component)
	}
	if err := graph.ValidateEdge(dependent, component); err != nil {
		return nil, err
	}
	return snap, nil
}

// UpdateUnit changes the conversion factor of a non-base unit.
func (s *Store) UpdateUnit(ctx context.Context, workspaceID, unitID uint, factor decimal.Decimal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unit models.Unit
		if err := tx.Where("id = ? AND workspace_id = ?", unitID, workspaceID).First(&unit).Error; err != nil {
			return notFound(err, "unit %d", unitID)
		}
		if unit.IsBase {
			return fmt.Errorf("%w: %s", units.ErrBaseUnitImmutable, unit.Symbol)
		}
		unit.ConversionFactor = factor
		if err := units.ValidateUnit(unit); err != nil {
			return err
		}
		return tx.Model(&unit).Update("conversion_factor", factor).Error
	})
}

// DeleteUnit removes a non-base unit that no line or entry still uses.
func (s *Store) DeleteUnit(ctx context.Context, workspaceID, unitID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var unit models.Unit
		if err := tx.Where("id = ? AND workspace_id = ?", unitID, workspaceID).First(&unit).Error; err != nil {
			return notFound(err, "unit %d", unitID)
		}
		if unit.IsBase {
			return fmt.Errorf("%w: %s", units.ErrBaseUnitImmutable, unit.Symbol)
		}

		usages := []struct {
			model  any
			column string
		}{
			{&models.Ingredient{}, "unit_id"},
			{&models.SupplierEntry{}, "unit_id"},
			{&models.IngredientVariation{}, "unit_id"},
			{&models.RecipeItem{}, "unit_id"},
			{&models.Recipe{}, "yield_unit_id"},
			{&models.CompositionItem{}, "unit_id"},
		}
		for _, usage := range usages {
			var count int64
			if err := tx.Model(usage.model).Where(usage.column+" = ?", unitID).Count(&count).Error; err != nil {
				return fmt.Errorf("count unit usage: %w", err)
			}
			if count > 0 {
				return fmt.Errorf("%w: unit %s is still in use", ErrInvalidInput, unit.Symbol)
			}
		}
		return tx.Delete(&unit).Error
	})
}

func (s *Store) sizeGroup(tx *gorm.DB, workspaceID, groupID uint) (*models.SizeGroup, error) {
	var group models.SizeGroup
	err := tx.Where("id = ? AND workspace_id = ?", groupID, workspaceID).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		First(&group).Error
	if err != nil {
		return nil, notFound(err, "size group %d", groupID)
	}
	return &group, nil
}

func saveReferenceFlags(tx *gorm.DB, group *models.SizeGroup) error {
	for _, option := range group.Options {
		err := tx.Model(&models.SizeOption{}).Where("id = ?", option.ID).Update("is_reference", option.IsReference).Error
		if err != nil {
			return fmt.Errorf("update size option %d: %w", option.ID, err)
		}
	}
	return nil
}

// PromoteReferenceSize moves the reference flag of a group to optionID. The
// group's products must be re-derived afterwards.
func (s *Store) PromoteReferenceSize(ctx context.Context, workspaceID, groupID, optionID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.sizeGroup(tx, workspaceID, groupID)
		if err != nil {
			return err
		}
		if err := costing.PromoteReference(group, optionID); err != nil {
			return err
		}
		return saveReferenceFlags(tx, group)
	})
}

// DeleteSizeOption removes an option, promoting successorID first when the
// option is the reference. Derived size costs and menu entries of the option
// go with it; composition lines using the option move to the successor, or to
// the reference. It returns the group id for the follow-up recalculation.
func (s *Store) DeleteSizeOption(ctx context.Context, workspaceID, optionID uint, successorID *uint) (uint, error) {
	var groupID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var option models.SizeOption
		if err := tx.First(&option, optionID).Error; err != nil {
			return notFound(err, "size option %d", optionID)
		}
		group, err := s.sizeGroup(tx, workspaceID, option.SizeGroupID)
		if err != nil {
			return err
		}
		if err := costing.RemoveOption(group, optionID, successorID); err != nil {
			return err
		}
		if err := saveReferenceFlags(tx, group); err != nil {
			return err
		}
		replacement, ok := replacementOption(group, successorID)
		if !ok {
			return fmt.Errorf("%w: size group %d has no option left", ErrInvalidInput, group.ID)
		}
		err = tx.Model(&models.CompositionItem{}).Where("size_option_id = ?", optionID).
			Update("size_option_id", replacement).Error
		if err != nil {
			return fmt.Errorf("move composition lines to size option %d: %w", replacement, err)
		}
		if err := tx.Delete(&models.SizeOption{}, optionID).Error; err != nil {
			return fmt.Errorf("delete size option %d: %w", optionID, err)
		}
		if err := tx.Unscoped().Where("size_option_id = ?", optionID).Delete(&models.ProductSizeCost{}).Error; err != nil {
			return fmt.Errorf("delete size costs: %w", err)
		}
		if err := tx.Where("size_option_id = ?", optionID).Delete(&models.MenuEntry{}).Error; err != nil {
			return fmt.Errorf("delete menu entries: %w", err)
		}
		groupID = group.ID
		return nil
	})
	return groupID, err
}

// replacementOption picks the option that composition lines move to when
// their size is removed: the successor if one was named, else the reference.
func replacementOption(group *models.SizeGroup, successorID *uint) (uint, bool) {
	if successorID != nil {
		return *successorID, true
	}
	for _, option := range group.Options {
		if option.IsReference {
			return option.ID, true
		}
	}
	return 0, false
}

// UpdateMenuPricing sets the menu's pricing mode and target. With
// updateExisting every entry adopts the new target and non-overridden entries
// are re-priced from their current cost; otherwise only entries added later
// inherit it. It returns the number of entries re-priced.
func (s *Store) UpdateMenuPricing(ctx context.Context, workspaceID, menuID uint, mode models.PricingMode, target decimal.Decimal, updateExisting bool) (int, error) {
	if err := pricing.ValidateTarget(mode, target); err != nil {
		return 0, err
	}

	repriced := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var menu models.Menu
		if err := tx.Where("id = ? AND workspace_id = ?", menuID, workspaceID).Preload("Entries").First(&menu).Error; err != nil {
			return notFound(err, "menu %d", menuID)
		}
		err := tx.Model(&menu).Updates(map[string]any{"pricing_mode": mode, "target_margin": target}).Error
		if err != nil {
			return fmt.Errorf("update menu %d: %w", menuID, err)
		}
		if !updateExisting {
			return nil
		}

		for _, entry := range menu.Entries {
			updates := map[string]any{"pricing_mode": mode, "target_margin": target}
			if !entry.OverridePrice.Valid {
				price, err := pricing.SuggestedPrice(mode, entry.Cost, target)
				if err != nil {
					return fmt.Errorf("menu entry %d: %w", entry.ID, err)
				}
				updates["suggested_price"] = price.Round(costing.PriceScale)
				repriced++
			}
			if err := tx.Model(&models.MenuEntry{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("update menu entry %d: %w", entry.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return repriced, nil
}

// AddMenuEntry lists a product on a menu. The entry inherits the menu's
// current pricing target and is priced from the product's stored cost.
func (s *Store) AddMenuEntry(ctx context.Context, workspaceID uint, entry *models.MenuEntry) error {
	snap, err := s.LoadSnapshot(ctx, workspaceID)
	if err != nil {
		return err
	}
	menu, ok := snap.Menus[entry.MenuID]
	if !ok {
		return fmt.Errorf("%w: menu %d", ErrNotFound, entry.MenuID)
	}
	if _, ok := snap.Products[entry.ProductID]; !ok {
		return fmt.Errorf("%w: product %d", ErrNotFound, entry.ProductID)
	}
	if entry.OverridePrice.Valid && entry.OverridePrice.Decimal.IsNegative() {
		return fmt.Errorf("%w: override price must not be negative", ErrInvalidInput)
	}

	cfg, err := s.WorkspaceConfig(ctx, workspaceID)
	if err != nil {
		return err
	}
	entry.PricingMode = menu.PricingMode
	entry.TargetMargin = menu.TargetMargin
	price, err := costing.NewCalculator(snap, cfg).PriceMenuEntry(costing.MenuEntryRef{Menu: menu, Entry: entry})
	if err != nil {
		return err
	}
	entry.Cost = price.Cost
	entry.SuggestedPrice = price.SuggestedPrice

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create menu entry: %w", err)
	}
	return nil
}
