package models

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Workspace{},
		&Category{},
		&Supplier{},
		&Unit{},
		&Ingredient{},
		&IngredientVariation{},
		&SupplierEntry{},
		&Recipe{},
		&RecipeItem{},
		&SizeGroup{},
		&SizeOption{},
		&Product{},
		&CompositionItem{},
		&ProductSizeCost{},
		&Menu{},
		&MenuEntry{},
		&FixedCost{},
		&RecalculationJob{},
	}
}
