package costing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"menucost/internal/units"
	"menucost/models"
)

const (
	gram uint = iota + 1
	milligram
	kilogram
	milliliter
	liter
	each
	dozen
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func withID(id uint) gorm.Model { return gorm.Model{ID: id} }

func uintPtr(v uint) *uint { return &v }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func testUnits() []models.Unit {
	list := units.Defaults(1)
	for i := range list {
		list[i].ID = uint(i + 1)
	}
	return list
}

func buildSnapshot(t *testing.T, data SnapshotData) *Snapshot {
	t.Helper()
	data.WorkspaceID = 1
	data.Units = testUnits()
	snap, err := data.Build()
	require.NoError(t, err)
	return snap
}

func entry(id, ingredientID uint, quantity string, unitID uint, price string, date time.Time) models.SupplierEntry {
	return models.SupplierEntry{
		Model:        withID(id),
		IngredientID: ingredientID,
		Quantity:     dec(quantity),
		UnitID:       unitID,
		TotalPrice:   dec(price),
		Date:         date,
	}
}

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestFlourScenario(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t, SnapshotData{
		Ingredients: []models.Ingredient{{Model: withID(1), Name: "Flour", UnitID: gram}},
		Entries:     []models.SupplierEntry{entry(1, 1, "1000", kilogram, "5.00", day)},
		Recipes: []models.Recipe{{
			Model:         withID(1),
			Name:          "Roux",
			YieldQuantity: dec("1"),
			YieldUnitID:   each,
			Items: []models.RecipeItem{
				{ComponentType: models.ComponentIngredient, ComponentID: 1, Quantity: dec("500"), UnitID: gram},
			},
		}},
	})
	calc := NewCalculator(snap, Config{})

	flour, err := calc.ResolveIngredient(1)
	require.NoError(t, err)
	assertDecimal(t, "0.000005", flour.UnitCost)
	assert.Equal(t, gram, flour.BaseUnitID)
	assert.False(t, flour.Unpriced)
	assert.Equal(t, uint(1), flour.EntryID)

	recipe, err := calc.RecalculateRecipe(1)
	require.NoError(t, err)
	assertDecimal(t, "0.0025", recipe.TotalCost)
	assertDecimal(t, "0.0025", recipe.CostPerPortion)
}

func TestLatestEntryOrdering(t *testing.T) {
	t.Parallel()

	older := entry(1, 1, "1", kilogram, "4", day.AddDate(0, 0, -1))
	sameDayEarly := entry(2, 1, "1", kilogram, "5", day)
	sameDayEarly.CreatedAt = day.Add(time.Hour)
	sameDayLate := entry(3, 1, "1", kilogram, "6", day)
	sameDayLate.CreatedAt = day.Add(2 * time.Hour)

	latest, ok := LatestEntry([]models.SupplierEntry{sameDayLate, older, sameDayEarly})
	require.True(t, ok)
	assert.Equal(t, uint(3), latest.ID)

	tieA := entry(4, 1, "1", kilogram, "7", day)
	tieB := entry(5, 1, "1", kilogram, "8", day)
	latest, ok = LatestEntry([]models.SupplierEntry{tieB, tieA})
	require.True(t, ok)
	assert.Equal(t, uint(5), latest.ID)

	_, ok = LatestEntry(nil)
	assert.False(t, ok)
}

func TestResolveIngredientUnpriced(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t, SnapshotData{
		Ingredients: []models.Ingredient{{Model: withID(1), Name: "Saffron", UnitID: milligram}},
	})
	calc := NewCalculator(snap, Config{})

	cost, err := calc.ResolveIngredient(1)
	require.NoError(t, err)
	assert.True(t, cost.Unpriced)
	assert.True(t, cost.UnitCost.IsZero())
	assert.Equal(t, gram, cost.BaseUnitID)
}

func TestResolveIngredientErrors(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t, SnapshotData{
		Ingredients: []models.Ingredient{
			{Model: withID(1), Name: "Milk", UnitID: liter},
			{Model: withID(2), Name: "Eggs", UnitID: each},
		},
		Entries: []models.SupplierEntry{
			entry(1, 1, "2", kilogram, "3", day),
			entry(2, 2, "0", dozen, "3", day),
		},
	})
	calc := NewCalculator(snap, Config{})

	_, err := calc.ResolveIngredient(1)
	require.ErrorIs(t, err, units.ErrIncompatibleMeasurementType)

	_, err = calc.ResolveIngredient(2)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = calc.ResolveIngredient(99)
	require.ErrorIs(t, err, ErrMissingComponent)
}

func TestVariationCost(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t, SnapshotData{
		Ingredients: []models.Ingredient{{Model: withID(1), Name: "Flour", UnitID: kilogram}},
		Entries:     []models.SupplierEntry{entry(1, 1, "25", kilogram, "50", day)},
		Variations: []models.IngredientVariation{
			{Model: withID(1), IngredientID: 1, Name: "5 kg sack", Quantity: dec("5"), UnitID: kilogram},
			{Model: withID(2), IngredientID: 1, Name: "Bottle", Quantity: dec("1"), UnitID: liter},
		},
	})
	calc := NewCalculator(snap, Config{})
	_, err := calc.ResolveIngredient(1)
	require.NoError(t, err)

	cost, err := calc.VariationCost(1)
	require.NoError(t, err)
	assertDecimal(t, "10", cost)

	_, err = calc.VariationCost(2)
	require.ErrorIs(t, err, units.ErrIncompatibleMeasurementType)
}

func TestRecalculateRecipeLaborAndPortion(t *testing.T) {
	t.Parallel()

	prep := 30
	snap := buildSnapshot(t, SnapshotData{
		Ingredients: []models.Ingredient{
			{Model: withID(1), Name: "Sugar", UnitID: gram},
			{Model: withID(2), Name: "Cream", UnitID: milliliter},
		},
		Entries: []models.SupplierEntry{
			entry(1, 1, "1", kilogram, "2", day),
			entry(2, 2, "1", liter, "8", day),
		},
		Recipes: []models.Recipe{{
			Model:           withID(1),
			Name:            "Custard",
			YieldQuantity:   dec("4"),
			YieldUnitID:     each,
			PrepTimeMinutes: &prep,
			Items: []models.RecipeItem{
				{Model: withID(1), ComponentType: models.ComponentIngredient, ComponentID: 1, Quantity: dec("500"), UnitID: gram},
				{Model: withID(2), ComponentType: models.ComponentIngredient, ComponentID: 2, Quantity: dec("0.5"), UnitID: liter},
			},
		}},
	})
	calc := NewCalculator(snap, Config{HourlyLaborRate: dec("20")})

	for _, id := range []uint{1, 2} {
		_, err := calc.ResolveIngredient(id)
		require.NoError(t, err)
	}
	cost, err := calc.RecalculateRecipe(1)
	require.NoError(t, err)
	assertDecimal(t, "5", cost.ItemsCost)
	assertDecimal(t, "10", cost.LaborCost)
	assertDecimal(t, "15", cost.TotalCost)
	assertDecimal(t, "3.75", cost.CostPerPortion)
	assert.False(t, cost.Unpriced)
}

func TestRecalculateRecipeFlagsUnpricedAndRejectsProducts(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t, SnapshotData{
		Ingredients: []models.Ingredient{{Model: withID(1), Name: "Vanilla", UnitID: gram}},
		Products:    []models.Product{{Model: withID(1), Name: "Cookie"}},
		Recipes: []models.Recipe{
			{
				Model: withID(1), Name: "Glaze", YieldQuantity: dec("1"), YieldUnitID: each,
				Items: []models.RecipeItem{{ComponentType: models.ComponentIngredient, ComponentID: 1, Quantity: dec("2"), UnitID: gram}},
			},
			{
				Model: withID(2), Name: "Broken", YieldQuantity: dec("1"), YieldUnitID: each,
				Items: []models.RecipeItem{{ComponentType: models.ComponentProduct, ComponentID: 1, Quantity: dec("1"), UnitID: each}},
			},
			{Model: withID(3), Name: "No yield", YieldUnitID: each},
		},
	})
	calc := NewCalculator(snap, Config{})
	_, err := calc.ResolveIngredient(1)
	require.NoError(t, err)

	glaze, err := calc.RecalculateRecipe(1)
	require.NoError(t, err)
	assert.True(t, glaze.Unpriced)
	assert.True(t, glaze.TotalCost.IsZero())

	_, err = calc.RecalculateRecipe(2)
	require.ErrorIs(t, err, ErrUnsupportedComponent)

	_, err = calc.RecalculateRecipe(3)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCascadeOrderReadsFreshUpstream(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t, SnapshotData{
		Ingredients: []models.Ingredient{{Model: withID(1), Name: "X", UnitID: gram, CurrentUnitCost: dec("0.001")}},
		Entries:     []models.SupplierEntry{entry(1, 1, "1", kilogram, "3", day)},
		Recipes: []models.Recipe{
			{
				Model: withID(1), Name: "A", YieldQuantity: dec("1"), YieldUnitID: each, CostPerPortion: dec("0.1"),
				Items: []models.RecipeItem{{ComponentType: models.ComponentIngredient, ComponentID: 1, Quantity: dec("100"), UnitID: gram}},
			},
			{
				Model: withID(2), Name: "B", YieldQuantity: dec("1"), YieldUnitID: each,
				Items: []models.RecipeItem{{ComponentType: models.ComponentRecipe, ComponentID: 1, Quantity: dec("2"), UnitID: each}},
			},
		},
	})
	calc := NewCalculator(snap, Config{})

	graph := BuildGraph(snap)
	levels, cyclic := graph.Levels(graph.Nodes())
	require.Empty(t, cyclic)
	for _, level := range levels {
		for _, node := range level {
			var err error
			switch node.Kind {
			case models.ComponentIngredient:
				_, err = calc.ResolveIngredient(node.ID)
			case models.ComponentRecipe:
				_, err = calc.RecalculateRecipe(node.ID)
			}
			require.NoError(t, err)
		}
	}

	b, err := calc.RecalculateRecipe(2)
	require.NoError(t, err)
	assertDecimal(t, "0.6", b.TotalCost)
}

func sizedProductSnapshot(t *testing.T, syrupPrice string) *Snapshot {
	t.Helper()
	return buildSnapshot(t, SnapshotData{
		Ingredients: []models.Ingredient{{Model: withID(1), Name: "Syrup", UnitID: each}},
		Entries:     []models.SupplierEntry{entry(1, 1, "10", each, syrupPrice, day)},
		SizeGroups: []models.SizeGroup{{
			Model: withID(1),
			Name:  "Cups",
			Options: []models.SizeOption{
				{Model: withID(1), SizeGroupID: 1, Name: "P", Multiplier: dec("0.7")},
				{Model: withID(2), SizeGroupID: 1, Name: "M", Multiplier: dec("1.0"), IsReference: true},
				{Model: withID(3), SizeGroupID: 1, Name: "G", Multiplier: dec("1.3")},
			},
		}},
		Products: []models.Product{
			{
				Model: withID(1), Name: "Soda", SizeGroupID: uintPtr(1),
				Composition: []models.CompositionItem{{ComponentType: models.ComponentIngredient, ComponentID: 1, Quantity: dec("10")}},
			},
			{
				Model: withID(2), Name: "Combo",
				Composition: []models.CompositionItem{
					{ComponentType: models.ComponentProduct, ComponentID: 1, SizeOptionID: uintPtr(3), Quantity: dec("1")},
					{ComponentType: models.ComponentProduct, ComponentID: 1, SizeOptionID: uintPtr(1), Quantity: dec("2"), UnitID: uintPtr(each)},
				},
			},
		},
	})
}

func TestProductSizeProportionality(t *testing.T) {
	t.Parallel()

	cases := []struct {
		price      string
		p, m, g    string
		comboTotal string
	}{
		{price: "10", p: "7", m: "10", g: "13", comboTotal: "27"},
		{price: "20", p: "14", m: "20", g: "26", comboTotal: "54"},
	}
	for _, tt := range cases {
		tt := tt
		t.Run(tt.price, func(t *testing.T) {
			t.Parallel()
			calc := NewCalculator(sizedProductSnapshot(t, tt.price), Config{})
			_, err := calc.ResolveIngredient(1)
			require.NoError(t, err)

			soda, err := calc.RecalculateProduct(1)
			require.NoError(t, err)
			assertDecimal(t, tt.m, soda.BaseCost)
			require.Len(t, soda.Sizes, 3)
			assertDecimal(t, tt.p, soda.Sizes[1])
			assertDecimal(t, tt.m, soda.Sizes[2])
			assertDecimal(t, tt.g, soda.Sizes[3])

			large, err := calc.ProductCostForSize(1, 3)
			require.NoError(t, err)
			assertDecimal(t, tt.g, large)

			combo, err := calc.RecalculateProduct(2)
			require.NoError(t, err)
			assertDecimal(t, tt.comboTotal, combo.BaseCost)
			assert.Nil(t, combo.Sizes)
		})
	}
}

func TestProductCostForSizeErrors(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(sizedProductSnapshot(t, "10"), Config{})

	_, err := calc.ProductCostForSize(2, 1)
	require.ErrorIs(t, err, ErrMissingComponent)

	_, err = calc.ProductCostForSize(1, 42)
	require.ErrorIs(t, err, ErrMissingComponent)
}

func TestScaleCostNonUnitReference(t *testing.T) {
	t.Parallel()

	reference := models.SizeOption{Model: withID(1), Multiplier: dec("2"), IsReference: true}
	option := models.SizeOption{Model: withID(2), Multiplier: dec("3")}
	assertDecimal(t, "15", ScaleCost(dec("10"), option, reference))
	assertDecimal(t, "10", ScaleCost(dec("10"), reference, reference))
}

func TestSizeGroupMutations(t *testing.T) {
	t.Parallel()

	newGroup := func() *models.SizeGroup {
		return &models.SizeGroup{
			Model: withID(1),
			Options: []models.SizeOption{
				{Model: withID(1), Name: "P", Multiplier: dec("0.5")},
				{Model: withID(2), Name: "M", Multiplier: dec("1"), IsReference: true},
				{Model: withID(3), Name: "G", Multiplier: dec("2")},
			},
		}
	}

	t.Run("promote", func(t *testing.T) {
		group := newGroup()
		require.NoError(t, PromoteReference(group, 3))
		ref, err := ReferenceOption(group)
		require.NoError(t, err)
		assert.Equal(t, uint(3), ref.ID)

		costs, err := DeriveSizeCosts(dec("8"), group)
		require.NoError(t, err)
		assertDecimal(t, "2", costs[1])
		assertDecimal(t, "4", costs[2])
		assertDecimal(t, "8", costs[3])
	})

	t.Run("remove reference without successor", func(t *testing.T) {
		group := newGroup()
		require.ErrorIs(t, RemoveOption(group, 2, nil), ErrOrphanedSizeReference)
		require.Len(t, group.Options, 3)
	})

	t.Run("remove reference with successor", func(t *testing.T) {
		group := newGroup()
		require.NoError(t, RemoveOption(group, 2, uintPtr(1)))
		require.Len(t, group.Options, 2)
		ref, err := ReferenceOption(group)
		require.NoError(t, err)
		assert.Equal(t, uint(1), ref.ID)
	})

	t.Run("remove sibling", func(t *testing.T) {
		group := newGroup()
		require.NoError(t, RemoveOption(group, 3, nil))
		require.Len(t, group.Options, 2)
	})

	t.Run("invalid groups", func(t *testing.T) {
		group := newGroup()
		group.Options[1].IsReference = false
		require.ErrorIs(t, ValidateSizeGroup(group), ErrOrphanedSizeReference)

		group = newGroup()
		group.Options[0].IsReference = true
		require.ErrorIs(t, ValidateSizeGroup(group), ErrInvalidSizeGroup)

		group = newGroup()
		group.Options[2].Multiplier = decimal.Zero
		require.ErrorIs(t, ValidateSizeGroup(group), ErrInvalidSizeGroup)
	})
}

func TestGraphLevelsAndCycles(t *testing.T) {
	t.Parallel()

	ing := func(id uint) Node { return Node{Kind: models.ComponentIngredient, ID: id} }
	rec := func(id uint) Node { return Node{Kind: models.ComponentRecipe, ID: id} }
	prod := func(id uint) Node { return Node{Kind: models.ComponentProduct, ID: id} }

	g := NewGraph()
	for _, n := range []Node{ing(1), ing(2), rec(1), rec(2), prod(1)} {
		g.AddNode(n)
	}
	g.AddEdge(ing(1), rec(1))
	g.AddEdge(rec(1), rec(2))
	g.AddEdge(ing(2), rec(2))
	g.AddEdge(rec(2), prod(1))

	levels, cyclic := g.Levels(g.Nodes())
	require.Empty(t, cyclic)
	assert.Equal(t, [][]Node{{ing(1), ing(2)}, {rec(1)}, {rec(2)}, {prod(1)}}, levels)

	down := g.Downstream(ing(1))
	assert.Equal(t, []Node{ing(1), rec(1), rec(2), prod(1)}, down.Sorted())
	assert.Equal(t, []Node{rec(2)}, g.Dependents(rec(1)))
	assert.Equal(t, []Node{ing(2), rec(1)}, g.Components(rec(2)))

	assert.True(t, g.WouldCreateCycle(rec(1), rec(2)))
	assert.True(t, g.WouldCreateCycle(rec(1), rec(1)))
	assert.False(t, g.WouldCreateCycle(rec(2), ing(1)))
	require.ErrorIs(t, g.ValidateEdge(rec(1), prod(1)), ErrCyclicDependency)

	scoped, _ := g.Levels(NodeSet{rec(2): {}, prod(1): {}})
	assert.Equal(t, [][]Node{{rec(2)}, {prod(1)}}, scoped)

	g.AddNode(rec(3))
	g.AddNode(rec(4))
	g.AddNode(prod(2))
	g.AddEdge(rec(3), rec(4))
	g.AddEdge(rec(4), rec(3))
	g.AddEdge(rec(4), prod(2))
	assert.Equal(t, []Node{rec(3), rec(4), prod(2)}, g.CyclicNodes())
}

func TestBuildGraphFromSnapshot(t *testing.T) {
	t.Parallel()

	g := BuildGraph(sizedProductSnapshot(t, "10"))
	soda := Node{Kind: models.ComponentProduct, ID: 1}
	assert.Equal(t, []Node{{Kind: models.ComponentProduct, ID: 2}}, g.Dependents(soda))
	assert.Len(t, g.NodesOfKind(models.ComponentProduct), 2)
	assert.Equal(t, 3, len(g.Downstream(Node{Kind: models.ComponentIngredient, ID: 1})))
}

func TestPriceMenuEntry(t *testing.T) {
	t.Parallel()

	snap := buildSnapshot(t, SnapshotData{
		Products: []models.Product{{Model: withID(1), Name: "Cake", BaseCost: dec("10")}},
		Menus: []models.Menu{{
			Model:        withID(1),
			PricingMode:  models.PricingMargin,
			TargetMargin: dec("30"),
			Entries: []models.MenuEntry{
				{Model: withID(1), ProductID: 1, PricingMode: models.PricingMargin, TargetMargin: dec("30")},
				{Model: withID(2), ProductID: 1, PricingMode: models.PricingMarkup, TargetMargin: dec("30")},
				{
					Model: withID(3), ProductID: 1, PricingMode: models.PricingMargin, TargetMargin: dec("30"),
					SuggestedPrice: dec("12"), OverridePrice: decimal.NewNullDecimal(dec("15")),
				},
				{Model: withID(4), ProductID: 1, PricingMode: models.PricingMargin, TargetMargin: dec("100")},
			},
		}},
	})
	calc := NewCalculator(snap, Config{})
	refs := snap.MenuEntriesOf(1)
	require.Len(t, refs, 4)

	margin, err := calc.PriceMenuEntry(refs[0])
	require.NoError(t, err)
	assertDecimal(t, "10", margin.Cost)
	assertDecimal(t, "14.29", margin.SuggestedPrice)

	markup, err := calc.PriceMenuEntry(refs[1])
	require.NoError(t, err)
	assertDecimal(t, "13", markup.SuggestedPrice)

	overridden, err := calc.PriceMenuEntry(refs[2])
	require.NoError(t, err)
	assert.True(t, overridden.Overridden)
	assertDecimal(t, "10", overridden.Cost)
	assertDecimal(t, "12", overridden.SuggestedPrice)

	_, err = calc.PriceMenuEntry(refs[3])
	require.Error(t, err)
}

func TestComputeOverhead(t *testing.T) {
	t.Parallel()

	fixed := []models.FixedCost{
		{Name: "Rent", Value: dec("3000"), Active: true},
		{Name: "Power", Value: dec("600"), Active: true},
		{Name: "Old lease", Value: dec("999"), Active: false},
	}
	report := ComputeOverhead(fixed, Config{MonthlyLaborHours: dec("160")})
	assertDecimal(t, "3600", report.FixedTotal)
	assertDecimal(t, "22.5", report.PerLaborHour)

	report = ComputeOverhead(fixed, Config{})
	assert.True(t, report.PerLaborHour.IsZero())
}
