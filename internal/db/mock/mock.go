package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"menucost/internal/cascade"
	applog "menucost/internal/log"
	"menucost/internal/store"
	"menucost/models"
)

// WorkspaceSlug identifies the seeded demo workspace.
const WorkspaceSlug = "demo"

// New returns an in-memory sqlite database seeded with a small restaurant
// whose costs have already been propagated.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	db, err := gorm.Open(sqlite.Open("file:menucost-mock-"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// A shared in-memory database locks whole tables; one connection keeps
	// transactions from tripping over each other.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, err
	}

	if err := seed(ctx, db); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return db, nil
}

func d(value string) decimal.Decimal { return decimal.RequireFromString(value) }

type seeder struct {
	ctx   context.Context
	db    *gorm.DB
	store *store.Store
	ws    models.Workspace
	units map[string]uint
}

func (s *seeder) create(value any) error {
	return s.db.WithContext(s.ctx).Create(value).Error
}

func (s *seeder) unit(symbol string) uint { return s.units[symbol] }

func (s *seeder) unitPtr(symbol string) *uint {
	id := s.units[symbol]
	return &id
}

func seed(ctx context.Context, db *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	s := &seeder{ctx: ctx, db: db, store: store.New(db), units: map[string]uint{}}
	s.ws = models.Workspace{
		Slug:              WorkspaceSlug,
		Name:              "Casa Aurora",
		HourlyLaborRate:   d("18"),
		MonthlyLaborHours: d("176"),
	}
	if err := s.store.CreateWorkspace(ctx, &s.ws); err != nil {
		return err
	}
	for _, symbol := range []string{"g", "kg", "ml", "l", "un", "dz"} {
		unit, err := s.store.UnitBySymbol(ctx, s.ws.ID, symbol)
		if err != nil {
			return err
		}
		s.units[symbol] = unit.ID
	}

	mill := models.Supplier{WorkspaceID: s.ws.ID, Name: "Moinho Central"}
	dairy := models.Supplier{WorkspaceID: s.ws.ID, Name: "Laticinios Serra"}
	bakery := models.Category{WorkspaceID: s.ws.ID, Name: "Bakery"}
	drinks := models.Category{WorkspaceID: s.ws.ID, Name: "Drinks"}
	for _, value := range []any{&mill, &dairy, &bakery, &drinks} {
		if err := s.create(value); err != nil {
			return err
		}
	}

	flour := models.Ingredient{WorkspaceID: s.ws.ID, Name: "Wheat flour", UnitID: s.unit("g"), CategoryID: &bakery.ID}
	butter := models.Ingredient{WorkspaceID: s.ws.ID, Name: "Butter", UnitID: s.unit("g"), CategoryID: &bakery.ID}
	sugar := models.Ingredient{WorkspaceID: s.ws.ID, Name: "Sugar", UnitID: s.unit("g"), CategoryID: &bakery.ID}
	eggs := models.Ingredient{WorkspaceID: s.ws.ID, Name: "Eggs", UnitID: s.unit("un"), CategoryID: &bakery.ID}
	milk := models.Ingredient{WorkspaceID: s.ws.ID, Name: "Whole milk", UnitID: s.unit("ml"), CategoryID: &drinks.ID, AvailableForSale: true}
	beans := models.Ingredient{WorkspaceID: s.ws.ID, Name: "Coffee beans", UnitID: s.unit("g"), CategoryID: &drinks.ID}
	for _, ingredient := range []*models.Ingredient{&flour, &butter, &sugar, &eggs, &milk, &beans} {
		if err := s.create(ingredient); err != nil {
			return err
		}
	}

	week := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	entries := []models.SupplierEntry{
		{IngredientID: flour.ID, SupplierID: &mill.ID, Quantity: d("25"), UnitID: s.unit("kg"), TotalPrice: d("112.50"), Date: week},
		{IngredientID: flour.ID, SupplierID: &mill.ID, Quantity: d("25"), UnitID: s.unit("kg"), TotalPrice: d("118.75"), Date: week.AddDate(0, 0, 14)},
		{IngredientID: butter.ID, SupplierID: &dairy.ID, Quantity: d("5"), UnitID: s.unit("kg"), TotalPrice: d("210"), Date: week},
		{IngredientID: sugar.ID, SupplierID: &mill.ID, Quantity: d("5"), UnitID: s.unit("kg"), TotalPrice: d("24.90"), Date: week},
		{IngredientID: eggs.ID, Quantity: d("2"), UnitID: s.unit("dz"), TotalPrice: d("19.20"), Date: week},
		{IngredientID: milk.ID, SupplierID: &dairy.ID, Quantity: d("12"), UnitID: s.unit("l"), TotalPrice: d("57.60"), Date: week},
		{IngredientID: beans.ID, Quantity: d("1"), UnitID: s.unit("kg"), TotalPrice: d("96"), Date: week},
	}
	for i := range entries {
		entries[i].WorkspaceID = s.ws.ID
		if _, err := s.store.RecordSupplierEntry(ctx, &entries[i]); err != nil {
			return fmt.Errorf("seed supplier entry: %w", err)
		}
	}

	bag := models.IngredientVariation{WorkspaceID: s.ws.ID, IngredientID: flour.ID, Name: "Bag 5 kg", Quantity: d("5"), UnitID: s.unit("kg")}
	carton := models.IngredientVariation{WorkspaceID: s.ws.ID, IngredientID: milk.ID, Name: "Carton 1 l", Quantity: d("1"), UnitID: s.unit("l")}
	if err := s.create(&bag); err != nil {
		return err
	}
	if err := s.create(&carton); err != nil {
		return err
	}

	doughPrep, cakePrep := 20, 45
	dough := models.Recipe{
		WorkspaceID: s.ws.ID, Name: "Sweet dough", YieldQuantity: d("1000"), YieldUnitID: s.unit("g"), PrepTimeMinutes: &doughPrep,
		Items: []models.RecipeItem{
			{ComponentType: models.ComponentIngredient, ComponentID: flour.ID, Quantity: d("600"), UnitID: s.unit("g")},
			{ComponentType: models.ComponentIngredient, ComponentID: butter.ID, Quantity: d("0.2"), UnitID: s.unit("kg")},
			{ComponentType: models.ComponentIngredient, ComponentID: eggs.ID, Quantity: d("4"), UnitID: s.unit("un")},
		},
	}
	if err := s.create(&dough); err != nil {
		return err
	}
	cake := models.Recipe{
		WorkspaceID: s.ws.ID, Name: "Milk cake", YieldQuantity: d("8"), YieldUnitID: s.unit("un"), PrepTimeMinutes: &cakePrep,
		Items: []models.RecipeItem{
			{ComponentType: models.ComponentRecipe, ComponentID: dough.ID, Quantity: d("400"), UnitID: s.unit("g")},
			{ComponentType: models.ComponentIngredient, ComponentID: sugar.ID, Quantity: d("200"), UnitID: s.unit("g")},
			{ComponentType: models.ComponentIngredient, ComponentID: milk.ID, Quantity: d("0.25"), UnitID: s.unit("l")},
		},
	}
	if err := s.create(&cake); err != nil {
		return err
	}

	cups := models.SizeGroup{WorkspaceID: s.ws.ID, Name: "Cups", Options: []models.SizeOption{
		{Name: "Small", Multiplier: d("0.7"), Position: 1},
		{Name: "Medium", Multiplier: d("1"), IsReference: true, Position: 2},
		{Name: "Large", Multiplier: d("1.4"), Position: 3},
	}}
	if err := s.create(&cups); err != nil {
		return err
	}
	medium := cups.Options[1].ID

	slice := models.Product{WorkspaceID: s.ws.ID, Name: "Cake slice", CategoryID: &bakery.ID, Composition: []models.CompositionItem{
		{ComponentType: models.ComponentRecipe, ComponentID: cake.ID, Quantity: d("1"), UnitID: s.unitPtr("un")},
	}}
	latte := models.Product{WorkspaceID: s.ws.ID, Name: "Latte", CategoryID: &drinks.ID, SizeGroupID: &cups.ID, Composition: []models.CompositionItem{
		{ComponentType: models.ComponentIngredient, ComponentID: beans.ID, Quantity: d("18"), UnitID: s.unitPtr("g")},
		{ComponentType: models.ComponentIngredient, ComponentID: milk.ID, Quantity: d("200"), UnitID: s.unitPtr("ml")},
	}}
	if err := s.create(&slice); err != nil {
		return err
	}
	if err := s.create(&latte); err != nil {
		return err
	}
	combo := models.Product{WorkspaceID: s.ws.ID, Name: "Breakfast combo", Composition: []models.CompositionItem{
		{ComponentType: models.ComponentProduct, ComponentID: latte.ID, SizeOptionID: &medium, Quantity: d("1")},
		{ComponentType: models.ComponentProduct, ComponentID: slice.ID, Quantity: d("1")},
	}}
	if err := s.create(&combo); err != nil {
		return err
	}

	counter := models.Menu{WorkspaceID: s.ws.ID, Name: "Counter", PricingMode: models.PricingMargin, TargetMargin: d("65"), Active: true}
	delivery := models.Menu{WorkspaceID: s.ws.ID, Name: "Delivery", PricingMode: models.PricingMarkup, TargetMargin: d("180"), Active: true}
	if err := s.create(&counter); err != nil {
		return err
	}
	if err := s.create(&delivery); err != nil {
		return err
	}
	listings := []models.MenuEntry{
		{MenuID: counter.ID, ProductID: slice.ID},
		{MenuID: counter.ID, ProductID: combo.ID, OverridePrice: decimal.NewNullDecimal(d("24.90"))},
		{MenuID: delivery.ID, ProductID: slice.ID},
		{MenuID: delivery.ID, ProductID: combo.ID},
	}
	for _, option := range cups.Options {
		optionID := option.ID
		listings = append(listings, models.MenuEntry{MenuID: counter.ID, ProductID: latte.ID, SizeOptionID: &optionID})
	}
	for i := range listings {
		if err := s.store.AddMenuEntry(ctx, s.ws.ID, &listings[i]); err != nil {
			return fmt.Errorf("seed menu entry: %w", err)
		}
	}

	fixed := []models.FixedCost{
		{WorkspaceID: s.ws.ID, Name: "Rent", Value: d("4200"), Active: true},
		{WorkspaceID: s.ws.ID, Name: "Energy", Value: d("950"), Active: true},
		{WorkspaceID: s.ws.ID, Name: "Storage unit", Value: d("600"), Active: false},
	}
	if err := s.create(&fixed); err != nil {
		return err
	}

	result, err := cascade.New(s.store, nil, cascade.Options{Workers: 2}).UnitsChanged(ctx, s.ws.ID)
	if err != nil {
		return fmt.Errorf("prime costs: %w", err)
	}
	applog.Debug(ctx, "mock database seeded", "workspace", s.ws.Slug, "job", result.JobID, "updated", result.Updated)
	return nil
}
