// Package costing holds the cost propagation engine: it resolves ingredient
// unit costs from purchase history and aggregates them through recipes and
// products into size and menu costs. Every computation is a pure function of
// a workspace Snapshot and a Config.
package costing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"menucost/internal/units"
	"menucost/models"
)

// CostScale is the number of fractional digits persisted for every cost.
const CostScale = 8

// Config carries workspace-wide parameters into each aggregation.
type Config struct {
	HourlyLaborRate   decimal.Decimal
	MonthlyLaborHours decimal.Decimal
}

// ConfigFromWorkspace reads the labor settings stored on a workspace.
func ConfigFromWorkspace(ws models.Workspace) Config {
	return Config{
		HourlyLaborRate:   ws.HourlyLaborRate,
		MonthlyLaborHours: ws.MonthlyLaborHours,
	}
}

// Snapshot is an in-memory copy of a workspace's cost graph.
type Snapshot struct {
	WorkspaceID uint
	Units       *units.Table
	Ingredients map[uint]*models.Ingredient
	Entries     map[uint][]models.SupplierEntry
	Variations  map[uint]*models.IngredientVariation
	Recipes     map[uint]*models.Recipe
	Products    map[uint]*models.Product
	SizeGroups  map[uint]*models.SizeGroup
	SizeOptions map[uint]*models.SizeOption
	Menus       map[uint]*models.Menu
}

// SnapshotData is the flat row set a Snapshot is built from. Recipes,
// products, size groups and menus are expected to carry their child rows.
type SnapshotData struct {
	WorkspaceID uint
	Units       []models.Unit
	Ingredients []models.Ingredient
	Entries     []models.SupplierEntry
	Variations  []models.IngredientVariation
	Recipes     []models.Recipe
	Products    []models.Product
	SizeGroups  []models.SizeGroup
	Menus       []models.Menu
}

// Build indexes the rows and validates the unit table.
func (d SnapshotData) Build() (*Snapshot, error) {
	table, err := units.NewTable(d.Units)
	if err != nil {
		return nil, fmt.Errorf("build unit table: %w", err)
	}

	s := &Snapshot{
		WorkspaceID: d.WorkspaceID,
		Units:       table,
		Ingredients: make(map[uint]*models.Ingredient, len(d.Ingredients)),
		Entries:     make(map[uint][]models.SupplierEntry),
		Variations:  make(map[uint]*models.IngredientVariation, len(d.Variations)),
		Recipes:     make(map[uint]*models.Recipe, len(d.Recipes)),
		Products:    make(map[uint]*models.Product, len(d.Products)),
		SizeGroups:  make(map[uint]*models.SizeGroup, len(d.SizeGroups)),
		SizeOptions: make(map[uint]*models.SizeOption),
		Menus:       make(map[uint]*models.Menu, len(d.Menus)),
	}
	for i := range d.Ingredients {
		s.Ingredients[d.Ingredients[i].ID] = &d.Ingredients[i]
	}
	for _, entry := range d.Entries {
		s.Entries[entry.IngredientID] = append(s.Entries[entry.IngredientID], entry)
	}
	for i := range d.Variations {
		s.Variations[d.Variations[i].ID] = &d.Variations[i]
	}
	for i := range d.Recipes {
		s.Recipes[d.Recipes[i].ID] = &d.Recipes[i]
	}
	for i := range d.Products {
		s.Products[d.Products[i].ID] = &d.Products[i]
	}
	for i := range d.SizeGroups {
		group := &d.SizeGroups[i]
		s.SizeGroups[group.ID] = group
		for j := range group.Options {
			s.SizeOptions[group.Options[j].ID] = &group.Options[j]
		}
	}
	for i := range d.Menus {
		s.Menus[d.Menus[i].ID] = &d.Menus[i]
	}
	return s, nil
}

// ProductsInSizeGroup returns the ids of products priced off the group.
func (s *Snapshot) ProductsInSizeGroup(groupID uint) []uint {
	var ids []uint
	for id, product := range s.Products {
		if product.SizeGroupID != nil && *product.SizeGroupID == groupID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VariationsOf returns the ids of an ingredient's package variations.
func (s *Snapshot) VariationsOf(ingredientID uint) []uint {
	var ids []uint
	for id, variation := range s.Variations {
		if variation.IngredientID == ingredientID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MenuEntriesOf returns every menu entry for the product, with its menu.
func (s *Snapshot) MenuEntriesOf(productID uint) []MenuEntryRef {
	var refs []MenuEntryRef
	for _, menu := range s.Menus {
		for i := range menu.Entries {
			if menu.Entries[i].ProductID == productID {
				refs = append(refs, MenuEntryRef{Menu: menu, Entry: &menu.Entries[i]})
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Entry.ID < refs[j].Entry.ID })
	return refs
}

// MenuEntryRef pairs an entry with the menu that owns it.
type MenuEntryRef struct {
	Menu  *models.Menu
	Entry *models.MenuEntry
}
