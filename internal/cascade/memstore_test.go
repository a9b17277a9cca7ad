package cascade

import (
	"context"
	"sync"

	"menucost/internal/costing"
	"menucost/models"
)

// memStore keeps a workspace in memory and applies changesets in place.
type memStore struct {
	mu      sync.Mutex
	data    costing.SnapshotData
	cfg     costing.Config
	jobs    map[string]models.RecalculationJob
	history []models.JobState
	commits int
}

func newMemStore(data costing.SnapshotData, cfg costing.Config) *memStore {
	return &memStore{data: data, cfg: cfg, jobs: make(map[string]models.RecalculationJob)}
}

func (m *memStore) LoadSnapshot(_ context.Context, workspaceID uint) (*costing.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := costing.SnapshotData{
		WorkspaceID: workspaceID,
		Units:       append([]models.Unit(nil), m.data.Units...),
		Ingredients: append([]models.Ingredient(nil), m.data.Ingredients...),
		Entries:     append([]models.SupplierEntry(nil), m.data.Entries...),
		Variations:  append([]models.IngredientVariation(nil), m.data.Variations...),
		Recipes:     append([]models.Recipe(nil), m.data.Recipes...),
	}
	for _, product := range m.data.Products {
		product.SizeCosts = append([]models.ProductSizeCost(nil), product.SizeCosts...)
		d.Products = append(d.Products, product)
	}
	for _, group := range m.data.SizeGroups {
		group.Options = append([]models.SizeOption(nil), group.Options...)
		d.SizeGroups = append(d.SizeGroups, group)
	}
	for _, menu := range m.data.Menus {
		menu.Entries = append([]models.MenuEntry(nil), menu.Entries...)
		d.Menus = append(d.Menus, menu)
	}
	return d.Build()
}

func (m *memStore) WorkspaceConfig(context.Context, uint) (costing.Config, error) {
	return m.cfg, nil
}

func (m *memStore) Commit(_ context.Context, _ uint, changes *costing.Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++

	for _, c := range changes.Ingredients {
		for i := range m.data.Ingredients {
			if m.data.Ingredients[i].ID == c.IngredientID {
				m.data.Ingredients[i].CurrentUnitCost = c.UnitCost
				m.data.Ingredients[i].Unpriced = c.Unpriced
			}
		}
	}
	for _, c := range changes.Variations {
		for i := range m.data.Variations {
			if m.data.Variations[i].ID == c.VariationID {
				m.data.Variations[i].Cost = c.Cost
			}
		}
	}
	for _, c := range changes.Recipes {
		for i := range m.data.Recipes {
			if m.data.Recipes[i].ID == c.RecipeID {
				m.data.Recipes[i].LaborCost = c.LaborCost
				m.data.Recipes[i].TotalCost = c.TotalCost
				m.data.Recipes[i].CostPerPortion = c.CostPerPortion
				m.data.Recipes[i].Unpriced = c.Unpriced
			}
		}
	}
	for _, c := range changes.Products {
		for i := range m.data.Products {
			if m.data.Products[i].ID == c.ProductID {
				m.data.Products[i].BaseCost = c.BaseCost
				m.data.Products[i].Unpriced = c.Unpriced
			}
		}
	}
	for _, c := range changes.SizeCosts {
		for i := range m.data.Products {
			product := &m.data.Products[i]
			if product.ID != c.ProductID {
				continue
			}
			found := false
			for j := range product.SizeCosts {
				if product.SizeCosts[j].SizeOptionID == c.SizeOptionID {
					product.SizeCosts[j].Cost = c.Cost
					found = true
				}
			}
			if !found {
				product.SizeCosts = append(product.SizeCosts, models.ProductSizeCost{
					ProductID: c.ProductID, SizeOptionID: c.SizeOptionID, Cost: c.Cost,
				})
			}
		}
	}
	for _, c := range changes.MenuEntries {
		for i := range m.data.Menus {
			for j := range m.data.Menus[i].Entries {
				entry := &m.data.Menus[i].Entries[j]
				if entry.ID == c.EntryID {
					entry.Cost = c.Cost
					entry.SuggestedPrice = c.SuggestedPrice
				}
			}
		}
	}
	return nil
}

func (m *memStore) SaveJob(_ context.Context, job *models.RecalculationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	m.history = append(m.history, job.State)
	return nil
}

func (m *memStore) addEntry(entry models.SupplierEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Entries = append(m.data.Entries, entry)
}

func (m *memStore) recipe(id uint) models.Recipe {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.data.Recipes {
		if r.ID == id {
			return r
		}
	}
	return models.Recipe{}
}

func (m *memStore) product(id uint) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.data.Products {
		if p.ID == id {
			return p
		}
	}
	return models.Product{}
}

func (m *memStore) menuEntry(id uint) models.MenuEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, menu := range m.data.Menus {
		for _, entry := range menu.Entries {
			if entry.ID == id {
				return entry
			}
		}
	}
	return models.MenuEntry{}
}

func (m *memStore) variation(id uint) models.IngredientVariation {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.data.Variations {
		if v.ID == id {
			return v
		}
	}
	return models.IngredientVariation{}
}
