// Package store persists workspaces through gorm. It loads cost snapshots,
// commits recalculation changesets and guards the write boundary of the cost
// graph.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"menucost/internal/costing"
	"menucost/internal/units"
	"menucost/models"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrInvalidInput = errors.New("store: invalid input")
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CreateWorkspace inserts the workspace together with the default unit set.
func (s *Store) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ws).Error; err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		defaults := units.Defaults(ws.ID)
		if err := tx.Create(&defaults).Error; err != nil {
			return fmt.Errorf("seed units: %w", err)
		}
		return nil
	})
}

func (s *Store) WorkspaceBySlug(ctx context.Context, slug string) (models.Workspace, error) {
	var ws models.Workspace
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&ws).Error; err != nil {
		return models.Workspace{}, notFound(err, "workspace %q", slug)
	}
	return ws, nil
}

func (s *Store) WorkspaceConfig(ctx context.Context, workspaceID uint) (costing.Config, error) {
	var ws models.Workspace
	if err := s.db.WithContext(ctx).First(&ws, workspaceID).Error; err != nil {
		return costing.Config{}, notFound(err, "workspace %d", workspaceID)
	}
	return costing.ConfigFromWorkspace(ws), nil
}

func (s *Store) UnitBySymbol(ctx context.Context, workspaceID uint, symbol string) (models.Unit, error) {
	var unit models.Unit
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND symbol = ?", workspaceID, symbol).
		First(&unit).Error
	if err != nil {
		return models.Unit{}, notFound(err, "unit %q", symbol)
	}
	return unit, nil
}

func (s *Store) IngredientByName(ctx context.Context, workspaceID uint, name string) (models.Ingredient, error) {
	var ingredient models.Ingredient
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND name = ?", workspaceID, name).
		First(&ingredient).Error
	if err != nil {
		return models.Ingredient{}, notFound(err, "ingredient %q", name)
	}
	return ingredient, nil
}

// LoadSnapshot reads the whole cost graph of a workspace in one transaction.
func (s *Store) LoadSnapshot(ctx context.Context, workspaceID uint) (*costing.Snapshot, error) {
	data := costing.SnapshotData{WorkspaceID: workspaceID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := func() *gorm.DB { return tx.Where("workspace_id = ?", workspaceID) }

		if err := scoped().Find(&data.Units).Error; err != nil {
			return fmt.Errorf("load units: %w", err)
		}
		if err := scoped().Find(&data.Ingredients).Error; err != nil {
			return fmt.Errorf("load ingredients: %w", err)
		}
		if err := scoped().Find(&data.Entries).Error; err != nil {
			return fmt.Errorf("load supplier entries: %w", err)
		}
		if err := scoped().Find(&data.Variations).Error; err != nil {
			return fmt.Errorf("load variations: %w", err)
		}
		if err := scoped().Preload("Items").Find(&data.Recipes).Error; err != nil {
			return fmt.Errorf("load recipes: %w", err)
		}
		if err := scoped().Preload("Composition").Preload("SizeCosts").Find(&data.Products).Error; err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		err := scoped().
			Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
			Find(&data.SizeGroups).Error
		if err != nil {
			return fmt.Errorf("load size groups: %w", err)
		}
		if err := scoped().Preload("Entries").Find(&data.Menus).Error; err != nil {
			return fmt.Errorf("load menus: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data.Build()
}

// Commit writes a changeset atomically.
func (s *Store) Commit(ctx context.Context, workspaceID uint, changes *costing.Changeset) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range changes.Ingredients {
			err := tx.Model(&models.Ingredient{}).
				Where("id = ? AND workspace_id = ?", c.IngredientID, workspaceID).
				Updates(map[string]any{"current_unit_cost": c.UnitCost, "unpriced": c.Unpriced}).Error
			if err != nil {
				return fmt.Errorf("update ingredient %d: %w", c.IngredientID, err)
			}
		}
		for _, c := range changes.Variations {
			err := tx.Model(&models.IngredientVariation{}).
				Where("id = ? AND workspace_id = ?", c.VariationID, workspaceID).
				Update("cost", c.Cost).Error
			if err != nil {
				return fmt.Errorf("update variation %d: %w", c.VariationID, err)
			}
		}
		for _, c := range changes.Recipes {
			err := tx.Model(&models.Recipe{}).
				Where("id = ? AND workspace_id = ?", c.RecipeID, workspaceID).
				Updates(map[string]any{
					"labor_cost":       c.LaborCost,
					"total_cost":       c.TotalCost,
					"cost_per_portion": c.CostPerPortion,
					"unpriced":         c.Unpriced,
				}).Error
			if err != nil {
				return fmt.Errorf("update recipe %d: %w", c.RecipeID, err)
			}
		}
		for _, c := range changes.Products {
			err := tx.Model(&models.Product{}).
				Where("id = ? AND workspace_id = ?", c.ProductID, workspaceID).
				Updates(map[string]any{"base_cost": c.BaseCost, "unpriced": c.Unpriced}).Error
			if err != nil {
				return fmt.Errorf("update product %d: %w", c.ProductID, err)
			}
		}
		for _, c := range changes.SizeCosts {
			row := models.ProductSizeCost{ProductID: c.ProductID, SizeOptionID: c.SizeOptionID, Cost: c.Cost}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "product_id"}, {Name: "size_option_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"cost", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert size cost %d/%d: %w", c.ProductID, c.SizeOptionID, err)
			}
		}
		menus := tx.Model(&models.Menu{}).Select("id").Where("workspace_id = ?", workspaceID)
		for _, c := range changes.MenuEntries {
			err := tx.Model(&models.MenuEntry{}).
				Where("id = ? AND menu_id IN (?)", c.EntryID, menus).
				Updates(map[string]any{"cost": c.Cost, "suggested_price": c.SuggestedPrice}).Error
			if err != nil {
				return fmt.Errorf("update menu entry %d: %w", c.EntryID, err)
			}
		}
		return nil
	})
}

// SaveJob inserts or updates a recalculation job row.
func (s *Store) SaveJob(ctx context.Context, job *models.RecalculationJob) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(job).Error
}

func (s *Store) Job(ctx context.Context, workspaceID uint, id string) (models.RecalculationJob, error) {
	var job models.RecalculationJob
	err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", id, workspaceID).
		First(&job).Error
	if err != nil {
		return models.RecalculationJob{}, notFound(err, "job %s", id)
	}
	return job, nil
}

func (s *Store) FixedCosts(ctx context.Context, workspaceID uint) ([]models.FixedCost, error) {
	var costs []models.FixedCost
	if err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Find(&costs).Error; err != nil {
		return nil, fmt.Errorf("load fixed costs: %w", err)
	}
	return costs, nil
}

// Overhead reports active fixed costs against the workspace labor hours.
func (s *Store) Overhead(ctx context.Context, workspaceID uint) (costing.Overhead, error) {
	cfg, err := s.WorkspaceConfig(ctx, workspaceID)
	if err != nil {
		return costing.Overhead{}, err
	}
	fixed, err := s.FixedCosts(ctx, workspaceID)
	if err != nil {
		return costing.Overhead{}, err
	}
	return costing.ComputeOverhead(fixed, cfg), nil
}
