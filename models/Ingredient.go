package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ingredient is a purchasable raw material. CurrentUnitCost is expressed per
// base unit of the ingredient's measurement type and is only ever written by
// the cost engine.
type Ingredient struct {
	gorm.Model
	WorkspaceID      uint                  `gorm:"index;not null" json:"workspace_id"`
	Name             string                `gorm:"not null" json:"name"`
	CategoryID       *uint                 `json:"category_id,omitempty"`
	UnitID           uint                  `gorm:"not null" json:"unit_id"`
	CurrentUnitCost  decimal.Decimal       `gorm:"type:decimal(20,8);not null;default:0" json:"current_unit_cost"`
	Unpriced         bool                  `gorm:"not null;default:false" json:"unpriced"`
	AvailableForSale bool                  `gorm:"not null;default:false" json:"available_for_sale"`
	Variations       []IngredientVariation `gorm:"foreignKey:IngredientID" json:"variations,omitempty"`
	Entries          []SupplierEntry       `gorm:"foreignKey:IngredientID" json:"entries,omitempty"`
}

// IngredientVariation is a package size of an ingredient, e.g. a 5 kg sack.
type IngredientVariation struct {
	gorm.Model
	WorkspaceID  uint            `gorm:"index;not null" json:"workspace_id"`
	IngredientID uint            `gorm:"index;not null" json:"ingredient_id"`
	Name         string          `gorm:"not null" json:"name"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	UnitID       uint            `gorm:"not null" json:"unit_id"`
	Cost         decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"cost"`
}

// SupplierEntry records one purchase. The latest entry by (Date, CreatedAt)
// sets the ingredient price.
type SupplierEntry struct {
	gorm.Model
	WorkspaceID  uint            `gorm:"index;not null" json:"workspace_id"`
	IngredientID uint            `gorm:"index;not null" json:"ingredient_id"`
	SupplierID   *uint           `json:"supplier_id,omitempty"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	UnitID       uint            `gorm:"not null" json:"unit_id"`
	TotalPrice   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"total_price"`
	Date         time.Time       `gorm:"not null;index" json:"date"`
}
