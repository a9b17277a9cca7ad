package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ComponentKind tags the polymorphic side of a composition line.
type ComponentKind string

const (
	ComponentIngredient ComponentKind = "ingredient"
	ComponentRecipe     ComponentKind = "recipe"
	ComponentProduct    ComponentKind = "product"
)

type Recipe struct {
	gorm.Model
	WorkspaceID      uint            `gorm:"index;not null" json:"workspace_id"`
	Name             string          `gorm:"not null" json:"name"`
	YieldQuantity    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"yield_quantity"`
	YieldUnitID      uint            `gorm:"not null" json:"yield_unit_id"`
	PrepTimeMinutes  *int            `json:"prep_time_minutes,omitempty"`
	LaborCost        decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"labor_cost"`
	TotalCost        decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"total_cost"`
	CostPerPortion   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"cost_per_portion"`
	Unpriced         bool            `gorm:"not null;default:false" json:"unpriced"`
	AvailableForSale bool            `gorm:"not null;default:false" json:"available_for_sale"`
	Items            []RecipeItem    `gorm:"foreignKey:RecipeID" json:"items"`
}

// RecipeItem references either an ingredient or a sub-recipe.
type RecipeItem struct {
	gorm.Model
	RecipeID      uint            `gorm:"index;not null" json:"recipe_id"`
	ComponentType ComponentKind   `gorm:"type:varchar(16);not null" json:"component_type"`
	ComponentID   uint            `gorm:"not null" json:"component_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	UnitID        uint            `gorm:"not null" json:"unit_id"`
}
