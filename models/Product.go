package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable item. When SizeGroupID is set, Composition and
// BaseCost describe the reference size of the group.
type Product struct {
	gorm.Model
	WorkspaceID uint              `gorm:"index;not null" json:"workspace_id"`
	Name        string            `gorm:"not null" json:"name"`
	CategoryID  *uint             `json:"category_id,omitempty"`
	BaseCost    decimal.Decimal   `gorm:"type:decimal(20,8);not null;default:0" json:"base_cost"`
	Unpriced    bool              `gorm:"not null;default:false" json:"unpriced"`
	SizeGroupID *uint             `json:"size_group_id,omitempty"`
	Composition []CompositionItem `gorm:"foreignKey:ProductID" json:"composition"`
	SizeCosts   []ProductSizeCost `gorm:"foreignKey:ProductID" json:"size_costs,omitempty"`
}

// CompositionItem is one product line. UnitID is optional: without it the
// quantity is read in the component's own costing unit. SizeOptionID selects
// a size of a nested product.
type CompositionItem struct {
	gorm.Model
	ProductID     uint            `gorm:"index;not null" json:"product_id"`
	ComponentType ComponentKind   `gorm:"type:varchar(16);not null" json:"component_type"`
	ComponentID   uint            `gorm:"not null" json:"component_id"`
	SizeOptionID  *uint           `json:"size_option_id,omitempty"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	UnitID        *uint           `json:"unit_id,omitempty"`
}

// ProductSizeCost is the derived cost of a product at one size option.
type ProductSizeCost struct {
	gorm.Model
	ProductID    uint            `gorm:"uniqueIndex:idx_product_size;not null" json:"product_id"`
	SizeOptionID uint            `gorm:"uniqueIndex:idx_product_size;not null" json:"size_option_id"`
	Cost         decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"cost"`
}
