package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricingMode selects how a target percentage turns cost into price.
type PricingMode string

const (
	PricingMargin PricingMode = "margin"
	PricingMarkup PricingMode = "markup"
)

type Menu struct {
	gorm.Model
	WorkspaceID  uint            `gorm:"index;not null" json:"workspace_id"`
	Name         string          `gorm:"not null" json:"name"`
	PricingMode  PricingMode     `gorm:"type:varchar(16);not null;default:'margin'" json:"pricing_mode"`
	TargetMargin decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"target_margin"`
	Active       bool            `gorm:"not null" json:"active"`
	Entries      []MenuEntry     `gorm:"foreignKey:MenuID" json:"entries,omitempty"`
}

// MenuEntry keeps the pricing target it was created (or last re-priced)
// with, so a menu-level change does not rewrite existing entries unless asked.
type MenuEntry struct {
	gorm.Model
	MenuID         uint                `gorm:"index;not null" json:"menu_id"`
	ProductID      uint                `gorm:"index;not null" json:"product_id"`
	SizeOptionID   *uint               `json:"size_option_id,omitempty"`
	PricingMode    PricingMode         `gorm:"type:varchar(16);not null;default:'margin'" json:"pricing_mode"`
	TargetMargin   decimal.Decimal     `gorm:"type:decimal(20,8);not null;default:0" json:"target_margin"`
	Cost           decimal.Decimal     `gorm:"type:decimal(20,8);not null;default:0" json:"cost"`
	SuggestedPrice decimal.Decimal     `gorm:"type:decimal(20,8);not null;default:0" json:"suggested_price"`
	OverridePrice  decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"override_price"`
}

// FixedCost is workspace overhead reported separately from recipe costs.
type FixedCost struct {
	gorm.Model
	WorkspaceID uint            `gorm:"index;not null" json:"workspace_id"`
	Name        string          `gorm:"not null" json:"name"`
	Value       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"value"`
	Active      bool            `gorm:"not null" json:"active"`
}
