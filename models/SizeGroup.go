package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SizeGroup struct {
	gorm.Model
	WorkspaceID uint         `gorm:"index;not null" json:"workspace_id"`
	Name        string       `gorm:"not null" json:"name"`
	Options     []SizeOption `gorm:"foreignKey:SizeGroupID" json:"options"`
}

// SizeOption scales cost linearly against the group's reference option.
type SizeOption struct {
	gorm.Model
	SizeGroupID uint            `gorm:"index;not null" json:"size_group_id"`
	Name        string          `gorm:"not null" json:"name"`
	Multiplier  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"multiplier"`
	IsReference bool            `gorm:"not null;default:false" json:"is_reference"`
	Position    int             `gorm:"not null;default:0" json:"position"`
}
