package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Workspace is the tenant boundary. Labor settings feed recipe labor cost and
// overhead reporting.
type Workspace struct {
	gorm.Model
	Slug              string          `gorm:"uniqueIndex;not null" json:"slug"`
	Name              string          `gorm:"not null" json:"name"`
	HourlyLaborRate   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"hourly_labor_rate"`
	MonthlyLaborHours decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"monthly_labor_hours"`
}

type Category struct {
	gorm.Model
	WorkspaceID uint   `gorm:"index;not null" json:"workspace_id"`
	Name        string `gorm:"not null" json:"name"`
}

type Supplier struct {
	gorm.Model
	WorkspaceID uint   `gorm:"index;not null" json:"workspace_id"`
	Name        string `gorm:"not null" json:"name"`
}
