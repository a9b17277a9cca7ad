package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MeasurementType groups units that can be converted into each other.
type MeasurementType string

const (
	MeasurementWeight MeasurementType = "weight"
	MeasurementVolume MeasurementType = "volume"
	MeasurementCount  MeasurementType = "count"
)

// ValidMeasurementType reports whether value names a supported measurement type.
func ValidMeasurementType(value MeasurementType) bool {
	switch value {
	case MeasurementWeight, MeasurementVolume, MeasurementCount:
		return true
	}
	return false
}

// Unit stores how many base units equal one of this unit. Base units carry a
// factor of exactly 1.
type Unit struct {
	gorm.Model
	WorkspaceID      uint            `gorm:"index;not null" json:"workspace_id"`
	Name             string          `gorm:"not null" json:"name"`
	Symbol           string          `gorm:"not null" json:"symbol"`
	MeasurementType  MeasurementType `gorm:"type:varchar(16);not null" json:"measurement_type"`
	IsBase           bool            `gorm:"not null;default:false" json:"is_base"`
	ConversionFactor decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"conversion_factor"`
}
