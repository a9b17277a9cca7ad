// Package units converts quantities between units of the same measurement
// type using per-workspace conversion factors relative to a base unit.
package units

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"menucost/models"
)

// DivisionScale is the number of fractional digits kept on intermediate
// divisions.
const DivisionScale = 16

var (
	ErrIncompatibleMeasurementType = errors.New("units: incompatible measurement type")
	ErrUnknownUnit                 = errors.New("units: unknown unit")
	ErrInvalidConversionFactor     = errors.New("units: invalid conversion factor")
	ErrMissingBaseUnit             = errors.New("units: measurement type has no base unit")
	ErrDuplicateBaseUnit           = errors.New("units: measurement type has more than one base unit")
	ErrBaseUnitImmutable           = errors.New("units: base units cannot be changed or removed")
)

// MinConversionFactor is the smallest conversion factor step accepted.
var MinConversionFactor = decimal.New(1, -6)

// Table is an immutable lookup of a workspace's units.
type Table struct {
	units map[uint]models.Unit
	base  map[models.MeasurementType]models.Unit
}

// NewTable validates the unit set and builds a Table. A measurement type that
// has units must have exactly one base unit with a factor of 1.
func NewTable(list []models.Unit) (*Table, error) {
	t := &Table{
		units: make(map[uint]models.Unit, len(list)),
		base:  make(map[models.MeasurementType]models.Unit),
	}
	seen := make(map[models.MeasurementType]bool)
	for _, unit := range list {
		if err := ValidateUnit(unit); err != nil {
			return nil, err
		}
		t.units[unit.ID] = unit
		seen[unit.MeasurementType] = true
		if !unit.IsBase {
			continue
		}
		if _, dup := t.base[unit.MeasurementType]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBaseUnit, unit.MeasurementType)
		}
		t.base[unit.MeasurementType] = unit
	}
	for mt := range seen {
		if _, ok := t.base[mt]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingBaseUnit, mt)
		}
	}
	return t, nil
}

// ValidateUnit checks the invariants of a single unit row.
func ValidateUnit(unit models.Unit) error {
	if !models.ValidMeasurementType(unit.MeasurementType) {
		return fmt.Errorf("%w: unit %d has measurement type %q", ErrIncompatibleMeasurementType, unit.ID, unit.MeasurementType)
	}
	if unit.IsBase && !unit.ConversionFactor.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: base unit %q must have factor 1", ErrInvalidConversionFactor, unit.Symbol)
	}
	if unit.ConversionFactor.LessThan(MinConversionFactor) {
		return fmt.Errorf("%w: unit %q factor %s", ErrInvalidConversionFactor, unit.Symbol, unit.ConversionFactor)
	}
	if !unit.ConversionFactor.Equal(unit.ConversionFactor.Truncate(6)) {
		return fmt.Errorf("%w: unit %q factor %s exceeds 6 decimals", ErrInvalidConversionFactor, unit.Symbol, unit.ConversionFactor)
	}
	return nil
}

// Unit returns the unit with the given id.
func (t *Table) Unit(id uint) (models.Unit, error) {
	unit, ok := t.units[id]
	if !ok {
		return models.Unit{}, fmt.Errorf("%w: %d", ErrUnknownUnit, id)
	}
	return unit, nil
}

// Base returns the base unit of a measurement type.
func (t *Table) Base(mt models.MeasurementType) (models.Unit, error) {
	unit, ok := t.base[mt]
	if !ok {
		return models.Unit{}, fmt.Errorf("%w: %s", ErrMissingBaseUnit, mt)
	}
	return unit, nil
}

// Units returns every unit ordered by id.
func (t *Table) Units() []models.Unit {
	out := make([]models.Unit, 0, len(t.units))
	for _, unit := range t.units {
		out = append(out, unit)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Convert expresses quantity given in from as a quantity of to.
func Convert(quantity decimal.Decimal, from, to models.Unit) (decimal.Decimal, error) {
	if from.MeasurementType != to.MeasurementType {
		return decimal.Zero, fmt.Errorf("%w: %s (%s) to %s (%s)",
			ErrIncompatibleMeasurementType, from.Symbol, from.MeasurementType, to.Symbol, to.MeasurementType)
	}
	if to.ConversionFactor.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: unit %q", ErrInvalidConversionFactor, to.Symbol)
	}
	if from.ID == to.ID && from.ID != 0 {
		return quantity, nil
	}
	return quantity.Mul(from.ConversionFactor).DivRound(to.ConversionFactor, DivisionScale), nil
}

// Convert looks both units up and converts quantity between them.
func (t *Table) Convert(quantity decimal.Decimal, fromID, toID uint) (decimal.Decimal, error) {
	from, err := t.Unit(fromID)
	if err != nil {
		return decimal.Zero, err
	}
	to, err := t.Unit(toID)
	if err != nil {
		return decimal.Zero, err
	}
	return Convert(quantity, from, to)
}

// ToBase converts quantity into the base unit of the unit's measurement type.
func (t *Table) ToBase(quantity decimal.Decimal, fromID uint) (decimal.Decimal, models.Unit, error) {
	from, err := t.Unit(fromID)
	if err != nil {
		return decimal.Zero, models.Unit{}, err
	}
	base, err := t.Base(from.MeasurementType)
	if err != nil {
		return decimal.Zero, models.Unit{}, err
	}
	converted, err := Convert(quantity, from, base)
	if err != nil {
		return decimal.Zero, models.Unit{}, err
	}
	return converted, base, nil
}

// Defaults returns the unit set seeded into new workspaces.
func Defaults(workspaceID uint) []models.Unit {
	unit := func(name, symbol string, mt models.MeasurementType, base bool, factor string) models.Unit {
		return models.Unit{
			WorkspaceID:      workspaceID,
			Name:             name,
			Symbol:           symbol,
			MeasurementType:  mt,
			IsBase:           base,
			ConversionFactor: decimal.RequireFromString(factor),
		}
	}
	return []models.Unit{
		unit("Gram", "g", models.MeasurementWeight, true, "1"),
		unit("Milligram", "mg", models.MeasurementWeight, false, "0.001"),
		unit("Kilogram", "kg", models.MeasurementWeight, false, "1000"),
		unit("Milliliter", "ml", models.MeasurementVolume, true, "1"),
		unit("Liter", "l", models.MeasurementVolume, false, "1000"),
		unit("Unit", "un", models.MeasurementCount, true, "1"),
		unit("Dozen", "dz", models.MeasurementCount, false, "12"),
	}
}
