package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// UnitCategory groups units that convert into each other.
type UnitCategory string

// Unit categories.
const (
	CategoryDimensionless UnitCategory = "dimensionless"
	CategoryVolume        UnitCategory = "volume"
	CategoryMass          UnitCategory = "mass"
	CategoryTemperature   UnitCategory = "temperature"
	CategoryMolarity      UnitCategory = "molarity"
)

// FallbackUnitID is the unit assumed for a record without a quantity.
const FallbackUnitID = 1

// UnitLabelLoading is shown while unit metadata has not been loaded.
const UnitLabelLoading = "loading…"

// Unit is a unit of measure. Scale converts a value in this unit to the
// category's base unit; a zero scale means the unit does not convert.
type Unit struct {
	ID          int             `json:"id"`
	Label       string          `json:"label"`
	Category    UnitCategory    `json:"category"`
	Description string          `json:"description,omitempty"`
	Scale       decimal.Decimal `json:"scale"`
}

// UnitRegistry resolves unit metadata by id.
type UnitRegistry interface {
	Unit(id int) (Unit, bool)
	Loaded() bool
}

// Quantity is a numeric value paired with a unit id.
type Quantity struct {
	NumericValue decimal.Decimal `json:"numericValue"`
	UnitID       int             `json:"unitId"`
}

// QuantityInfo resolves display values for an optional quantity.
type QuantityInfo struct {
	source   GlobalID
	quantity *Quantity
	units    UnitRegistry
	notifier *Notifier
}

// NewQuantityInfo wraps q, which may be nil, for the record identified by source.
func NewQuantityInfo(source GlobalID, q *Quantity, units UnitRegistry, notifier *Notifier) *QuantityInfo {
	info := &QuantityInfo{source: source, units: units, notifier: notifier}
	if q != nil {
		cp := *q
		info.quantity = &cp
	}
	return info
}

// Present reports whether a quantity is attached.
func (q *QuantityInfo) Present() bool { return q.quantity != nil }

// Current returns the quantity, using zero and the fallback unit for absent parts.
func (q *QuantityInfo) Current() Quantity {
	return Quantity{NumericValue: q.Value(), UnitID: q.UnitID()}
}

// UnitID returns the quantity's unit id or FallbackUnitID.
func (q *QuantityInfo) UnitID() int {
	if q.quantity == nil || q.quantity.UnitID == 0 {
		return FallbackUnitID
	}
	return q.quantity.UnitID
}

// Value returns the numeric value, or zero when no quantity is attached.
func (q *QuantityInfo) Value() decimal.Decimal {
	if q.quantity == nil {
		return decimal.Zero
	}
	return q.quantity.NumericValue
}

// UnitCategory returns the category of the quantity's unit. Every valid
// record references a known unit, so an unknown id is an error.
func (q *QuantityInfo) UnitCategory() (UnitCategory, error) {
	unit, err := q.unit(q.UnitID())
	if err != nil {
		return "", err
	}
	return unit.Category, nil
}

// UnitLabel returns the unit's label, or UnitLabelLoading while the registry
// has not resolved it yet.
func (q *QuantityInfo) UnitLabel() string {
	if q.units == nil || !q.units.Loaded() {
		return UnitLabelLoading
	}
	unit, ok := q.units.Unit(q.UnitID())
	if !ok {
		return UnitLabelLoading
	}
	return unit.Label
}

// Label returns "<value> <unit>", or "" when no quantity is attached.
func (q *QuantityInfo) Label() string {
	if q.quantity == nil {
		return ""
	}
	return q.Value().String() + " " + q.UnitLabel()
}

// Set replaces the quantity and notifies observers.
func (q *QuantityInfo) Set(next *Quantity) {
	if next == nil {
		q.quantity = nil
	} else {
		cp := *next
		q.quantity = &cp
	}
	q.notifier.Publish(Event{Source: q.source, Field: FieldQuantity})
}

// ConvertTo expresses the quantity in unit target. Both units must belong
// to the same category and carry a scale.
func (q *QuantityInfo) ConvertTo(target int) (Quantity, error) {
	from, err := q.unit(q.UnitID())
	if err != nil {
		return Quantity{}, err
	}
	if from.ID == target {
		return q.Current(), nil
	}
	to, err := q.unit(target)
	if err != nil {
		return Quantity{}, err
	}
	if from.Category != to.Category || from.Scale.IsZero() || to.Scale.IsZero() {
		return Quantity{}, errors.Wrapf(ErrIncompatibleUnits, "%s (%s) to %s (%s)", from.Label, from.Category, to.Label, to.Category)
	}
	value := q.Value().Mul(from.Scale).Div(to.Scale)
	return Quantity{NumericValue: value, UnitID: to.ID}, nil
}

func (q *QuantityInfo) unit(id int) (Unit, error) {
	if q.units == nil {
		return Unit{}, errors.Wrapf(ErrUnknownUnit, "unit %d: no registry", id)
	}
	unit, ok := q.units.Unit(id)
	if !ok {
		return Unit{}, errors.Wrapf(ErrUnknownUnit, "unit %d", id)
	}
	return unit, nil
}
