package units

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unit is one apartment or commercial space inside a building. A unit
// becomes immutable once a settlement covering it has been calculated.
type Unit struct {
	ID               int64
	BuildingID       int64
	Name             string
	ShareNumerator   int64
	ShareDenominator int64
	TotalArea        decimal.Decimal
	FloorArea        decimal.Decimal
	Residents        *int
	// VariableSymbol matches incoming payments to the unit.
	VariableSymbol string
	// Attributes holds named parameters (e.g. chimney_count) consumed by
	// the UNIT_PARAMETER and CUSTOM methodologies.
	Attributes map[string]decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ShareFraction returns the ownership share as a decimal quantity,
// zero when the denominator is unset.
func (u Unit) ShareFraction() decimal.Decimal {
	if u.ShareDenominator == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(u.ShareNumerator).Div(decimal.NewFromInt(u.ShareDenominator))
}

// ChargeableArea prefers the floor ("chargeable") area and falls back
// to the total area when unset.
func (u Unit) ChargeableArea() decimal.Decimal {
	if u.FloorArea.IsPositive() {
		return u.FloorArea
	}
	return u.TotalArea
}

// PersonMonth records the occupant count of a unit for one month.
type PersonMonth struct {
	ID          int64
	UnitID      int64
	Year        int
	Month       int
	PersonCount int
}
