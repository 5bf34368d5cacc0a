// Package methodology defines the closed set of cost-distribution
// strategies a service can be configured with, plus the normalization
// layer that maps free-form historical methodology strings onto it.
package methodology

// Methodology enumerates distribution strategy values.
type Methodology string

const (
	// OwnershipShare distributes by the unit's ownership fraction.
	OwnershipShare Methodology = "OWNERSHIP_SHARE"
	// Area distributes by chargeable or total floor area.
	Area Methodology = "AREA"
	// PersonMonths distributes by occupant counts summed over the period.
	PersonMonths Methodology = "PERSON_MONTHS"
	// MeterReading distributes by metered consumption.
	MeterReading Methodology = "METER_READING"
	// FixedPerUnit charges a constant quantity of one per unit.
	FixedPerUnit Methodology = "FIXED_PER_UNIT"
	// EqualSplit divides the cost evenly across units.
	EqualSplit Methodology = "EQUAL_SPLIT"
	// NoBilling excludes the service from settlement entirely.
	NoBilling Methodology = "NO_BILLING"
	// UnitParameter distributes by a named unit attribute.
	UnitParameter Methodology = "UNIT_PARAMETER"
	// Custom evaluates the service's formula string per unit.
	Custom Methodology = "CUSTOM"
)

// Valid reports whether the value belongs to the closed set.
func (m Methodology) Valid() bool {
	switch m {
	case OwnershipShare, Area, PersonMonths, MeterReading,
		FixedPerUnit, EqualSplit, NoBilling, UnitParameter, Custom:
		return true
	}
	return false
}

// Data-source descriptors a service may carry alongside its methodology.
const (
	SourceFloorArea   = "floor_area"
	SourceTotalArea   = "total_area"
	SourceColdWater   = "cold_water"
	SourceHotWater    = "hot_water"
	SourceHeating     = "heating"
	SourceElectricity = "electricity"
)
