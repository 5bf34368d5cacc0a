// Package measurement resolves the methodology-specific share quantity
// of every unit for one (service, period). Missing inputs never abort a
// settlement; they resolve to zero and surface as warnings.
package measurement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/domus-erp/domus-erp/internal/billing/methodology"
	"github.com/domus-erp/domus-erp/internal/masterdata/services"
	"github.com/domus-erp/domus-erp/internal/masterdata/units"
)

// Warning codes surfaced in the settlement report.
const (
	WarnNoMeter            = "no_meter"
	WarnNoPersonMonths     = "no_person_months"
	WarnNoArea             = "no_area"
	WarnZeroShare          = "zero_share"
	WarnMissingAttribute   = "missing_attribute"
	WarnFormulaError       = "formula_error"
	WarnUnknownMethodology = "unknown_methodology"
)

// Warning records one missing-data or configuration fallback. UnitID is
// zero for service-scoped warnings.
type Warning struct {
	ServiceID int64  `json:"serviceId"`
	UnitID    int64  `json:"unitId,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Inputs carries the pre-gathered data a resolution needs. Everything
// is read up front so resolving never touches I/O.
type Inputs struct {
	Units []units.Unit
	// PersonMonths sums each unit's occupant counts over the period.
	PersonMonths map[int64]int
	// Consumption holds the latest reading per unit for the service's
	// meter type; units without an active meter are absent.
	Consumption map[int64]decimal.Decimal
}

// Resolve returns the share quantity per unit for the service. The
// second return value is the building-wide total; warnings report every
// fallback taken. Unknown methodologies yield all-zero quantities with
// a configuration warning, excluding the service from the settlement.
func Resolve(svc services.Service, in Inputs) (map[int64]decimal.Decimal, decimal.Decimal, []Warning) {
	quantities := make(map[int64]decimal.Decimal, len(in.Units))
	var warnings []Warning

	warn := func(unitID int64, code, format string, args ...any) {
		warnings = append(warnings, Warning{
			ServiceID: svc.ID,
			UnitID:    unitID,
			Code:      code,
			Message:   fmt.Sprintf(format, args...),
		})
	}

	for _, unit := range in.Units {
		var qty decimal.Decimal

		switch svc.Methodology {
		case methodology.OwnershipShare:
			qty = unit.ShareFraction()
			if qty.IsZero() {
				warn(unit.ID, WarnZeroShare, "unit %s has no ownership share", unit.Name)
			}

		case methodology.Area:
			if svc.DataSource == methodology.SourceFloorArea {
				qty = unit.ChargeableArea()
			} else {
				qty = unit.TotalArea
			}
			if qty.IsZero() {
				warn(unit.ID, WarnNoArea, "unit %s has no area for service %s", unit.Name, svc.Name)
			}

		case methodology.PersonMonths:
			months, ok := in.PersonMonths[unit.ID]
			if !ok {
				warn(unit.ID, WarnNoPersonMonths, "unit %s has no person-month records", unit.Name)
			}
			qty = decimal.NewFromInt(int64(months))

		case methodology.MeterReading:
			reading, ok := in.Consumption[unit.ID]
			if !ok {
				warn(unit.ID, WarnNoMeter, "unit %s has no active %s meter", unit.Name, svc.DataSource)
			}
			qty = reading

		case methodology.FixedPerUnit, methodology.EqualSplit:
			qty = decimal.NewFromInt(1)

		case methodology.NoBilling:
			qty = decimal.Zero

		case methodology.UnitParameter:
			value, ok := unit.Attributes[svc.AttributeName]
			if !ok {
				warn(unit.ID, WarnMissingAttribute, "unit %s missing attribute %q", unit.Name, svc.AttributeName)
			}
			qty = value

		case methodology.Custom:
			result, err := methodology.EvaluateFormula(svc.Formula, formulaInput(unit, in))
			if err != nil {
				warn(unit.ID, WarnFormulaError, "%v", err)
			}
			qty = result

		default:
			warn(0, WarnUnknownMethodology, "service %s has unknown methodology %q", svc.Name, svc.Methodology)
			return zeroQuantities(in.Units), decimal.Zero, warnings
		}

		quantities[unit.ID] = qty
	}

	total := decimal.Zero
	for _, qty := range quantities {
		total = total.Add(qty)
	}
	return quantities, total, warnings
}

func formulaInput(unit units.Unit, in Inputs) methodology.FormulaInput {
	attrs := make(map[string]float64, len(unit.Attributes))
	for name, value := range unit.Attributes {
		attrs[name] = value.InexactFloat64()
	}
	var residents float64
	if unit.Residents != nil {
		residents = float64(*unit.Residents)
	} else if months, ok := in.PersonMonths[unit.ID]; ok {
		residents = float64(months) / 12
	}
	return methodology.FormulaInput{
		Share:      unit.ShareFraction().InexactFloat64(),
		TotalArea:  unit.TotalArea.InexactFloat64(),
		FloorArea:  unit.ChargeableArea().InexactFloat64(),
		Residents:  residents,
		Attributes: attrs,
	}
}

func zeroQuantities(list []units.Unit) map[int64]decimal.Decimal {
	quantities := make(map[int64]decimal.Decimal, len(list))
	for _, unit := range list {
		quantities[unit.ID] = decimal.Zero
	}
	return quantities
}
