package measurement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domus-erp/domus-erp/internal/billing/methodology"
	"github.com/domus-erp/domus-erp/internal/masterdata/services"
	"github.com/domus-erp/domus-erp/internal/masterdata/units"

	_ "github.com/domus-erp/domus-erp/testing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testUnits() []units.Unit {
	return []units.Unit{
		{ID: 1, Name: "1.01", ShareNumerator: 1, ShareDenominator: 4, TotalArea: dec("80"), FloorArea: dec("72"),
			Attributes: map[string]decimal.Decimal{"chimney_count": dec("2")}},
		{ID: 2, Name: "1.02", ShareNumerator: 3, ShareDenominator: 4, TotalArea: dec("120")},
	}
}

func TestResolveOwnershipShare(t *testing.T) {
	svc := services.Service{ID: 7, Methodology: methodology.OwnershipShare}
	quantities, total, warnings := Resolve(svc, Inputs{Units: testUnits()})

	require.Empty(t, warnings)
	assert.True(t, quantities[1].Equal(dec("0.25")), "got %s", quantities[1])
	assert.True(t, quantities[2].Equal(dec("0.75")), "got %s", quantities[2])
	assert.True(t, total.Equal(dec("1")), "got %s", total)
}

func TestResolveAreaChargeableWithFallback(t *testing.T) {
	svc := services.Service{ID: 7, Methodology: methodology.Area, DataSource: methodology.SourceFloorArea}
	quantities, _, warnings := Resolve(svc, Inputs{Units: testUnits()})

	require.Empty(t, warnings)
	// Unit 1 has a chargeable area; unit 2 falls back to total area.
	assert.True(t, quantities[1].Equal(dec("72")))
	assert.True(t, quantities[2].Equal(dec("120")))
}

func TestResolvePersonMonthsMissingDataWarnsAndZeroes(t *testing.T) {
	svc := services.Service{ID: 7, Methodology: methodology.PersonMonths}
	quantities, total, warnings := Resolve(svc, Inputs{
		Units:        testUnits(),
		PersonMonths: map[int64]int{1: 24},
	})

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnNoPersonMonths, warnings[0].Code)
	assert.Equal(t, int64(2), warnings[0].UnitID)
	assert.True(t, quantities[1].Equal(dec("24")))
	assert.True(t, quantities[2].IsZero())
	assert.True(t, total.Equal(dec("24")))
}

func TestResolveMeterReadingWithoutMeter(t *testing.T) {
	svc := services.Service{ID: 7, Methodology: methodology.MeterReading, DataSource: methodology.SourceColdWater}
	quantities, _, warnings := Resolve(svc, Inputs{
		Units:       testUnits(),
		Consumption: map[int64]decimal.Decimal{1: dec("42.7")},
	})

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnNoMeter, warnings[0].Code)
	assert.True(t, quantities[1].Equal(dec("42.7")))
	assert.True(t, quantities[2].IsZero())
}

func TestResolveEqualSplitAndNoBilling(t *testing.T) {
	equal := services.Service{ID: 7, Methodology: methodology.EqualSplit}
	quantities, total, warnings := Resolve(equal, Inputs{Units: testUnits()})
	require.Empty(t, warnings)
	assert.True(t, quantities[1].Equal(dec("1")))
	assert.True(t, total.Equal(dec("2")))

	none := services.Service{ID: 8, Methodology: methodology.NoBilling}
	quantities, total, warnings = Resolve(none, Inputs{Units: testUnits()})
	require.Empty(t, warnings)
	assert.True(t, quantities[1].IsZero())
	assert.True(t, total.IsZero())
}

func TestResolveUnitParameter(t *testing.T) {
	svc := services.Service{ID: 7, Methodology: methodology.UnitParameter, AttributeName: "chimney_count"}
	quantities, _, warnings := Resolve(svc, Inputs{Units: testUnits()})

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnMissingAttribute, warnings[0].Code)
	assert.Equal(t, int64(2), warnings[0].UnitID)
	assert.True(t, quantities[1].Equal(dec("2")))
	assert.True(t, quantities[2].IsZero())
}

func TestResolveCustomFormulaErrorIsWarningNotFatal(t *testing.T) {
	svc := services.Service{ID: 7, Methodology: methodology.Custom, Formula: "floor_area *"}
	quantities, total, warnings := Resolve(svc, Inputs{Units: testUnits()})

	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, WarnFormulaError, w.Code)
	}
	assert.True(t, quantities[1].IsZero())
	assert.True(t, total.IsZero())
}

func TestResolveCustomFormula(t *testing.T) {
	svc := services.Service{ID: 7, Methodology: methodology.Custom, Formula: "floor_area / 2"}
	quantities, _, warnings := Resolve(svc, Inputs{Units: testUnits()})

	require.Empty(t, warnings)
	assert.True(t, quantities[1].Equal(dec("36")))
	assert.True(t, quantities[2].Equal(dec("60")))
}

func TestResolveUnknownMethodology(t *testing.T) {
	svc := services.Service{ID: 7, Name: "Teplo", Methodology: "DLE_NALADY"}
	quantities, total, warnings := Resolve(svc, Inputs{Units: testUnits()})

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnUnknownMethodology, warnings[0].Code)
	assert.True(t, total.IsZero())
	for _, qty := range quantities {
		assert.True(t, qty.IsZero())
	}
}
