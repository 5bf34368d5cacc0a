package distribution

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DualConfig resolves how a regulation-split service divides its total
// cost into a basic and a consumption component. The two shares are
// either percentages (summing to 100) or absolute amounts (summing to
// the total cost).
type DualConfig struct {
	BasicShare       decimal.Decimal
	ConsumptionShare decimal.Decimal
	SharesArePercent bool
	// GuidanceNumber is the regulatory estimated consumption substituted
	// for units without an active meter in the consumption component.
	GuidanceNumber decimal.Decimal
}

// DualInput gathers everything needed to distribute a dual-cost service.
type DualInput struct {
	TotalCost decimal.Decimal
	Config    DualConfig
	// BasicQuantities is the fixed, non-consumption quantity per unit
	// (typically chargeable area or a constant one per unit).
	BasicQuantities map[int64]decimal.Decimal
	// Consumption holds metered readings; units absent here or flagged
	// without a meter get the guidance number instead.
	Consumption map[int64]decimal.Decimal
	HasMeter    map[int64]bool
}

// DualResult returns both component distributions and their per-unit sum.
type DualResult struct {
	BasicComponent       decimal.Decimal
	ConsumptionComponent decimal.Decimal
	Basic                []Allocation
	Consumption          []Allocation
	Combined             []Allocation
}

var errDualShares = errors.New("distribution: dual-cost shares do not resolve to the total cost")

// SplitComponents resolves the basic and consumption amounts from the
// configured shares. The consumption component is always the remainder
// of the total after the basic component, so the two add up exactly.
func SplitComponents(totalCost decimal.Decimal, cfg DualConfig) (basic, consumption decimal.Decimal, err error) {
	if cfg.SharesArePercent {
		if !cfg.BasicShare.Add(cfg.ConsumptionShare).Equal(decimal.NewFromInt(100)) {
			return decimal.Zero, decimal.Zero, errDualShares
		}
		basic = totalCost.Mul(cfg.BasicShare).Div(decimal.NewFromInt(100)).Round(2)
		return basic, totalCost.Sub(basic), nil
	}
	if !cfg.BasicShare.Add(cfg.ConsumptionShare).Equal(totalCost) {
		return decimal.Zero, decimal.Zero, errDualShares
	}
	return cfg.BasicShare, cfg.ConsumptionShare, nil
}

// DistributeDual runs the engine once per component and sums the two
// results per unit. The exact-sum invariant holds for each component
// and therefore for the combined allocation.
func DistributeDual(in DualInput) (DualResult, error) {
	basicAmount, consumptionAmount, err := SplitComponents(in.TotalCost, in.Config)
	if err != nil {
		return DualResult{}, err
	}

	consumptionQty := make(map[int64]decimal.Decimal, len(in.BasicQuantities))
	for unitID := range in.BasicQuantities {
		if in.HasMeter[unitID] {
			consumptionQty[unitID] = in.Consumption[unitID]
			continue
		}
		consumptionQty[unitID] = in.Config.GuidanceNumber
	}

	result := DualResult{
		BasicComponent:       basicAmount,
		ConsumptionComponent: consumptionAmount,
		Basic:                Distribute(basicAmount, in.BasicQuantities),
		Consumption:          Distribute(consumptionAmount, consumptionQty),
	}

	byUnit := make(map[int64]Allocation, len(result.Basic))
	for _, a := range result.Basic {
		byUnit[a.UnitID] = a
	}
	combined := make([]Allocation, 0, len(result.Basic))
	for _, c := range result.Consumption {
		b := byUnit[c.UnitID]
		combined = append(combined, Allocation{
			UnitID:   c.UnitID,
			Quantity: c.Quantity,
			Amount:   b.Amount.Add(c.Amount),
			Formula:  fmt.Sprintf("basic %s + consumption %s", b.Amount.StringFixed(2), c.Amount.StringFixed(2)),
		})
	}
	result.Combined = combined
	return result, nil
}
