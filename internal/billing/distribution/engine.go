// Package distribution computes per-unit monetary allocations for a
// service's total cost. Allocations always sum exactly to the total
// being distributed, to the cent.
package distribution

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Allocation carries one unit's share of a distributed cost together
// with the audit side-channel (price per unit, quantity, formula text).
type Allocation struct {
	UnitID       int64
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	Amount       decimal.Decimal
	Formula      string
}

// Distribute splits totalCost across units in proportion to their share
// quantities. When the building-wide quantity is zero every allocation
// is zero. Rounding residue is repaired by the largest-remainder method,
// with ties broken by ascending unit ID, so results are deterministic.
func Distribute(totalCost decimal.Decimal, quantities map[int64]decimal.Decimal) []Allocation {
	unitIDs := make([]int64, 0, len(quantities))
	for id := range quantities {
		unitIDs = append(unitIDs, id)
	}
	sort.Slice(unitIDs, func(i, j int) bool { return unitIDs[i] < unitIDs[j] })

	totalQty := decimal.Zero
	for _, id := range unitIDs {
		totalQty = totalQty.Add(quantities[id])
	}

	allocations := make([]Allocation, 0, len(unitIDs))
	if totalQty.IsZero() {
		for _, id := range unitIDs {
			allocations = append(allocations, Allocation{
				UnitID:   id,
				Quantity: quantities[id],
				Amount:   decimal.Zero,
				Formula:  "0.00 (no eligible quantity)",
			})
		}
		return allocations
	}

	price := totalCost.Div(totalQty)

	type remainder struct {
		index int
		frac  decimal.Decimal
	}
	remainders := make([]remainder, 0, len(unitIDs))
	allocatedSum := decimal.Zero
	for i, id := range unitIDs {
		qty := quantities[id]
		raw := price.Mul(qty)
		rounded := raw.Round(2)
		allocations = append(allocations, Allocation{
			UnitID:       id,
			Quantity:     qty,
			PricePerUnit: price,
			Amount:       rounded,
		})
		remainders = append(remainders, remainder{index: i, frac: raw.Sub(rounded)})
		allocatedSum = allocatedSum.Add(rounded)
	}

	// Independent rounding can leave a few cents of residue either way.
	residualCents := totalCost.Sub(allocatedSum).Shift(2).IntPart()
	if residualCents > 0 {
		// Under-allocated: top up the most truncated shares first.
		sort.SliceStable(remainders, func(i, j int) bool {
			if !remainders[i].frac.Equal(remainders[j].frac) {
				return remainders[i].frac.GreaterThan(remainders[j].frac)
			}
			return allocations[remainders[i].index].UnitID < allocations[remainders[j].index].UnitID
		})
		cent := decimal.New(1, -2)
		for k := int64(0); k < residualCents; k++ {
			idx := remainders[k%int64(len(remainders))].index
			allocations[idx].Amount = allocations[idx].Amount.Add(cent)
		}
	} else if residualCents < 0 {
		// Over-allocated: claw back from the most inflated shares first.
		sort.SliceStable(remainders, func(i, j int) bool {
			if !remainders[i].frac.Equal(remainders[j].frac) {
				return remainders[i].frac.LessThan(remainders[j].frac)
			}
			return allocations[remainders[i].index].UnitID < allocations[remainders[j].index].UnitID
		})
		cent := decimal.New(1, -2)
		for k := int64(0); k < -residualCents; k++ {
			idx := remainders[k%int64(len(remainders))].index
			allocations[idx].Amount = allocations[idx].Amount.Sub(cent)
		}
	}

	for i := range allocations {
		a := &allocations[i]
		a.Formula = fmt.Sprintf("%s = %s/unit × %s", a.Amount.StringFixed(2), price.StringFixed(4), a.Quantity.String())
	}
	return allocations
}

// Shares returns only the per-key amounts of Distribute. Callers
// distributing over keys other than units (payment pro-ration keys by
// service) get the same exact-sum guarantee without the audit fields.
func Shares(total decimal.Decimal, quantities map[int64]decimal.Decimal) map[int64]decimal.Decimal {
	allocations := Distribute(total, quantities)
	amounts := make(map[int64]decimal.Decimal, len(allocations))
	for _, a := range allocations {
		amounts[a.UnitID] = a.Amount
	}
	return amounts
}

// Sum adds up the allocated amounts.
func Sum(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}
