package distribution

import (
	"testing"

	"github.com/shopspring/decimal"

	_ "github.com/domus-erp/domus-erp/testing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func amountOf(t *testing.T, allocations []Allocation, unitID int64) decimal.Decimal {
	t.Helper()
	for _, a := range allocations {
		if a.UnitID == unitID {
			return a.Amount
		}
	}
	t.Fatalf("no allocation for unit %d", unitID)
	return decimal.Zero
}

func TestDistributeThirdsMatchesLargestRemainder(t *testing.T) {
	// Elektřina, OWNERSHIP_SHARE 1/3 each: residue cent lands on the
	// lowest unit ID because every fractional remainder ties.
	third := dec("1").Div(dec("3"))
	allocations := Distribute(dec("10000.00"), map[int64]decimal.Decimal{
		1: third, 2: third, 3: third,
	})

	if got := Sum(allocations); !got.Equal(dec("10000.00")) {
		t.Fatalf("sum mismatch: %s", got)
	}
	if got := amountOf(t, allocations, 1); !got.Equal(dec("3333.34")) {
		t.Fatalf("unit 1: expected 3333.34 got %s", got)
	}
	if got := amountOf(t, allocations, 2); !got.Equal(dec("3333.33")) {
		t.Fatalf("unit 2: expected 3333.33 got %s", got)
	}
	if got := amountOf(t, allocations, 3); !got.Equal(dec("3333.33")) {
		t.Fatalf("unit 3: expected 3333.33 got %s", got)
	}
}

func TestDistributeExactSumInvariant(t *testing.T) {
	totals := []string{"0.00", "0.01", "999999999.99", "100.00", "7.77"}
	quantities := map[int64]decimal.Decimal{
		10: dec("17.3"), 11: dec("54.01"), 12: dec("0.07"),
		13: dec("100"), 14: dec("33.333"), 15: dec("1"), 16: dec("2.5"),
	}
	for _, total := range totals {
		allocations := Distribute(dec(total), quantities)
		if got := Sum(allocations); !got.Equal(dec(total)) {
			t.Fatalf("total %s: allocations sum to %s", total, got)
		}
	}
}

func TestDistributeZeroQuantityGuard(t *testing.T) {
	allocations := Distribute(dec("500.00"), map[int64]decimal.Decimal{
		1: decimal.Zero, 2: decimal.Zero,
	})
	for _, a := range allocations {
		if !a.Amount.IsZero() {
			t.Fatalf("unit %d: expected zero allocation got %s", a.UnitID, a.Amount)
		}
	}

	if got := Distribute(dec("500.00"), nil); len(got) != 0 {
		t.Fatalf("expected no allocations for empty building, got %d", len(got))
	}
}

func TestDistributeDeterminism(t *testing.T) {
	quantities := map[int64]decimal.Decimal{
		5: dec("12.5"), 9: dec("12.5"), 2: dec("12.5"), 7: dec("12.5"),
	}
	first := Distribute(dec("100.01"), quantities)
	second := Distribute(dec("100.01"), quantities)
	if len(first) != len(second) {
		t.Fatalf("length mismatch")
	}
	for i := range first {
		if first[i].UnitID != second[i].UnitID || !first[i].Amount.Equal(second[i].Amount) {
			t.Fatalf("run diverged at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestDistributeNegativeResidualClawback(t *testing.T) {
	// Three equal shares of 100.01 round up to 33.34 each, overshooting
	// by a cent that must come back deterministically.
	quantities := map[int64]decimal.Decimal{1: dec("1"), 2: dec("1"), 3: dec("1")}
	allocations := Distribute(dec("100.01"), quantities)
	if got := Sum(allocations); !got.Equal(dec("100.01")) {
		t.Fatalf("sum mismatch: %s", got)
	}
	if got := amountOf(t, allocations, 3); !got.Equal(dec("33.34")) {
		t.Fatalf("unit 3: expected 33.34 got %s", got)
	}
	if got := amountOf(t, allocations, 1); !got.Equal(dec("33.33")) {
		t.Fatalf("unit 1: expected 33.33 got %s", got)
	}
}

func TestDistributeCarriesAuditChannel(t *testing.T) {
	allocations := Distribute(dec("100.00"), map[int64]decimal.Decimal{1: dec("40"), 2: dec("60")})
	for _, a := range allocations {
		if a.PricePerUnit.IsZero() {
			t.Fatalf("unit %d: price per unit missing", a.UnitID)
		}
		if a.Formula == "" {
			t.Fatalf("unit %d: formula missing", a.UnitID)
		}
	}
	if got := amountOf(t, allocations, 1); !got.Equal(dec("40.00")) {
		t.Fatalf("unit 1: expected 40.00 got %s", got)
	}
}
