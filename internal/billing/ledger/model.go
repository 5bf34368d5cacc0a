// Package ledger keeps the prescribed monthly advances and actual
// payments per unit, and attributes untagged payments to services.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdvanceMonthly is the prescribed advance for one
// (unit, service, year, month). Unique per key, upsertable.
type AdvanceMonthly struct {
	ID        int64
	UnitID    int64
	ServiceID int64
	Year      int
	Month     int
	Amount    decimal.Decimal
}

// Payment is a dated amount received from a unit. Payments are not
// tagged to a service in the source data.
type Payment struct {
	ID       int64
	UnitID   int64
	Amount   decimal.Decimal
	PaidAt   time.Time
	Variable string
}

// UnitTotals aggregates one unit's ledger for a period.
type UnitTotals struct {
	// Prescribed sums advances per service over the twelve months.
	Prescribed map[int64]decimal.Decimal
	// Paid is the unit's total payments for the period.
	Paid decimal.Decimal
}

// TotalPrescribed sums the per-service prescriptions.
func (t UnitTotals) TotalPrescribed() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range t.Prescribed {
		total = total.Add(amount)
	}
	return total
}
