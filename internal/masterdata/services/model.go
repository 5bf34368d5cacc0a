package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/domus-erp/domus-erp/internal/billing/methodology"
)

// Service is one cost category of a building (heating, water, elevator,
// administration). The methodology fields describe how its total cost
// is shared among units; they are snapshotted by configver so historic
// settlements stay reproducible after a methodology change.
type Service struct {
	ID         int64
	BuildingID int64
	Name       string

	Methodology methodology.Methodology
	// MethodologyRaw retains the free-form string the methodology was
	// normalized from (imported legacy data), empty for native records.
	MethodologyRaw string
	// DataSource selects the attribute or meter type feeding the
	// methodology (floor_area, total_area, cold_water, ...).
	DataSource string
	// AttributeName names the unit attribute for UNIT_PARAMETER.
	AttributeName string
	Formula       string

	UnitPrice   decimal.Decimal
	FixedAmount decimal.Decimal
	Divisor     decimal.Decimal
	// ManualOverrides maps unit ID to a hand-set allocation that wins
	// over the computed one.
	ManualOverrides map[int64]decimal.Decimal

	// Dual-cost split for regulation-billed heating / hot-water ohřev.
	UseDualCost      bool
	CostWithMeter    decimal.Decimal
	CostWithoutMeter decimal.Decimal
	SharesArePercent bool
	GuidanceNumber   decimal.Decimal

	// Passthrough services (repair fund) skip cost distribution; their
	// prescribed advances accumulate separately on the settlement.
	Passthrough bool
	Visible     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cost is one total-amount record for a (service, year). Multiple rows
// for the same key are summed before distribution.
type Cost struct {
	ID        int64
	ServiceID int64
	Year      int
	Amount    decimal.Decimal
	Note      string
}
