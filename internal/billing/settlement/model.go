package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/domus-erp/domus-erp/internal/billing/measurement"
	"github.com/domus-erp/domus-erp/internal/shared"
)

// PeriodStatus enumerates billing period lifecycle values.
type PeriodStatus string

const (
	PeriodStatusDraft      PeriodStatus = "DRAFT"
	PeriodStatusCalculated PeriodStatus = "CALCULATED"
	PeriodStatusApproved   PeriodStatus = "APPROVED"
	PeriodStatusSent       PeriodStatus = "SENT"
)

// ValidateTransition checks status changes according to policy.
// Recalculating drops an already calculated period back to CALCULATED;
// approved and sent periods only move forward.
func ValidateTransition(current, target PeriodStatus) error {
	if current == target {
		return nil
	}
	switch current {
	case PeriodStatusDraft:
		if target == PeriodStatusCalculated {
			return nil
		}
	case PeriodStatusCalculated:
		if target == PeriodStatusApproved || target == PeriodStatusDraft {
			return nil
		}
	case PeriodStatusApproved:
		if target == PeriodStatusSent {
			return nil
		}
	}
	return shared.ErrInvalidPeriodTransition
}

// Mutable reports whether settlement inputs for the period may still
// change (advances, costs, readings).
func (s PeriodStatus) Mutable() bool {
	return s == PeriodStatusDraft || s == PeriodStatusCalculated
}

// BillingPeriod is one settlement window of a building, a calendar year.
type BillingPeriod struct {
	ID           int64
	BuildingID   int64
	Year         int
	Status       PeriodStatus
	CalculatedAt *time.Time
	Warnings     []measurement.Warning
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BillingResult is the final settlement of one unit for one period.
// Result keeps the sign convention: positive means overpayment.
type BillingResult struct {
	ID                     int64
	PeriodID               int64
	UnitID                 int64
	TotalCost              decimal.Decimal
	TotalAdvancePrescribed decimal.Decimal
	// TotalAdvancePaid is attributed to services by pro-ration and is
	// therefore an estimate when payments are untagged.
	TotalAdvancePaid decimal.Decimal
	RepairFund       decimal.Decimal
	Result           decimal.Decimal
	ServiceCosts     []BillingServiceCost
}

// BillingServiceCost is the per-service audit line item of a result.
type BillingServiceCost struct {
	ID           int64
	ResultID     int64
	ServiceID    int64
	ServiceName  string
	BuildingCost decimal.Decimal
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	UnitCost     decimal.Decimal
	Advance      decimal.Decimal
	Balance      decimal.Decimal
	Formula      string
}

// Report accompanies a successful recalculation so operators can see
// which units and services needed a fallback.
type Report struct {
	RunID        string                `json:"runId"`
	PeriodID     int64                 `json:"periodId"`
	BuildingID   int64                 `json:"buildingId"`
	Year         int                   `json:"year"`
	Units        int                   `json:"units"`
	Services     int                   `json:"services"`
	Warnings     []measurement.Warning `json:"warnings"`
	CalculatedAt time.Time             `json:"calculatedAt"`
}
