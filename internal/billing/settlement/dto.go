package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/domus-erp/domus-erp/internal/billing/measurement"
)

type periodResponse struct {
	ID           int64                 `json:"id"`
	BuildingID   int64                 `json:"buildingId"`
	Year         int                   `json:"year"`
	Status       PeriodStatus          `json:"status"`
	CalculatedAt *time.Time            `json:"calculatedAt,omitempty"`
	Warnings     []measurement.Warning `json:"warnings,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

func toPeriodResponse(p BillingPeriod) periodResponse {
	return periodResponse{
		ID:           p.ID,
		BuildingID:   p.BuildingID,
		Year:         p.Year,
		Status:       p.Status,
		CalculatedAt: p.CalculatedAt,
		Warnings:     p.Warnings,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type serviceCostResponse struct {
	ServiceID    int64           `json:"serviceId"`
	ServiceName  string          `json:"serviceName"`
	BuildingCost decimal.Decimal `json:"buildingCost"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	UnitCost     decimal.Decimal `json:"unitCost"`
	Advance      decimal.Decimal `json:"advance"`
	Balance      decimal.Decimal `json:"balance"`
	Formula      string          `json:"formula,omitempty"`
}

type resultResponse struct {
	UnitID                 int64                 `json:"unitId"`
	TotalCost              decimal.Decimal       `json:"totalCost"`
	TotalAdvancePrescribed decimal.Decimal       `json:"totalAdvancePrescribed"`
	TotalAdvancePaid       decimal.Decimal       `json:"totalAdvancePaid"`
	RepairFund             decimal.Decimal       `json:"repairFund"`
	Result                 decimal.Decimal       `json:"result"`
	ServiceCosts           []serviceCostResponse `json:"serviceCosts"`
}

func toResultResponse(r BillingResult) resultResponse {
	lines := make([]serviceCostResponse, 0, len(r.ServiceCosts))
	for _, line := range r.ServiceCosts {
		lines = append(lines, serviceCostResponse{
			ServiceID:    line.ServiceID,
			ServiceName:  line.ServiceName,
			BuildingCost: line.BuildingCost,
			Quantity:     line.Quantity,
			PricePerUnit: line.PricePerUnit,
			UnitCost:     line.UnitCost,
			Advance:      line.Advance,
			Balance:      line.Balance,
			Formula:      line.Formula,
		})
	}
	return resultResponse{
		UnitID:                 r.UnitID,
		TotalCost:              r.TotalCost,
		TotalAdvancePrescribed: r.TotalAdvancePrescribed,
		TotalAdvancePaid:       r.TotalAdvancePaid,
		RepairFund:             r.RepairFund,
		Result:                 r.Result,
		ServiceCosts:           lines,
	}
}
