// Package configver versions the methodology configuration of a
// building's services. A settlement calculated under one version stays
// reproducible after the configuration changes: restoring the version
// puts every methodology field back.
package configver

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/domus-erp/domus-erp/internal/billing/methodology"
	"github.com/domus-erp/domus-erp/internal/masterdata/services"
)

// ConfigVersion is one named snapshot of a building's service setup.
type ConfigVersion struct {
	ID         uuid.UUID
	BuildingID int64
	Name       string
	Note       string
	// IsDefault marks the version new periods calculate under. At most
	// one version per building carries the flag.
	IsDefault bool
	Snapshot  []ServiceSnapshot
	CreatedAt time.Time
}

// ServiceSnapshot freezes the distribution-relevant fields of one
// service. Identification and cost records are deliberately absent;
// versions capture how costs are shared, not how much they are.
type ServiceSnapshot struct {
	ServiceID       int64                     `json:"serviceId"`
	Name            string                    `json:"name"`
	Methodology     methodology.Methodology   `json:"methodology"`
	MethodologyRaw  string                    `json:"methodologyRaw,omitempty"`
	DataSource      string                    `json:"dataSource,omitempty"`
	AttributeName   string                    `json:"attributeName,omitempty"`
	Formula         string                    `json:"formula,omitempty"`
	UnitPrice       decimal.Decimal           `json:"unitPrice"`
	FixedAmount     decimal.Decimal           `json:"fixedAmount"`
	Divisor         decimal.Decimal           `json:"divisor"`
	ManualOverrides map[int64]decimal.Decimal `json:"manualOverrides,omitempty"`

	UseDualCost      bool            `json:"useDualCost"`
	CostWithMeter    decimal.Decimal `json:"costWithMeter"`
	CostWithoutMeter decimal.Decimal `json:"costWithoutMeter"`
	SharesArePercent bool            `json:"sharesArePercent"`
	GuidanceNumber   decimal.Decimal `json:"guidanceNumber"`

	Passthrough bool `json:"passthrough"`
	Visible     bool `json:"visible"`
}

// SnapshotOf captures the versionable fields of a service.
func SnapshotOf(svc services.Service) ServiceSnapshot {
	return ServiceSnapshot{
		ServiceID:       svc.ID,
		Name:            svc.Name,
		Methodology:     svc.Methodology,
		MethodologyRaw:  svc.MethodologyRaw,
		DataSource:      svc.DataSource,
		AttributeName:   svc.AttributeName,
		Formula:         svc.Formula,
		UnitPrice:       svc.UnitPrice,
		FixedAmount:     svc.FixedAmount,
		Divisor:         svc.Divisor,
		ManualOverrides: svc.ManualOverrides,

		UseDualCost:      svc.UseDualCost,
		CostWithMeter:    svc.CostWithMeter,
		CostWithoutMeter: svc.CostWithoutMeter,
		SharesArePercent: svc.SharesArePercent,
		GuidanceNumber:   svc.GuidanceNumber,

		Passthrough: svc.Passthrough,
		Visible:     svc.Visible,
	}
}
