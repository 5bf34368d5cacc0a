package meters

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates the measured medium of a meter.
type Type string

const (
	TypeHeating     Type = "heating"
	TypeHotWater    Type = "hot_water"
	TypeColdWater   Type = "cold_water"
	TypeElectricity Type = "electricity"
)

// Meter belongs to a unit. A unit may lack a meter for a metered
// service; the dual-cost consumption branch then substitutes the
// service's guidance number.
type Meter struct {
	ID        int64
	UnitID    int64
	Type      Type
	Serial    string
	Active    bool
	CreatedAt time.Time
}

// Reading is one consumption value for a billing year.
type Reading struct {
	ID          int64
	MeterID     int64
	Year        int
	Consumption decimal.Decimal
	ReadAt      time.Time
}

// UnitServiceMeterSetting flags whether a unit participates in a
// service's consumption component with a real meter.
type UnitServiceMeterSetting struct {
	UnitID    int64
	ServiceID int64
	HasMeter  bool
}
