package buildings

import (
	"time"

	"github.com/shopspring/decimal"
)

// Building owns units and services and carries the global fallback
// attributes used when a unit leaves its own blank.
type Building struct {
	ID          int64
	Name        string
	Street      string
	City        string
	PostalCode  string
	TotalArea   decimal.Decimal
	TotalPeople int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
