package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/domus-erp/domus-erp/internal/billing/distribution"
)

// ProRatePayments attributes a unit's untagged payments across its
// services in proportion to each service's share of the prescribed
// advances. This is an approximation: it assumes payments were made in
// the same ratio as prescriptions, which the source data cannot
// confirm. Consumers must treat per-service paid figures as estimates.
//
// When nothing was prescribed every service gets zero; the distribution
// engine's residue repair keeps the per-service sum exactly equal to
// the paid total otherwise.
func ProRatePayments(prescribed map[int64]decimal.Decimal, totalPaid decimal.Decimal) map[int64]decimal.Decimal {
	return distribution.Shares(totalPaid, prescribed)
}
