package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PeriodGuard rejects ledger writes into periods whose settlement is no
// longer a draft.
type PeriodGuard interface {
	EnsurePeriodMutable(ctx context.Context, buildingID int64, year int) error
}

type Service struct {
	repo  Repository
	guard PeriodGuard
}

func NewService(repo Repository, guard PeriodGuard) *Service {
	return &Service{repo: repo, guard: guard}
}

// UpsertAdvanceInput describes one prescribed monthly advance.
type UpsertAdvanceInput struct {
	UnitID    int64
	ServiceID int64
	Year      int
	Month     int
	Amount    decimal.Decimal
}

func (in UpsertAdvanceInput) validate() error {
	if in.UnitID == 0 || in.ServiceID == 0 {
		return errors.New("ledger: unit and service required")
	}
	if in.Month < 1 || in.Month > 12 {
		return fmt.Errorf("ledger: month %d out of range", in.Month)
	}
	if in.Amount.IsNegative() {
		return errors.New("ledger: advance amount cannot be negative")
	}
	return nil
}

// UpsertAdvance is idempotent per (unit, service, year, month).
func (s *Service) UpsertAdvance(ctx context.Context, in UpsertAdvanceInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	buildingID, err := s.repo.UnitBuilding(ctx, in.UnitID)
	if err != nil {
		return err
	}
	if s.guard != nil {
		if err := s.guard.EnsurePeriodMutable(ctx, buildingID, in.Year); err != nil {
			return err
		}
	}
	return s.repo.UpsertAdvance(ctx, AdvanceMonthly{
		UnitID:    in.UnitID,
		ServiceID: in.ServiceID,
		Year:      in.Year,
		Month:     in.Month,
		Amount:    in.Amount,
	})
}

// UnitTotals gathers the period ledger for every unit of a building.
func (s *Service) UnitTotals(ctx context.Context, buildingID int64, year int) (map[int64]UnitTotals, error) {
	prescribed, err := s.repo.PrescribedTotals(ctx, buildingID, year)
	if err != nil {
		return nil, err
	}
	paid, err := s.repo.PaidTotals(ctx, buildingID, year)
	if err != nil {
		return nil, err
	}
	totals := make(map[int64]UnitTotals, len(prescribed))
	for unitID, perService := range prescribed {
		totals[unitID] = UnitTotals{Prescribed: perService, Paid: paid[unitID]}
	}
	// Units that paid without any prescription still appear.
	for unitID, amount := range paid {
		if _, ok := totals[unitID]; !ok {
			totals[unitID] = UnitTotals{Prescribed: map[int64]decimal.Decimal{}, Paid: amount}
		}
	}
	return totals, nil
}

// PaidPerService pro-rates a unit's payments across services; see
// ProRatePayments for the approximation caveat.
func (s *Service) PaidPerService(totals UnitTotals) map[int64]decimal.Decimal {
	return ProRatePayments(totals.Prescribed, totals.Paid)
}
