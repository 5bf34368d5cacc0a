package settlement

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/domus-erp/domus-erp/internal/billing/distribution"
	"github.com/domus-erp/domus-erp/internal/billing/ledger"
	"github.com/domus-erp/domus-erp/internal/billing/measurement"
	"github.com/domus-erp/domus-erp/internal/billing/methodology"
	"github.com/domus-erp/domus-erp/internal/masterdata/meters"
	"github.com/domus-erp/domus-erp/internal/masterdata/services"
	"github.com/domus-erp/domus-erp/internal/masterdata/units"
	"github.com/domus-erp/domus-erp/internal/observability"
	"github.com/domus-erp/domus-erp/internal/shared"
)

// Locker serializes recalculations of the same (building, year).
type Locker interface {
	Acquire(ctx context.Context, buildingID int64, year int) (func() error, error)
}

// LedgerReader supplies the advance/payment totals per unit.
type LedgerReader interface {
	UnitTotals(ctx context.Context, buildingID int64, year int) (map[int64]ledger.UnitTotals, error)
}

// Service runs settlements: it gathers master data, costs and the
// ledger, distributes every service's cost and replaces the period's
// results atomically.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	units    units.Repository
	services services.Repository
	meters   meters.Repository
	ledger   LedgerReader
	locker   Locker
	audit    *shared.AuditLogger
	metrics  *observability.Metrics
	now      func() time.Time
}

type ServiceParams struct {
	Logger   *slog.Logger
	Repo     Repository
	Units    units.Repository
	Services services.Repository
	Meters   meters.Repository
	Ledger   LedgerReader
	Locker   Locker
	Audit    *shared.AuditLogger
	Metrics  *observability.Metrics
}

func NewService(p ServiceParams) *Service {
	return &Service{
		logger:   p.Logger,
		repo:     p.Repo,
		units:    p.Units,
		services: p.Services,
		meters:   p.Meters,
		ledger:   p.Ledger,
		locker:   p.Locker,
		audit:    p.Audit,
		metrics:  p.Metrics,
		now:      time.Now,
	}
}

// EnsurePeriodMutable implements ledger.PeriodGuard. A year with no
// period yet is open for input by definition.
func (s *Service) EnsurePeriodMutable(ctx context.Context, buildingID int64, year int) error {
	period, err := s.repo.GetPeriodByKey(ctx, buildingID, year)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !period.Status.Mutable() {
		return shared.ErrPeriodImmutable
	}
	return nil
}

// CreatePeriod opens the settlement window for a (building, year).
// Creating an already existing period returns the existing one.
func (s *Service) CreatePeriod(ctx context.Context, buildingID int64, year int) (BillingPeriod, error) {
	period, err := s.repo.GetPeriodByKey(ctx, buildingID, year)
	if err == nil {
		return period, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return BillingPeriod{}, err
	}
	return s.repo.CreatePeriod(ctx, buildingID, year)
}

func (s *Service) GetPeriod(ctx context.Context, id int64) (BillingPeriod, error) {
	return s.repo.GetPeriod(ctx, id)
}

func (s *Service) PeriodResults(ctx context.Context, periodID int64) ([]BillingResult, error) {
	if _, err := s.repo.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.repo.ListResults(ctx, periodID)
}

// Transition moves the period through its lifecycle and records who did
// it. Reopening a calculated period is a transition back to DRAFT.
func (s *Service) Transition(ctx context.Context, periodID int64, target PeriodStatus) (BillingPeriod, error) {
	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return BillingPeriod{}, err
	}
	if err := ValidateTransition(period.Status, target); err != nil {
		return BillingPeriod{}, err
	}
	if err := s.repo.UpdatePeriodStatus(ctx, periodID, target); err != nil {
		return BillingPeriod{}, err
	}
	s.recordAudit(ctx, "billing.period.transition", period.ID, map[string]any{
		"from": string(period.Status),
		"to":   string(target),
	})
	period.Status = target
	return period, nil
}

// DeletePeriod removes a period and its results. Approved and sent
// periods cannot be deleted.
func (s *Service) DeletePeriod(ctx context.Context, periodID int64) error {
	period, err := s.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if !period.Status.Mutable() {
		return shared.ErrPeriodImmutable
	}
	if err := s.repo.DeletePeriod(ctx, periodID); err != nil {
		return err
	}
	s.recordAudit(ctx, "billing.period.delete", period.ID, map[string]any{
		"buildingId": period.BuildingID,
		"year":       period.Year,
	})
	return nil
}

// periodInputs is everything a recalculation reads, gathered up front
// so the computation itself is pure.
type periodInputs struct {
	units        []units.Unit
	personMonths map[int64]int
	costs        map[int64]decimal.Decimal
	services     []services.Service
	ledger       map[int64]ledger.UnitTotals
	consumption  map[int64]map[int64]decimal.Decimal
	meterFlags   map[int64]map[int64]bool
}

func (s *Service) gatherInputs(ctx context.Context, buildingID int64, year int) (periodInputs, error) {
	var in periodInputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.units, err = s.units.ListByBuilding(gctx, buildingID)
		return err
	})
	g.Go(func() (err error) {
		in.personMonths, err = s.units.PersonMonthTotals(gctx, buildingID, year)
		return err
	})
	g.Go(func() (err error) {
		in.services, err = s.services.ListByBuilding(gctx, buildingID)
		return err
	})
	g.Go(func() (err error) {
		in.costs, err = s.services.CostTotals(gctx, buildingID, year)
		return err
	})
	g.Go(func() (err error) {
		in.ledger, err = s.ledger.UnitTotals(gctx, buildingID, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return periodInputs{}, err
	}

	// Second phase: meter data for the services that need it.
	in.consumption = make(map[int64]map[int64]decimal.Decimal)
	in.meterFlags = make(map[int64]map[int64]bool)
	var mu sync.Mutex
	g, gctx = errgroup.WithContext(ctx)
	for _, svc := range in.services {
		if svc.Methodology != methodology.MeterReading && !svc.UseDualCost {
			continue
		}
		svc := svc
		g.Go(func() error {
			consumption, err := s.meters.LatestConsumption(gctx, buildingID, meters.Type(svc.DataSource), year)
			if err != nil {
				return err
			}
			flags, err := s.meters.MeterSettings(gctx, svc.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			in.consumption[svc.ID] = consumption
			in.meterFlags[svc.ID] = flags
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return periodInputs{}, err
	}
	return in, nil
}

// serviceOutcome is one service's distribution over the building.
type serviceOutcome struct {
	buildingCost decimal.Decimal
	allocations  []distribution.Allocation
	warnings     []measurement.Warning
}

// distributeService applies the pricing precedence: a fixed per-unit
// amount wins over a unit price, which wins over distributing the
// recorded cost total. A positive divisor replaces the building-wide
// quantity when pricing the total.
func distributeService(svc services.Service, in periodInputs) serviceOutcome {
	resolved, _, warnings := measurement.Resolve(svc, measurement.Inputs{
		Units:        in.units,
		PersonMonths: in.personMonths,
		Consumption:  in.consumption[svc.ID],
	})
	out := serviceOutcome{warnings: warnings}

	switch {
	case svc.UseDualCost:
		totalCost := in.costs[svc.ID]
		if !svc.SharesArePercent {
			totalCost = svc.CostWithMeter.Add(svc.CostWithoutMeter)
		}
		dual, err := distribution.DistributeDual(distribution.DualInput{
			TotalCost: totalCost,
			Config: distribution.DualConfig{
				BasicShare:       svc.CostWithoutMeter,
				ConsumptionShare: svc.CostWithMeter,
				SharesArePercent: svc.SharesArePercent,
				GuidanceNumber:   svc.GuidanceNumber,
			},
			BasicQuantities: resolved,
			Consumption:     in.consumption[svc.ID],
			HasMeter:        dualMeterFlags(in, svc.ID),
		})
		if err != nil {
			out.warnings = append(out.warnings, measurement.Warning{
				ServiceID: svc.ID,
				Code:      measurement.WarnFormulaError,
				Message:   err.Error(),
			})
			out.allocations = distribution.Distribute(decimal.Zero, resolved)
			return out
		}
		out.buildingCost = totalCost
		out.allocations = dual.Combined

	case svc.FixedAmount.IsPositive():
		out.allocations = priceAllocations(resolved, svc.FixedAmount)
		out.buildingCost = distribution.Sum(out.allocations)

	case svc.UnitPrice.IsPositive():
		out.allocations = priceAllocations(resolved, svc.UnitPrice)
		out.buildingCost = distribution.Sum(out.allocations)

	case svc.Divisor.IsPositive():
		totalCost := in.costs[svc.ID]
		price := totalCost.Div(svc.Divisor)
		out.allocations = priceAllocations(resolved, price)
		out.buildingCost = totalCost

	default:
		totalCost := in.costs[svc.ID]
		out.buildingCost = totalCost
		out.allocations = distribution.Distribute(totalCost, resolved)
	}

	applyOverrides(out.allocations, svc.ManualOverrides)
	return out
}

// priceAllocations multiplies each unit's quantity by a unit price.
// There is no exact-sum repair here: a priced service collects exactly
// price times quantity, not a pre-recorded total.
func priceAllocations(quantities map[int64]decimal.Decimal, price decimal.Decimal) []distribution.Allocation {
	zero := distribution.Distribute(decimal.Zero, quantities)
	for i := range zero {
		a := &zero[i]
		a.PricePerUnit = price
		a.Amount = price.Mul(a.Quantity).Round(2)
		a.Formula = a.Amount.StringFixed(2) + " = " + price.StringFixed(4) + "/unit × " + a.Quantity.String()
	}
	return zero
}

// applyOverrides substitutes hand-set amounts without rebalancing the
// remaining units.
func applyOverrides(allocations []distribution.Allocation, overrides map[int64]decimal.Decimal) {
	if len(overrides) == 0 {
		return
	}
	for i := range allocations {
		if amount, ok := overrides[allocations[i].UnitID]; ok {
			allocations[i].Amount = amount
			allocations[i].Formula = amount.StringFixed(2) + " (manual override)"
		}
	}
}

// dualMeterFlags merges the explicit per-unit settings with a fallback
// on reading presence for units never configured.
func dualMeterFlags(in periodInputs, serviceID int64) map[int64]bool {
	flags := make(map[int64]bool, len(in.units))
	explicit := in.meterFlags[serviceID]
	consumption := in.consumption[serviceID]
	for _, unit := range in.units {
		if hasMeter, ok := explicit[unit.ID]; ok {
			flags[unit.ID] = hasMeter
			continue
		}
		_, hasReading := consumption[unit.ID]
		flags[unit.ID] = hasReading
	}
	return flags
}

// RecalculatePeriod recomputes the whole settlement of one (building,
// year) and replaces its stored results in a single transaction. The
// period is created as DRAFT when absent and ends CALCULATED.
func (s *Service) RecalculatePeriod(ctx context.Context, buildingID int64, year int) (Report, error) {
	if s.locker != nil {
		unlock, err := s.locker.Acquire(ctx, buildingID, year)
		if err != nil {
			s.metrics.ObserveRecalculation("locked", 0, 0)
			return Report{}, err
		}
		defer func() {
			if err := unlock(); err != nil {
				s.logger.Warn("release period lock", slog.Any("error", err))
			}
		}()
	}

	start := s.now()
	report, err := s.recalculate(ctx, buildingID, year)
	if err != nil {
		s.metrics.ObserveRecalculation("failure", s.now().Sub(start), 0)
		return Report{}, err
	}
	s.metrics.ObserveRecalculation("success", s.now().Sub(start), len(report.Warnings))
	return report, nil
}

func (s *Service) recalculate(ctx context.Context, buildingID int64, year int) (Report, error) {
	period, err := s.CreatePeriod(ctx, buildingID, year)
	if err != nil {
		return Report{}, err
	}
	if !period.Status.Mutable() {
		return Report{}, shared.ErrPeriodImmutable
	}

	in, err := s.gatherInputs(ctx, buildingID, year)
	if err != nil {
		return Report{}, err
	}

	results, warnings := computeResults(period.ID, in)
	calculatedAt := s.now().UTC()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, period.ID)
		if err != nil {
			return err
		}
		if !current.Status.Mutable() {
			return shared.ErrPeriodImmutable
		}
		if err := tx.DeleteResults(ctx, period.ID); err != nil {
			return err
		}
		for _, result := range results {
			id, err := tx.InsertResult(ctx, result)
			if err != nil {
				return err
			}
			if err := tx.InsertServiceCosts(ctx, id, result.ServiceCosts); err != nil {
				return err
			}
		}
		return tx.SetPeriodCalculated(ctx, period.ID, calculatedAt, warnings)
	})
	if err != nil {
		return Report{}, err
	}

	report := Report{
		RunID:        uuid.NewString(),
		PeriodID:     period.ID,
		BuildingID:   buildingID,
		Year:         year,
		Units:        len(in.units),
		Services:     len(in.services),
		Warnings:     warnings,
		CalculatedAt: calculatedAt,
	}
	s.recordAudit(ctx, "billing.period.recalculate", period.ID, map[string]any{
		"runId":    report.RunID,
		"units":    report.Units,
		"services": report.Services,
		"warnings": len(report.Warnings),
	})
	s.logger.Info("period recalculated",
		slog.Int64("building_id", buildingID),
		slog.Int("year", year),
		slog.Int("units", report.Units),
		slog.Int("warnings", len(report.Warnings)),
	)
	return report, nil
}

// computeResults distributes every service and folds the allocations
// into one settlement row per unit. Payments are attributed to services
// pro rata to the prescribed advances; the passthrough share feeds the
// repair fund instead of the cost balance.
func computeResults(periodID int64, in periodInputs) ([]BillingResult, []measurement.Warning) {
	var warnings []measurement.Warning
	passthrough := make(map[int64]bool, len(in.services))

	type line struct {
		svc services.Service
		out serviceOutcome
	}
	lines := make([]line, 0, len(in.services))
	for _, svc := range in.services {
		// Unbilled services stay out of the settlement entirely; the
		// paid share their prescriptions attract is dropped with them.
		if svc.Methodology == methodology.NoBilling {
			continue
		}
		if svc.Passthrough {
			passthrough[svc.ID] = true
			continue
		}
		out := distributeService(svc, in)
		warnings = append(warnings, out.warnings...)
		lines = append(lines, line{svc: svc, out: out})
	}

	results := make([]BillingResult, 0, len(in.units))
	for _, unit := range in.units {
		totals := in.ledger[unit.ID]
		totalPrescribed := decimal.Zero
		for _, amount := range totals.Prescribed {
			totalPrescribed = totalPrescribed.Add(amount)
		}
		paidPerService := ledger.ProRatePayments(totals.Prescribed, totals.Paid)

		result := BillingResult{
			PeriodID:               periodID,
			UnitID:                 unit.ID,
			TotalCost:              decimal.Zero,
			TotalAdvancePrescribed: decimal.Zero,
			TotalAdvancePaid:       decimal.Zero,
			RepairFund:             decimal.Zero,
		}

		for _, l := range lines {
			var alloc distribution.Allocation
			for _, a := range l.out.allocations {
				if a.UnitID == unit.ID {
					alloc = a
					break
				}
			}
			advance := totals.Prescribed[l.svc.ID]
			result.TotalCost = result.TotalCost.Add(alloc.Amount)
			result.TotalAdvancePrescribed = result.TotalAdvancePrescribed.Add(advance)
			result.TotalAdvancePaid = result.TotalAdvancePaid.Add(paidPerService[l.svc.ID])
			result.ServiceCosts = append(result.ServiceCosts, BillingServiceCost{
				ServiceID:    l.svc.ID,
				ServiceName:  l.svc.Name,
				BuildingCost: l.out.buildingCost,
				Quantity:     alloc.Quantity,
				PricePerUnit: alloc.PricePerUnit,
				UnitCost:     alloc.Amount,
				Advance:      advance,
				Balance:      advance.Sub(alloc.Amount),
				Formula:      alloc.Formula,
			})
		}

		for serviceID, amount := range paidPerService {
			if passthrough[serviceID] {
				result.RepairFund = result.RepairFund.Add(amount)
			}
		}
		// A unit with no prescribed advances keeps its paid total as a
		// direct credit; there is nothing to attribute it against. The
		// share attributed to unbilled services stays outside the
		// settlement, like the services themselves.
		if !totalPrescribed.IsPositive() {
			result.TotalAdvancePaid = totals.Paid
		}
		result.Result = result.TotalAdvancePaid.Sub(result.TotalCost)
		results = append(results, result)
	}
	return results, warnings
}

// ServicePreview is a what-if distribution of one service, computed
// from current data without touching any period.
type ServicePreview struct {
	ServiceID   int64                 `json:"serviceId"`
	ServiceName string                `json:"serviceName"`
	Year        int                   `json:"year"`
	TotalCost   decimal.Decimal       `json:"totalCost"`
	Allocations []PreviewAllocation   `json:"allocations"`
	Warnings    []measurement.Warning `json:"warnings"`
}

// PreviewAllocation is one unit's line of a preview.
type PreviewAllocation struct {
	UnitID       int64           `json:"unitId"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	Amount       decimal.Decimal `json:"amount"`
	Formula      string          `json:"formula,omitempty"`
}

// ComputeServiceDistribution previews how one service's cost would fall
// on the units today.
func (s *Service) ComputeServiceDistribution(ctx context.Context, serviceID int64, year int) (ServicePreview, error) {
	svc, err := s.services.Get(ctx, serviceID)
	if err != nil {
		return ServicePreview{}, err
	}
	in, err := s.gatherInputs(ctx, svc.BuildingID, year)
	if err != nil {
		return ServicePreview{}, err
	}
	out := distributeService(svc, in)
	allocations := make([]PreviewAllocation, 0, len(out.allocations))
	for _, a := range out.allocations {
		allocations = append(allocations, PreviewAllocation{
			UnitID:       a.UnitID,
			Quantity:     a.Quantity,
			PricePerUnit: a.PricePerUnit,
			Amount:       a.Amount,
			Formula:      a.Formula,
		})
	}
	return ServicePreview{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Year:        year,
		TotalCost:   out.buildingCost,
		Allocations: allocations,
		Warnings:    out.warnings,
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, periodID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "billing_period",
		EntityID: strconv.FormatInt(periodID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
