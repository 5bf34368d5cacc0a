package settlement

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domus-erp/domus-erp/internal/billing/ledger"
	"github.com/domus-erp/domus-erp/internal/billing/measurement"
	"github.com/domus-erp/domus-erp/internal/billing/methodology"
	"github.com/domus-erp/domus-erp/internal/masterdata/meters"
	"github.com/domus-erp/domus-erp/internal/masterdata/services"
	"github.com/domus-erp/domus-erp/internal/masterdata/units"
	"github.com/domus-erp/domus-erp/internal/observability"
	"github.com/domus-erp/domus-erp/internal/shared"

	_ "github.com/domus-erp/domus-erp/testing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type periodKey struct {
	building int64
	year     int
}

type mockRepo struct {
	periods map[int64]BillingPeriod
	byKey   map[periodKey]int64
	results map[int64][]BillingResult
	nextID  int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		periods: make(map[int64]BillingPeriod),
		byKey:   make(map[periodKey]int64),
		results: make(map[int64][]BillingResult),
	}
}

func (m *mockRepo) GetPeriod(ctx context.Context, id int64) (BillingPeriod, error) {
	p, ok := m.periods[id]
	if !ok {
		return BillingPeriod{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) GetPeriodByKey(ctx context.Context, buildingID int64, year int) (BillingPeriod, error) {
	id, ok := m.byKey[periodKey{buildingID, year}]
	if !ok {
		return BillingPeriod{}, shared.ErrNotFound
	}
	return m.periods[id], nil
}

func (m *mockRepo) CreatePeriod(ctx context.Context, buildingID int64, year int) (BillingPeriod, error) {
	m.nextID++
	p := BillingPeriod{ID: m.nextID, BuildingID: buildingID, Year: year, Status: PeriodStatusDraft}
	m.periods[p.ID] = p
	m.byKey[periodKey{buildingID, year}] = p.ID
	return p, nil
}

func (m *mockRepo) DeletePeriod(ctx context.Context, id int64) error {
	p, ok := m.periods[id]
	if !ok {
		return shared.ErrNotFound
	}
	delete(m.periods, id)
	delete(m.byKey, periodKey{p.BuildingID, p.Year})
	delete(m.results, id)
	return nil
}

func (m *mockRepo) UpdatePeriodStatus(ctx context.Context, id int64, status PeriodStatus) error {
	p, ok := m.periods[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = status
	m.periods[id] = p
	return nil
}

func (m *mockRepo) ListResults(ctx context.Context, periodID int64) ([]BillingResult, error) {
	return m.results[periodID], nil
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTx{repo: m})
}

type mockTx struct {
	repo *mockRepo
}

func (t *mockTx) GetPeriodForUpdate(ctx context.Context, id int64) (BillingPeriod, error) {
	return t.repo.GetPeriod(ctx, id)
}

func (t *mockTx) DeleteResults(ctx context.Context, periodID int64) error {
	delete(t.repo.results, periodID)
	return nil
}

func (t *mockTx) InsertResult(ctx context.Context, result BillingResult) (int64, error) {
	t.repo.nextID++
	result.ID = t.repo.nextID
	t.repo.results[result.PeriodID] = append(t.repo.results[result.PeriodID], result)
	return result.ID, nil
}

func (t *mockTx) InsertServiceCosts(ctx context.Context, resultID int64, lines []BillingServiceCost) error {
	return nil
}

func (t *mockTx) SetPeriodCalculated(ctx context.Context, periodID int64, at time.Time, warnings []measurement.Warning) error {
	p, ok := t.repo.periods[periodID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = PeriodStatusCalculated
	p.CalculatedAt = &at
	p.Warnings = warnings
	t.repo.periods[periodID] = p
	return nil
}

type mockUnits struct {
	list         []units.Unit
	personMonths map[int64]int
}

func (m *mockUnits) Get(ctx context.Context, id int64) (units.Unit, error) {
	for _, u := range m.list {
		if u.ID == id {
			return u, nil
		}
	}
	return units.Unit{}, shared.ErrNotFound
}

func (m *mockUnits) ListByBuilding(ctx context.Context, buildingID int64) ([]units.Unit, error) {
	return m.list, nil
}

func (m *mockUnits) PersonMonthTotals(ctx context.Context, buildingID int64, year int) (map[int64]int, error) {
	return m.personMonths, nil
}

type mockServices struct {
	list  []services.Service
	costs map[int64]decimal.Decimal
}

func (m *mockServices) Get(ctx context.Context, id int64) (services.Service, error) {
	for _, s := range m.list {
		if s.ID == id {
			return s, nil
		}
	}
	return services.Service{}, shared.ErrNotFound
}

func (m *mockServices) ListByBuilding(ctx context.Context, buildingID int64) ([]services.Service, error) {
	return m.list, nil
}

func (m *mockServices) CostTotals(ctx context.Context, buildingID int64, year int) (map[int64]decimal.Decimal, error) {
	return m.costs, nil
}

type mockMeters struct {
	consumption map[int64]decimal.Decimal
	settings    map[int64]bool
}

func (m *mockMeters) LatestConsumption(ctx context.Context, buildingID int64, meterType meters.Type, year int) (map[int64]decimal.Decimal, error) {
	return m.consumption, nil
}

func (m *mockMeters) MeterSettings(ctx context.Context, serviceID int64) (map[int64]bool, error) {
	return m.settings, nil
}

type mockLedger struct {
	totals map[int64]ledger.UnitTotals
}

func (m *mockLedger) UnitTotals(ctx context.Context, buildingID int64, year int) (map[int64]ledger.UnitTotals, error) {
	return m.totals, nil
}

type mockLocker struct {
	err      error
	acquired int
	released int
}

func (m *mockLocker) Acquire(ctx context.Context, buildingID int64, year int) (func() error, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.acquired++
	return func() error {
		m.released++
		return nil
	}, nil
}

func thirdShareUnits() []units.Unit {
	return []units.Unit{
		{ID: 1, BuildingID: 100, Name: "1", ShareNumerator: 1, ShareDenominator: 3},
		{ID: 2, BuildingID: 100, Name: "2", ShareNumerator: 1, ShareDenominator: 3},
		{ID: 3, BuildingID: 100, Name: "3", ShareNumerator: 1, ShareDenominator: 3},
	}
}

func newTestService(repo *mockRepo, mu *mockUnits, ms *mockServices, ml *mockLedger, locker Locker) *Service {
	return NewService(ServiceParams{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Repo:     repo,
		Units:    mu,
		Services: ms,
		Meters:   &mockMeters{},
		Ledger:   ml,
		Locker:   locker,
		Metrics:  observability.NewMetrics(),
	})
}

func TestRecalculatePeriod(t *testing.T) {
	repo := newMockRepo()
	mu := &mockUnits{list: thirdShareUnits()}
	ms := &mockServices{
		list: []services.Service{
			{ID: 5, BuildingID: 100, Name: "Úklid", Methodology: methodology.OwnershipShare},
			{ID: 9, BuildingID: 100, Name: "Fond oprav", Passthrough: true},
		},
		costs: map[int64]decimal.Decimal{5: dec("10000.00")},
	}
	ml := &mockLedger{totals: map[int64]ledger.UnitTotals{
		1: {Prescribed: map[int64]decimal.Decimal{5: dec("3600.00"), 9: dec("1200.00")}, Paid: dec("4800.00")},
	}}
	locker := &mockLocker{}
	svc := newTestService(repo, mu, ms, ml, locker)

	report, err := svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Units)
	assert.Equal(t, 2, report.Services)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)

	stored := repo.periods[report.PeriodID]
	assert.Equal(t, PeriodStatusCalculated, stored.Status)
	require.NotNil(t, stored.CalculatedAt)

	results := repo.results[report.PeriodID]
	require.Len(t, results, 3)

	sum := decimal.Zero
	for _, r := range results {
		sum = sum.Add(r.TotalCost)
	}
	assert.True(t, sum.Equal(dec("10000.00")), "unit costs sum to %s", sum)

	first := results[0]
	assert.Equal(t, int64(1), first.UnitID)
	assert.True(t, first.TotalCost.Equal(dec("3333.34")), "got %s", first.TotalCost)
	assert.True(t, first.TotalAdvancePrescribed.Equal(dec("3600.00")))
	assert.True(t, first.TotalAdvancePaid.Equal(dec("3600.00")))
	assert.True(t, first.RepairFund.Equal(dec("1200.00")), "got %s", first.RepairFund)
	assert.True(t, first.Result.Equal(dec("266.66")), "got %s", first.Result)

	require.Len(t, first.ServiceCosts, 1)
	line := first.ServiceCosts[0]
	assert.Equal(t, int64(5), line.ServiceID)
	assert.True(t, line.Balance.Equal(dec("266.66")))
}

func TestRecalculateRejectsLockedPeriod(t *testing.T) {
	repo := newMockRepo()
	locker := &mockLocker{err: shared.ErrRecalculationRunning}
	svc := newTestService(repo, &mockUnits{}, &mockServices{}, &mockLedger{}, locker)

	_, err := svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.ErrorIs(t, err, shared.ErrRecalculationRunning)
}

func TestRecalculateRejectsImmutablePeriod(t *testing.T) {
	repo := newMockRepo()
	period, err := repo.CreatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePeriodStatus(context.Background(), period.ID, PeriodStatusApproved))

	svc := newTestService(repo, &mockUnits{}, &mockServices{}, &mockLedger{}, nil)
	_, err = svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.ErrorIs(t, err, shared.ErrPeriodImmutable)
}

func TestRecalculateAppliesManualOverride(t *testing.T) {
	repo := newMockRepo()
	mu := &mockUnits{list: thirdShareUnits()}
	ms := &mockServices{
		list: []services.Service{{
			ID: 5, BuildingID: 100, Name: "Výtah",
			Methodology:     methodology.OwnershipShare,
			ManualOverrides: map[int64]decimal.Decimal{2: dec("100.00")},
		}},
		costs: map[int64]decimal.Decimal{5: dec("9000.00")},
	}
	svc := newTestService(repo, mu, ms, &mockLedger{}, nil)

	report, err := svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)

	results := repo.results[report.PeriodID]
	require.Len(t, results, 3)
	assert.True(t, results[0].TotalCost.Equal(dec("3000.00")))
	assert.True(t, results[1].TotalCost.Equal(dec("100.00")), "override wins: got %s", results[1].TotalCost)
	assert.True(t, results[2].TotalCost.Equal(dec("3000.00")))
}

func TestRecalculateExcludesUnbilledServices(t *testing.T) {
	repo := newMockRepo()
	mu := &mockUnits{list: thirdShareUnits()}
	ms := &mockServices{
		list: []services.Service{
			{ID: 5, BuildingID: 100, Name: "Úklid", Methodology: methodology.OwnershipShare},
			{ID: 7, BuildingID: 100, Name: "Komíny", Methodology: methodology.NoBilling},
		},
		costs: map[int64]decimal.Decimal{5: dec("9000.00"), 7: dec("500.00")},
	}
	ml := &mockLedger{totals: map[int64]ledger.UnitTotals{
		1: {Prescribed: map[int64]decimal.Decimal{5: dec("3000.00"), 7: dec("1200.00")}, Paid: dec("4200.00")},
	}}
	svc := newTestService(repo, mu, ms, ml, nil)

	report, err := svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)

	results := repo.results[report.PeriodID]
	require.Len(t, results, 3)
	first := results[0]
	require.Equal(t, int64(1), first.UnitID)

	require.Len(t, first.ServiceCosts, 1, "unbilled service must not produce a cost line")
	assert.Equal(t, int64(5), first.ServiceCosts[0].ServiceID)
	assert.True(t, first.TotalCost.Equal(dec("3000.00")), "got %s", first.TotalCost)
	assert.True(t, first.TotalAdvancePrescribed.Equal(dec("3000.00")), "got %s", first.TotalAdvancePrescribed)
	assert.True(t, first.TotalAdvancePaid.Equal(dec("3000.00")), "paid share of the unbilled prescription stays out: got %s", first.TotalAdvancePaid)
	assert.True(t, first.Result.Equal(dec("0.00")), "got %s", first.Result)
}

func TestRecalculateUnbilledOnlyUnitSettlesAtZero(t *testing.T) {
	repo := newMockRepo()
	mu := &mockUnits{list: thirdShareUnits()}
	ms := &mockServices{
		list:  []services.Service{{ID: 7, BuildingID: 100, Name: "Komíny", Methodology: methodology.NoBilling}},
		costs: map[int64]decimal.Decimal{7: dec("500.00")},
	}
	ml := &mockLedger{totals: map[int64]ledger.UnitTotals{
		1: {Prescribed: map[int64]decimal.Decimal{7: dec("1200.00")}, Paid: dec("1200.00")},
	}}
	svc := newTestService(repo, mu, ms, ml, nil)

	report, err := svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)

	first := repo.results[report.PeriodID][0]
	assert.Empty(t, first.ServiceCosts)
	assert.True(t, first.TotalCost.IsZero())
	assert.True(t, first.TotalAdvancePrescribed.IsZero())
	assert.True(t, first.TotalAdvancePaid.IsZero())
	assert.True(t, first.Result.IsZero(), "got %s", first.Result)
}

func TestRecalculateCreditsPaymentsWithoutPrescriptions(t *testing.T) {
	repo := newMockRepo()
	mu := &mockUnits{list: thirdShareUnits()}
	ms := &mockServices{
		list:  []services.Service{{ID: 5, BuildingID: 100, Name: "Úklid", Methodology: methodology.OwnershipShare}},
		costs: map[int64]decimal.Decimal{5: dec("3000.00")},
	}
	ml := &mockLedger{totals: map[int64]ledger.UnitTotals{
		1: {Paid: dec("1000.00")},
	}}
	svc := newTestService(repo, mu, ms, ml, nil)

	report, err := svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)

	first := repo.results[report.PeriodID][0]
	require.Equal(t, int64(1), first.UnitID)
	assert.True(t, first.TotalAdvancePaid.Equal(dec("1000.00")), "got %s", first.TotalAdvancePaid)
	assert.True(t, first.TotalCost.Equal(dec("1000.00")))
	assert.True(t, first.Result.IsZero(), "got %s", first.Result)
}

func TestRecalculatePeriodIsIdempotent(t *testing.T) {
	repo := newMockRepo()
	mu := &mockUnits{list: thirdShareUnits()}
	ms := &mockServices{
		list:  []services.Service{{ID: 5, BuildingID: 100, Name: "Úklid", Methodology: methodology.OwnershipShare}},
		costs: map[int64]decimal.Decimal{5: dec("10000.00")},
	}
	ml := &mockLedger{totals: map[int64]ledger.UnitTotals{
		1: {Prescribed: map[int64]decimal.Decimal{5: dec("3600.00")}, Paid: dec("3600.00")},
	}}
	svc := newTestService(repo, mu, ms, ml, nil)

	first, err := svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)
	firstResults := append([]BillingResult(nil), repo.results[first.PeriodID]...)

	second, err := svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)
	assert.Equal(t, first.PeriodID, second.PeriodID)

	secondResults := repo.results[second.PeriodID]
	require.Len(t, secondResults, len(firstResults))
	for i := range firstResults {
		a, b := firstResults[i], secondResults[i]
		a.ID, b.ID = 0, 0
		assert.Equal(t, a, b, "unit %d settles identically on recompute", a.UnitID)
	}
}

func TestRecalculateSurfacesWarnings(t *testing.T) {
	repo := newMockRepo()
	mu := &mockUnits{list: []units.Unit{
		{ID: 1, BuildingID: 100, Name: "1", ShareNumerator: 1, ShareDenominator: 2},
		{ID: 2, BuildingID: 100, Name: "2"},
	}}
	ms := &mockServices{
		list:  []services.Service{{ID: 5, BuildingID: 100, Name: "Správa", Methodology: methodology.OwnershipShare}},
		costs: map[int64]decimal.Decimal{5: dec("1000.00")},
	}
	svc := newTestService(repo, mu, ms, &mockLedger{}, nil)

	report, err := svc.RecalculatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "zero_share", report.Warnings[0].Code)
	assert.Equal(t, int64(2), report.Warnings[0].UnitID)
}

func TestEnsurePeriodMutable(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockUnits{}, &mockServices{}, &mockLedger{}, nil)

	require.NoError(t, svc.EnsurePeriodMutable(context.Background(), 100, 2024))

	period, err := repo.CreatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)
	require.NoError(t, svc.EnsurePeriodMutable(context.Background(), 100, 2024))

	require.NoError(t, repo.UpdatePeriodStatus(context.Background(), period.ID, PeriodStatusApproved))
	require.ErrorIs(t, svc.EnsurePeriodMutable(context.Background(), 100, 2024), shared.ErrPeriodImmutable)
}

func TestTransitionLifecycle(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockUnits{}, &mockServices{}, &mockLedger{}, nil)

	period, err := repo.CreatePeriod(context.Background(), 100, 2024)
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), period.ID, PeriodStatusApproved)
	require.ErrorIs(t, err, shared.ErrInvalidPeriodTransition)

	require.NoError(t, repo.UpdatePeriodStatus(context.Background(), period.ID, PeriodStatusCalculated))
	updated, err := svc.Transition(context.Background(), period.ID, PeriodStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, PeriodStatusApproved, updated.Status)

	err = svc.DeletePeriod(context.Background(), period.ID)
	require.ErrorIs(t, err, shared.ErrPeriodImmutable)
}

func TestComputeServiceDistributionPreview(t *testing.T) {
	repo := newMockRepo()
	mu := &mockUnits{list: thirdShareUnits()}
	ms := &mockServices{
		list:  []services.Service{{ID: 5, BuildingID: 100, Name: "Úklid", Methodology: methodology.OwnershipShare}},
		costs: map[int64]decimal.Decimal{5: dec("10000.00")},
	}
	svc := newTestService(repo, mu, ms, &mockLedger{}, nil)

	preview, err := svc.ComputeServiceDistribution(context.Background(), 5, 2024)
	require.NoError(t, err)
	assert.True(t, preview.TotalCost.Equal(dec("10000.00")))
	require.Len(t, preview.Allocations, 3)
	assert.True(t, preview.Allocations[0].Amount.Equal(dec("3333.34")))
	assert.Empty(t, repo.results, "preview must not persist anything")
}
