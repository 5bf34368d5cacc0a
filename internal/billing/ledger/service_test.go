package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domus-erp/domus-erp/internal/shared"

	_ "github.com/domus-erp/domus-erp/testing"
)

type advanceKey struct {
	unit, service int64
	year, month   int
}

type mockRepository struct {
	advances     map[advanceKey]decimal.Decimal
	unitBuilding map[int64]int64
	prescribed   map[int64]map[int64]decimal.Decimal
	paid         map[int64]decimal.Decimal
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		advances:     make(map[advanceKey]decimal.Decimal),
		unitBuilding: map[int64]int64{1: 100, 2: 100},
	}
}

func (m *mockRepository) UpsertAdvance(ctx context.Context, in AdvanceMonthly) error {
	m.advances[advanceKey{in.UnitID, in.ServiceID, in.Year, in.Month}] = in.Amount
	return nil
}

func (m *mockRepository) PrescribedTotals(ctx context.Context, buildingID int64, year int) (map[int64]map[int64]decimal.Decimal, error) {
	return m.prescribed, nil
}

func (m *mockRepository) PaidTotals(ctx context.Context, buildingID int64, year int) (map[int64]decimal.Decimal, error) {
	return m.paid, nil
}

func (m *mockRepository) UnitBuilding(ctx context.Context, unitID int64) (int64, error) {
	buildingID, ok := m.unitBuilding[unitID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return buildingID, nil
}

type mockGuard struct {
	err error
}

func (g *mockGuard) EnsurePeriodMutable(ctx context.Context, buildingID int64, year int) error {
	return g.err
}

func TestUpsertAdvanceIdempotent(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockGuard{})

	in := UpsertAdvanceInput{UnitID: 1, ServiceID: 5, Year: 2024, Month: 3, Amount: decimal.NewFromInt(500)}
	require.NoError(t, svc.UpsertAdvance(context.Background(), in))

	in.Amount = decimal.NewFromInt(550)
	require.NoError(t, svc.UpsertAdvance(context.Background(), in))

	require.Len(t, repo.advances, 1)
	stored := repo.advances[advanceKey{1, 5, 2024, 3}]
	assert.True(t, stored.Equal(decimal.NewFromInt(550)), "got %s", stored)
}

func TestUpsertAdvanceValidation(t *testing.T) {
	svc := NewService(newMockRepository(), nil)

	err := svc.UpsertAdvance(context.Background(), UpsertAdvanceInput{UnitID: 1, ServiceID: 5, Year: 2024, Month: 13, Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)

	err = svc.UpsertAdvance(context.Background(), UpsertAdvanceInput{UnitID: 1, ServiceID: 5, Year: 2024, Month: 1, Amount: decimal.NewFromInt(-1)})
	assert.Error(t, err)
}

func TestUpsertAdvanceRejectedForImmutablePeriod(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockGuard{err: shared.ErrPeriodImmutable})

	err := svc.UpsertAdvance(context.Background(), UpsertAdvanceInput{UnitID: 1, ServiceID: 5, Year: 2024, Month: 1, Amount: decimal.NewFromInt(100)})
	require.ErrorIs(t, err, shared.ErrPeriodImmutable)
	assert.Empty(t, repo.advances)
}

func TestUpsertAdvanceUnknownUnit(t *testing.T) {
	svc := NewService(newMockRepository(), nil)
	err := svc.UpsertAdvance(context.Background(), UpsertAdvanceInput{UnitID: 99, ServiceID: 5, Year: 2024, Month: 1, Amount: decimal.NewFromInt(100)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUnitTotalsIncludesUnprescribedPayers(t *testing.T) {
	repo := newMockRepository()
	repo.prescribed = map[int64]map[int64]decimal.Decimal{
		1: {5: dec("1200.00"), 6: dec("600.00")},
	}
	repo.paid = map[int64]decimal.Decimal{1: dec("1500.00"), 2: dec("99.00")}
	svc := NewService(repo, nil)

	totals, err := svc.UnitTotals(context.Background(), 100, 2024)
	require.NoError(t, err)
	require.Len(t, totals, 2)

	assert.True(t, totals[1].TotalPrescribed().Equal(dec("1800.00")))
	assert.True(t, totals[1].Paid.Equal(dec("1500.00")))
	assert.True(t, totals[2].TotalPrescribed().IsZero())
	assert.True(t, totals[2].Paid.Equal(dec("99.00")))

	perService := svc.PaidPerService(totals[1])
	assert.True(t, perService[5].Equal(dec("1000.00")), "got %s", perService[5])
	assert.True(t, perService[6].Equal(dec("500.00")), "got %s", perService[6])
}
