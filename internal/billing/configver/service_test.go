package configver

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domus-erp/domus-erp/internal/billing/methodology"
	"github.com/domus-erp/domus-erp/internal/masterdata/services"
	"github.com/domus-erp/domus-erp/internal/shared"

	_ "github.com/domus-erp/domus-erp/testing"
)

type mockRepo struct {
	versions map[uuid.UUID]ConfigVersion
	applied  []ServiceSnapshot
}

func newMockRepo() *mockRepo {
	return &mockRepo{versions: make(map[uuid.UUID]ConfigVersion)}
}

func (m *mockRepo) Get(ctx context.Context, id uuid.UUID) (ConfigVersion, error) {
	v, ok := m.versions[id]
	if !ok {
		return ConfigVersion{}, shared.ErrNotFound
	}
	return v, nil
}

func (m *mockRepo) List(ctx context.Context, buildingID int64, page, perPage int) ([]ConfigVersion, shared.Pagination, error) {
	var out []ConfigVersion
	for _, v := range m.versions {
		if v.BuildingID == buildingID {
			out = append(out, v)
		}
	}
	return out, shared.NewPagination(page, perPage, len(out)), nil
}

func (m *mockRepo) Insert(ctx context.Context, v ConfigVersion) error {
	for _, existing := range m.versions {
		if existing.BuildingID == v.BuildingID && existing.Name == v.Name {
			return shared.ErrAlreadyExists
		}
	}
	m.versions[v.ID] = v
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.versions[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.versions, id)
	return nil
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTx{repo: m})
}

type mockTx struct {
	repo *mockRepo
}

func (t *mockTx) ClearDefault(ctx context.Context, buildingID int64) error {
	for id, v := range t.repo.versions {
		if v.BuildingID == buildingID && v.IsDefault {
			v.IsDefault = false
			t.repo.versions[id] = v
		}
	}
	return nil
}

func (t *mockTx) SetDefault(ctx context.Context, id uuid.UUID) error {
	v, ok := t.repo.versions[id]
	if !ok {
		return shared.ErrNotFound
	}
	v.IsDefault = true
	t.repo.versions[id] = v
	return nil
}

func (t *mockTx) ApplySnapshot(ctx context.Context, snap ServiceSnapshot) error {
	t.repo.applied = append(t.repo.applied, snap)
	return nil
}

type mockServices struct {
	list []services.Service
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
	return nil, nil
}

func newTestService(repo *mockRepo, svcRepo *mockServices) *Service {
	s := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, svcRepo, nil)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func buildingServices() []services.Service {
	return []services.Service{
		{ID: 5, BuildingID: 100, Name: "Úklid", Methodology: methodology.OwnershipShare, Visible: true},
		{ID: 6, BuildingID: 100, Name: "Teplo", Methodology: methodology.Area, DataSource: methodology.SourceFloorArea,
			UseDualCost: true, CostWithMeter: decimal.NewFromInt(70), CostWithoutMeter: decimal.NewFromInt(30),
			SharesArePercent: true, GuidanceNumber: decimal.RequireFromString("2.5"), Visible: true},
	}
}

func TestSaveVersionSnapshotsAllServices(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockServices{list: buildingServices()})

	version, err := svc.SaveVersion(context.Background(), 100, "před změnou 2024", "", false)
	require.NoError(t, err)
	require.Len(t, version.Snapshot, 2)

	heating := version.Snapshot[1]
	assert.Equal(t, int64(6), heating.ServiceID)
	assert.True(t, heating.UseDualCost)
	assert.True(t, heating.CostWithMeter.Equal(decimal.NewFromInt(70)))
	assert.True(t, heating.GuidanceNumber.Equal(decimal.RequireFromString("2.5")))
}

func TestSaveVersionRejectsDuplicateName(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockServices{list: buildingServices()})

	_, err := svc.SaveVersion(context.Background(), 100, "v1", "", false)
	require.NoError(t, err)
	_, err = svc.SaveVersion(context.Background(), 100, "v1", "", false)
	require.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestSaveVersionRequiresServices(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockServices{})
	_, err := svc.SaveVersion(context.Background(), 100, "v1", "", false)
	require.Error(t, err)
}

func TestRestoreAppliesWholeSnapshot(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockServices{list: buildingServices()})

	version, err := svc.SaveVersion(context.Background(), 100, "v1", "", false)
	require.NoError(t, err)

	_, err = svc.Restore(context.Background(), version.ID)
	require.NoError(t, err)
	require.Len(t, repo.applied, 2)
	assert.Equal(t, int64(5), repo.applied[0].ServiceID)
	assert.Equal(t, int64(6), repo.applied[1].ServiceID)
}

func TestSetDefaultIsExclusive(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockServices{list: buildingServices()})

	v1, err := svc.SaveVersion(context.Background(), 100, "v1", "", true)
	require.NoError(t, err)
	assert.True(t, v1.IsDefault)

	v2, err := svc.SaveVersion(context.Background(), 100, "v2", "", true)
	require.NoError(t, err)
	assert.True(t, v2.IsDefault)

	stored1, err := svc.Get(context.Background(), v1.ID)
	require.NoError(t, err)
	assert.False(t, stored1.IsDefault, "first default must be cleared")
}

func TestDeleteVersion(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockServices{list: buildingServices()})

	version, err := svc.SaveVersion(context.Background(), 100, "v1", "", false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), version.ID))
	_, err = svc.Get(context.Background(), version.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.ErrorIs(t, svc.Delete(context.Background(), uuid.New()), shared.ErrNotFound)
}
