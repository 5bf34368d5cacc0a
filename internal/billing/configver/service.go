package configver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/domus-erp/domus-erp/internal/masterdata/services"
	"github.com/domus-erp/domus-erp/internal/shared"
)

type Service struct {
	logger   *slog.Logger
	repo     Repository
	services services.Repository
	audit    *shared.AuditLogger
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewService(logger *slog.Logger, repo Repository, svcRepo services.Repository, audit *shared.AuditLogger) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		services: svcRepo,
		audit:    audit,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// SaveVersion snapshots the building's current service configuration
// under a name.
func (s *Service) SaveVersion(ctx context.Context, buildingID int64, name, note string, makeDefault bool) (ConfigVersion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ConfigVersion{}, fmt.Errorf("configver: version name required")
	}
	list, err := s.services.ListByBuilding(ctx, buildingID)
	if err != nil {
		return ConfigVersion{}, err
	}
	if len(list) == 0 {
		return ConfigVersion{}, fmt.Errorf("configver: building %d has no services to snapshot", buildingID)
	}

	version := ConfigVersion{
		ID:         s.newID(),
		BuildingID: buildingID,
		Name:       name,
		Note:       note,
		Snapshot:   make([]ServiceSnapshot, 0, len(list)),
		CreatedAt:  s.now().UTC(),
	}
	for _, svc := range list {
		version.Snapshot = append(version.Snapshot, SnapshotOf(svc))
	}

	if err := s.repo.Insert(ctx, version); err != nil {
		return ConfigVersion{}, err
	}
	if makeDefault {
		if err := s.setDefault(ctx, version); err != nil {
			return ConfigVersion{}, err
		}
		version.IsDefault = true
	}
	s.recordAudit(ctx, "configver.save", version.ID, map[string]any{
		"buildingId": buildingID,
		"name":       name,
		"services":   len(version.Snapshot),
	})
	return version, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (ConfigVersion, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, buildingID int64, page, perPage int) ([]ConfigVersion, shared.Pagination, error) {
	return s.repo.List(ctx, buildingID, page, perPage)
}

// Restore writes a version's snapshot back onto the live services, all
// or nothing. Snapshots of services deleted since fail the restore.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) (ConfigVersion, error) {
	version, err := s.repo.Get(ctx, id)
	if err != nil {
		return ConfigVersion{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, snap := range version.Snapshot {
			if err := tx.ApplySnapshot(ctx, snap); err != nil {
				return fmt.Errorf("configver: restore service %d: %w", snap.ServiceID, err)
			}
		}
		return nil
	})
	if err != nil {
		return ConfigVersion{}, err
	}
	s.recordAudit(ctx, "configver.restore", version.ID, map[string]any{
		"buildingId": version.BuildingID,
		"services":   len(version.Snapshot),
	})
	return version, nil
}

// SetDefaultVersion flips the building's default flag to this version.
func (s *Service) SetDefaultVersion(ctx context.Context, id uuid.UUID) (ConfigVersion, error) {
	version, err := s.repo.Get(ctx, id)
	if err != nil {
		return ConfigVersion{}, err
	}
	if err := s.setDefault(ctx, version); err != nil {
		return ConfigVersion{}, err
	}
	version.IsDefault = true
	s.recordAudit(ctx, "configver.set_default", version.ID, map[string]any{
		"buildingId": version.BuildingID,
	})
	return version, nil
}

func (s *Service) setDefault(ctx context.Context, version ConfigVersion) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ClearDefault(ctx, version.BuildingID); err != nil {
			return err
		}
		return tx.SetDefault(ctx, version.ID)
	})
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	version, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "configver.delete", version.ID, map[string]any{
		"buildingId": version.BuildingID,
		"name":       version.Name,
	})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "config_version",
		EntityID: id.String(),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
