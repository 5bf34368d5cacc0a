package meters

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// LatestConsumption returns, per unit, the latest reading of the
	// unit's active meter of the given type for the year. Units without
	// an active meter are simply absent from the map.
	LatestConsumption(ctx context.Context, buildingID int64, meterType Type, year int) (map[int64]decimal.Decimal, error)
	// MeterSettings returns the has-meter flag per unit for a service.
	MeterSettings(ctx context.Context, serviceID int64) (map[int64]bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) LatestConsumption(ctx context.Context, buildingID int64, meterType Type, year int) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ON (m.unit_id) m.unit_id, mr.consumption
FROM meters m
JOIN meter_readings mr ON mr.meter_id = m.id
JOIN units u ON u.id = m.unit_id
WHERE u.building_id = $1 AND m.type = $2 AND m.active AND mr.year = $3
ORDER BY m.unit_id, mr.read_at DESC`, buildingID, meterType, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	consumption := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var unitID int64
		var value decimal.Decimal
		if err := rows.Scan(&unitID, &value); err != nil {
			return nil, err
		}
		consumption[unitID] = value
	}
	return consumption, rows.Err()
}

func (r *repository) MeterSettings(ctx context.Context, serviceID int64) (map[int64]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT unit_id, has_meter FROM unit_service_meter_settings WHERE service_id = $1`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	settings := make(map[int64]bool)
	for rows.Next() {
		var unitID int64
		var hasMeter bool
		if err := rows.Scan(&unitID, &hasMeter); err != nil {
			return nil, err
		}
		settings[unitID] = hasMeter
	}
	return settings, rows.Err()
}
