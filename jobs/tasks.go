// Package jobs contains the Asynq background tasks: single-period
// recalculations queued from the API and the yearly bulk run across
// all buildings.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// ErrInvalidTask marks task parameters rejected before enqueueing.
var ErrInvalidTask = errors.New("jobs: invalid task parameters")

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBillingRecalculate recalculates one (building, year) period.
	TaskBillingRecalculate = "billing:recalculate"
	// TaskBillingRecalculateAll fans out a recalculation per building.
	TaskBillingRecalculateAll = "billing:recalculate_all"
)

// RecalculatePayload identifies the period to recalculate.
type RecalculatePayload struct {
	BuildingID int64 `json:"building_id"`
	Year       int   `json:"year"`
}

// NewRecalculateTask constructs an Asynq task for one period.
func NewRecalculateTask(buildingID int64, year int) (*asynq.Task, error) {
	if buildingID <= 0 {
		return nil, fmt.Errorf("%w: building id required", ErrInvalidTask)
	}
	if year < 1990 || year > 2100 {
		return nil, fmt.Errorf("%w: year %d out of range", ErrInvalidTask, year)
	}
	data, err := json.Marshal(RecalculatePayload{BuildingID: buildingID, Year: year})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingRecalculate, data), nil
}

// RecalculateAllPayload scopes the bulk run to one settlement year.
type RecalculateAllPayload struct {
	Year int `json:"year"`
}

// NewRecalculateAllTask constructs the bulk fan-out task.
func NewRecalculateAllTask(year int) (*asynq.Task, error) {
	if year < 1990 || year > 2100 {
		return nil, fmt.Errorf("%w: year %d out of range", ErrInvalidTask, year)
	}
	data, err := json.Marshal(RecalculateAllPayload{Year: year})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingRecalculateAll, data), nil
}
