package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/domus-erp/domus-erp/internal/billing/settlement"
	jobmetrics "github.com/domus-erp/domus-erp/internal/jobs"
	"github.com/domus-erp/domus-erp/internal/masterdata/buildings"
	"github.com/domus-erp/domus-erp/internal/shared"
)

// RecalculateJob runs one period settlement from the queue.
type RecalculateJob struct {
	Settlement *settlement.Service
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewRecalculateJob initialises the recalculation handler.
func NewRecalculateJob(svc *settlement.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecalculateJob {
	return &RecalculateJob{Settlement: svc, Logger: logger, Metrics: metrics}
}

// Handle executes the recalculation. A period locked by a concurrent
// run is left for the retry; an immutable period skips retrying.
func (j *RecalculateJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Settlement == nil {
		return errors.New("recalculate: handler not configured")
	}
	tracker := j.Metrics.Track(TaskBillingRecalculate)
	defer func() {
		err = tracker.End(err)
	}()

	var payload RecalculatePayload
	if uerr := json.Unmarshal(t.Payload(), &payload); uerr != nil {
		return asynq.SkipRetry
	}

	logger := j.Logger.With(
		slog.Int64("building_id", payload.BuildingID),
		slog.Int("year", payload.Year),
	)

	report, rerr := j.Settlement.RecalculatePeriod(ctx, payload.BuildingID, payload.Year)
	switch {
	case errors.Is(rerr, shared.ErrPeriodImmutable):
		logger.Warn("period immutable, skipping recalculation")
		return asynq.SkipRetry
	case rerr != nil:
		logger.Error("recalculation failed", slog.Any("error", rerr))
		return rerr
	}

	logger.Info("recalculation finished",
		slog.String("run_id", report.RunID),
		slog.Int("units", report.Units),
		slog.Int("warnings", len(report.Warnings)),
	)
	return nil
}

// BulkRecalculateJob enqueues one recalculation task per building.
type BulkRecalculateJob struct {
	Buildings buildings.Repository
	Client    *Client
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewBulkRecalculateJob initialises the fan-out handler.
func NewBulkRecalculateJob(repo buildings.Repository, client *Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *BulkRecalculateJob {
	return &BulkRecalculateJob{Buildings: repo, Client: client, Logger: logger, Metrics: metrics}
}

// Handle fans the yearly run out to individual building tasks.
func (j *BulkRecalculateJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Buildings == nil || j.Client == nil {
		return errors.New("bulk recalculate: handler not configured")
	}
	tracker := j.Metrics.Track(TaskBillingRecalculateAll)
	defer func() {
		err = tracker.End(err)
	}()

	var payload RecalculateAllPayload
	if uerr := json.Unmarshal(t.Payload(), &payload); uerr != nil {
		return asynq.SkipRetry
	}

	list, lerr := j.Buildings.List(ctx)
	if lerr != nil {
		return lerr
	}

	enqueued := 0
	for _, building := range list {
		if _, eerr := j.Client.EnqueueRecalculate(ctx, building.ID, payload.Year); eerr != nil {
			j.Logger.Error("enqueue recalculation",
				slog.Int64("building_id", building.ID),
				slog.Any("error", eerr),
			)
			err = eerr
			continue
		}
		enqueued++
	}
	j.Logger.Info("bulk recalculation fanned out",
		slog.Int("year", payload.Year),
		slog.Int("buildings", enqueued),
	)
	return err
}
