package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/citypark/citypark/internal/jobs"
	"github.com/citypark/citypark/internal/parking"
)

// OccupancySource reports the current slot occupancy.
type OccupancySource interface {
	SlotOccupancy(ctx context.Context) (parking.Occupancy, error)
}

// OccupancySnapshotJob publishes slot occupancy on a schedule.
type OccupancySnapshotJob struct {
	Source  OccupancySource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOccupancySnapshotJob initialises the snapshot handler.
func NewOccupancySnapshotJob(source OccupancySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *OccupancySnapshotJob {
	return &OccupancySnapshotJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes one snapshot.
func (j *OccupancySnapshotJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("occupancy snapshot: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracker := metrics.Track("occupancy_snapshot")
	occ, err := j.Source.SlotOccupancy(ctx)
	if err != nil {
		logger.Error("occupancy snapshot", slog.Any("error", err))
		return tracker.End(err)
	}
	metrics.ObserveOccupancy(occ.Free, occ.Occupied)
	logger.Info("occupancy snapshot",
		slog.Int("free", occ.Free),
		slog.Int("occupied", occ.Occupied),
		slog.Int("total", occ.Total()))
	return tracker.End(nil)
}
