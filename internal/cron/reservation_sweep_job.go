package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/velostore/storefront-backend/pkg/logger"
	"github.com/velostore/storefront-backend/pkg/metrics"
)

type expiredSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// ReservationSweepJobParams configure the reservation sweep.
type ReservationSweepJobParams struct {
	Logger  *logger.Logger
	Sweeper expiredSweeper
	Metrics *metrics.CronJobMetrics
	Now     func() time.Time
}

// NewReservationSweepJob builds the job that deletes expired inventory holds.
// Expired rows are already invisible to availability math; the sweep keeps
// the table from growing without bound.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &reservationSweepJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

type reservationSweepJob struct {
	logg    *logger.Logger
	sweeper expiredSweeper
	metrics *metrics.CronJobMetrics
	now     func() time.Time
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	swept, err := j.sweeper.SweepExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("reservation sweep: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddSwept(j.Name(), swept)
	}
	logCtx := j.logg.WithField(ctx, "rows_deleted", swept)
	j.logg.Info(logCtx, "expired reservations swept")
	return nil
}
