package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/velostore/storefront-backend/pkg/logger"
)

const notificationRetentionDays = 90

type notificationCleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleanupJobParams configure the notification retention job.
type NotificationCleanupJobParams struct {
	Logger    *logger.Logger
	Cleaner   notificationCleaner
	Retention int
	Now       func() time.Time
}

// NewNotificationCleanupJob builds the job that drops read notifications past
// the retention window.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cleaner == nil {
		return nil, fmt.Errorf("notification cleaner required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = notificationRetentionDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		cleaner:   params.Cleaner,
		retention: retention,
		now:       now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	cleaner   notificationCleaner
	retention int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.cleaner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
