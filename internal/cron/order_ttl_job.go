package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/logger"
)

const defaultOrderTTL = 24 * time.Hour

type pendingOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type orderCanceller interface {
	Cancel(ctx context.Context, input orders.CancelInput) error
}

// OrderTTLJobParams configure the stale order expiry job.
type OrderTTLJobParams struct {
	Logger *logger.Logger
	Reader pendingOrderReader
	Orders orderCanceller
	TTL    time.Duration
	Now    func() time.Time
}

// NewOrderTTLJob builds the job that cancels orders whose payment never
// arrived. The reservation sweep already freed their holds; this closes the
// order itself so it stops showing up as awaiting payment.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending order reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order canceller required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultOrderTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &orderTTLJob{
		logg:   params.Logger,
		reader: params.Reader,
		orders: params.Orders,
		ttl:    ttl,
		now:    now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	reader pendingOrderReader
	orders orderCanceller
	ttl    time.Duration
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.reader.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find stale pending orders: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	reason := "payment window expired"
	var errs []error
	expired := 0
	for _, order := range stale {
		err := j.orders.Cancel(ctx, orders.CancelInput{
			OrderID: order.ID,
			UserID:  order.UserID,
			Reason:  &reason,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
		"failed":  len(errs),
	})
	j.logg.Info(logCtx, "stale pending orders expired")
	return multierr.Combine(errs...)
}
