package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/velostore/storefront-backend/internal/orders"
	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/logger"
)

type stubPendingReader struct {
	rows   []models.Order
	cutoff time.Time
}

func (s *stubPendingReader) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	s.cutoff = cutoff
	return s.rows, nil
}

type stubCanceller struct {
	cancelled []uuid.UUID
	failFor   uuid.UUID
}

func (s *stubCanceller) Cancel(ctx context.Context, input orders.CancelInput) error {
	if input.OrderID == s.failFor {
		return errors.New("cancel rejected")
	}
	s.cancelled = append(s.cancelled, input.OrderID)
	return nil
}

func TestOrderTTLJobCancelsStaleOrders(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	now := time.Now().UTC()
	stale := []models.Order{
		{ID: uuid.New(), UserID: uuid.New()},
		{ID: uuid.New(), UserID: uuid.New()},
	}
	reader := &stubPendingReader{rows: stale}
	canceller := &stubCanceller{}

	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger: logg,
		Reader: reader,
		Orders: canceller,
		TTL:    24 * time.Hour,
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}

	if got := now.Add(-24 * time.Hour); !reader.cutoff.Equal(got) {
		t.Fatalf("expected cutoff %v, got %v", got, reader.cutoff)
	}
	if len(canceller.cancelled) != 2 {
		t.Fatalf("expected 2 cancellations, got %d", len(canceller.cancelled))
	}
}

func TestOrderTTLJobContinuesPastCancelFailures(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	bad := models.Order{ID: uuid.New(), UserID: uuid.New()}
	good := models.Order{ID: uuid.New(), UserID: uuid.New()}
	canceller := &stubCanceller{failFor: bad.ID}

	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger: logg,
		Reader: &stubPendingReader{rows: []models.Order{bad, good}},
		Orders: canceller,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != good.ID {
		t.Fatalf("expected the remaining order to still be cancelled")
	}
}
