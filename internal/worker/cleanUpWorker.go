package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// BookingExpirer expires bookings left pending for too long.
type BookingExpirer interface {
	ExpireStaleBookings(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

// BookingCleanupWorker expires pending bookings nobody decided within the TTL.
type BookingCleanupWorker struct {
	bookings  BookingExpirer
	ttl       time.Duration
	batchSize int

	runs    atomic.Int64
	expired atomic.Int64
}

// NewBookingCleanupWorker expires bookings left pending longer than ttl,
// batchSize at a time (100 when unset).
func NewBookingCleanupWorker(bookings BookingExpirer, ttl time.Duration, batchSize int) *BookingCleanupWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BookingCleanupWorker{
		bookings:  bookings,
		ttl:       ttl,
		batchSize: batchSize,
	}
}

// RunOnce drains stale pending bookings batch by batch.
func (w *BookingCleanupWorker) RunOnce(ctx context.Context) error {
	w.runs.Add(1)

	total := 0
	for {
		n, err := w.bookings.ExpireStaleBookings(ctx, w.ttl, w.batchSize)
		total += n
		w.expired.Add(int64(n))
		if err != nil {
			return err
		}
		// a short batch means nothing stale is left
		if n < w.batchSize {
			break
		}
	}

	if total > 0 {
		logrus.WithFields(logrus.Fields{
			"expired": total,
			"ttl":     w.ttl.String(),
		}).Info("Expired stale pending bookings")
	}
	return nil
}

func (w *BookingCleanupWorker) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"worker_type": "booking_cleanup",
		"ttl":         w.ttl.String(),
		"runs":        w.runs.Load(),
		"expired":     w.expired.Load(),
	}
}
