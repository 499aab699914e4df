package service

import (
	"context"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// SweepExpired cancels bookings still pending after ttl and releases their
// slots.  It returns how many bookings were cancelled.
func (l *Lifecycle) SweepExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	stale, err := l.bookings.ListPendingBefore(ctx, l.now().UTC().Add(-ttl))
	if err != nil {
		return 0, readErr(err)
	}
	n := 0
	for _, b := range stale {
		got, err := l.cancel(ctx, b, "payment window expired")
		if err != nil {
			l.log.Warn("sweeper: cancel failed", "booking_id", b.ID, "err", err)
			continue
		}
		if got.Status == model.BookingCancelled {
			n++
		}
	}
	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (l *Lifecycle) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	if ttl <= 0 || interval <= 0 {
		l.log.Info("sweeper disabled")
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := l.SweepExpired(ctx, ttl)
			if err != nil {
				l.log.Warn("sweeper: run failed", "err", err)
				continue
			}
			if n > 0 {
				l.log.Info("sweeper: expired pending bookings cancelled", "count", n)
			}
		}
	}
}
