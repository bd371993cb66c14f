// Package maintenance runs background housekeeping for the SQL flight cache.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/nonrev/internal/metrics"
)

// FlightPurger deletes cached flight lists stored before a cutoff.
type FlightPurger interface {
	PurgeFlights(ctx context.Context, cutoff time.Time) (int64, error)
}

// Purger periodically removes cache entries that are too old to ever be
// served again. Reads never delete entries, so without it the flights table
// only grows.
type Purger struct {
	store    FlightPurger
	maxAge   time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *slog.Logger
}

// NewPurger creates a Purger that deletes entries older than maxAge every
// interval. If interval is <= 0, it defaults to one hour.
func NewPurger(store FlightPurger, maxAge, interval time.Duration, m *metrics.Metrics) *Purger {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Purger{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		metrics:  m,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// Run purges once immediately and then on every tick until ctx is cancelled.
func (p *Purger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if n, err := p.RunOnce(ctx); err != nil {
			p.logger.Error("cache purge failed", "error", err)
		} else if n > 0 {
			p.logger.Info("purged cached flight lists", "count", n, "max_age", p.maxAge)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce deletes entries stored more than maxAge ago and returns how many
// were removed. A non-positive maxAge disables purging.
func (p *Purger) RunOnce(ctx context.Context) (int64, error) {
	if p.maxAge <= 0 {
		return 0, nil
	}
	n, err := p.store.PurgeFlights(ctx, p.now().Add(-p.maxAge))
	if err != nil {
		return 0, fmt.Errorf("purging flight cache: %w", err)
	}
	p.metrics.Purged(n)
	return n, nil
}
