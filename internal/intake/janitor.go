package intake

import (
	"context"
	"time"

	"github.com/Skufu/medintake/internal/logger"
	"github.com/Skufu/medintake/internal/metrics"
)

// Janitor removes sessions that have not been updated within ttl.
type Janitor struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewJanitor sweeps every ttl/4, but at least once a minute.
func NewJanitor(store Store, ttl time.Duration) *Janitor {
	interval := ttl / 4
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	return &Janitor{store: store, ttl: ttl, interval: interval, now: time.Now}
}

// Sweep deletes expired sessions once and returns how many were removed.
// A non-positive ttl never expires anything.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	if j.ttl <= 0 {
		return 0, nil
	}
	n, err := j.store.DeleteExpired(ctx, j.now().Add(-j.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsExpired.Add(float64(n))
		logger.Log.WithField("count", n).Info("expired intake sessions removed")
	}
	return n, nil
}

// Run sweeps until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				logger.Log.Warnf("session sweep failed: %v", err)
			}
		}
	}
}
