package auth

import (
	"context"
	"time"
)

// DefaultReapInterval is how often expired ledger entries are purged.
const DefaultReapInterval = time.Hour

// Reaper periodically deletes expired entries from a revocation ledger.
// Purging is housekeeping only, Exists already ignores expired entries.
type Reaper struct {
	ledger   RevocationLedger
	interval time.Duration
	logger   Logger
	now      Clock
}

// NewReaper creates a reaper over ledger. A non positive interval uses DefaultReapInterval.
func NewReaper(ledger RevocationLedger, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{
		ledger:   ledger,
		interval: interval,
		logger:   defLogger{},
		now:      time.Now,
	}
}

func (r *Reaper) WithLogger(logger Logger) *Reaper {
	if logger != nil {
		r.logger = logger
	}
	return r
}

func (r *Reaper) WithClock(clock Clock) *Reaper {
	if clock != nil {
		r.now = clock
	}
	return r
}

// ReapOnce deletes every entry that expired before now.
func (r *Reaper) ReapOnce(ctx context.Context) (int64, error) {
	n, err := r.ledger.Reap(ctx, r.now())
	if err != nil {
		return 0, asRichError(err, "failed to reap revocation ledger")
	}
	if n > 0 {
		r.logger.Info("reaped revoked tokens", "count", n)
	}
	return n, nil
}

// Run reaps on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReapOnce(ctx); err != nil {
				r.logger.Error("ledger reap failed", "error", err)
			}
		}
	}
}
