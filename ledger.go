package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RevocationLedger is the append-only set of retired refresh tokens.
// Entries whose expiry has passed are treated as absent.
type RevocationLedger interface {
	Exists(ctx context.Context, token string) (bool, error)
	// InsertIfAbsent reports whether the entry was written. A duplicate
	// token returns false and no error.
	InsertIfAbsent(ctx context.Context, entry *RevokedToken) (bool, error)
	// Reap physically removes entries that expired before the given time.
	Reap(ctx context.Context, before time.Time) (int64, error)
}

// CachedLedger keeps tokens retired through it in memory. Only positive
// answers are cached; a miss always reaches the wrapped ledger.
type CachedLedger struct {
	next  RevocationLedger
	cache *expirable.LRU[string, time.Time]
	now   Clock
}

// NewCachedLedger wraps next with an LRU of size entries held for at most ttl.
func NewCachedLedger(next RevocationLedger, size int, ttl time.Duration) *CachedLedger {
	if size <= 0 {
		size = 10_000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedLedger{
		next:  next,
		cache: expirable.NewLRU[string, time.Time](size, nil, ttl),
		now:   time.Now,
	}
}

// WithClock overrides the time source.
func (l *CachedLedger) WithClock(clock Clock) *CachedLedger {
	if clock != nil {
		l.now = clock
	}
	return l
}

func (l *CachedLedger) Exists(ctx context.Context, token string) (bool, error) {
	if expiresAt, ok := l.cache.Get(token); ok {
		if l.now().Before(expiresAt) {
			return true, nil
		}
		l.cache.Remove(token)
	}

	return l.next.Exists(ctx, token)
}

func (l *CachedLedger) InsertIfAbsent(ctx context.Context, entry *RevokedToken) (bool, error) {
	inserted, err := l.next.InsertIfAbsent(ctx, entry)
	if err != nil {
		return false, err
	}
	// either way the token is now retired
	l.cache.Add(entry.Token, entry.ExpiresAt)
	return inserted, nil
}

func (l *CachedLedger) Reap(ctx context.Context, before time.Time) (int64, error) {
	return l.next.Reap(ctx, before)
}

// Len returns the number of cached tokens.
func (l *CachedLedger) Len() int {
	return l.cache.Len()
}
