package ratelimit

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// ErrLimitExceeded is handed to the error handler when a client runs out of budget.
var ErrLimitExceeded = errors.New("rate limit exceeded")

const (
	DefaultPerSecond = 1.0
	DefaultBurst     = 5
	DefaultMaxKeys   = 10_000
	DefaultIdleTTL   = 5 * time.Minute
)

// Config defines the token bucket applied per client key.
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool
	// KeyFunc derives the bucket key, defaults to the client IP
	KeyFunc func(router.Context) string
	// PerSecond is the refill rate of every bucket
	PerSecond float64
	// Burst is the bucket capacity
	Burst int
	// MaxKeys bounds the number of tracked clients
	MaxKeys int
	// IdleTTL evicts buckets that saw no traffic for this long
	IdleTTL time.Duration
	// LimitError is handed to ErrorHandler when a request is rejected
	LimitError   error
	ErrorHandler router.ErrorHandler
}

// Limiter holds the per key buckets.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewLimiter creates a limiter with defaults applied to cfg.
func NewLimiter(config ...Config) *Limiter {
	cfg := configDefault(config...)
	return &Limiter{
		cfg:     cfg,
		buckets: expirable.NewLRU[string, *rate.Limiter](cfg.MaxKeys, nil, cfg.IdleTTL),
	}
}

// Allow spends one token from the bucket of key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Burst)
	}
	// re-adding refreshes the idle ttl
	l.buckets.Add(key, b)
	return b.Allow()
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	return l.buckets.Len()
}

// Middleware rejects requests whose key ran out of budget.
func (l *Limiter) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if l.cfg.Skip != nil && l.cfg.Skip(ctx) {
				return next(ctx)
			}

			key := l.cfg.KeyFunc(ctx)
			if key == "" {
				key = "unknown"
			}

			if !l.Allow(key) {
				return l.cfg.ErrorHandler(ctx, l.cfg.LimitError)
			}
			return next(ctx)
		}
	}
}

// New returns a rate limiting middleware.
func New(config ...Config) router.MiddlewareFunc {
	return NewLimiter(config...).Middleware()
}

// ClientIPKey is the locals key holding the peer address resolved by the server.
const ClientIPKey = "client_ip"

type ipContext interface {
	IP() string
}

// ClientIP returns the address stored by ResolveClientIP. Forwarded headers
// are never read here: fiber only honours them for configured trusted proxies.
func ClientIP(ctx router.Context) string {
	if ip, ok := ctx.Locals(ClientIPKey).(string); ok && ip != "" {
		return ip
	}
	if c, ok := ctx.(ipContext); ok {
		return c.IP()
	}
	return ""
}

// ResolveClientIP stores fiber's view of the client address for ClientIP.
// Register it on the fiber app before any route.
func ResolveClientIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(ClientIPKey, c.IP())
		return c.Next()
	}
}

// TrustedProxyConfig returns the fiber settings that make c.IP() read
// header only when the peer is one of proxies. No proxies leaves the
// peer address as the only source.
func TrustedProxyConfig(cfg fiber.Config, header string, proxies []string) fiber.Config {
	if len(proxies) == 0 {
		cfg.ProxyHeader = ""
		cfg.EnableTrustedProxyCheck = false
		return cfg
	}
	if header == "" {
		header = fiber.HeaderXForwardedFor
	}
	cfg.ProxyHeader = header
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = proxies
	cfg.EnableIPValidation = true
	return cfg
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.LimitError == nil {
		cfg.LimitError = ErrLimitExceeded
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			return c.Status(http.StatusTooManyRequests).SendString(err.Error())
		}
	}
	return cfg
}
