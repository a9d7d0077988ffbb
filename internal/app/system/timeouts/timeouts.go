// Package timeouts holds the timeout values used for database and other I/O
// in handlers, background jobs and the live dashboard.
//
// Values start at the defaults below and may be overridden once at startup
// with Configure or ConfigureFromEnv.
//
//   - Ping: health checks (Mongo and Redis)
//   - Short: single-document reads and writes
//   - Medium: list queries and multi-step reads
//   - Long: operations touching several collections, background jobs
//   - Recompute: one dashboard statistics recompute
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing      = 2 * time.Second
	DefaultShort     = 5 * time.Second
	DefaultMedium    = 10 * time.Second
	DefaultLong      = 30 * time.Second
	DefaultRecompute = 10 * time.Second
)

// Config holds timeout values. Zero fields are ignored by Configure.
type Config struct {
	Ping      time.Duration
	Short     time.Duration
	Medium    time.Duration
	Long      time.Duration
	Recompute time.Duration
}

func defaults() Config {
	return Config{
		Ping:      DefaultPing,
		Short:     DefaultShort,
		Medium:    DefaultMedium,
		Long:      DefaultLong,
		Recompute: DefaultRecompute,
	}
}

var (
	mu  sync.RWMutex
	cur = defaults()
)

func get(f func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return f(cur)
}

func Ping() time.Duration      { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration     { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration    { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration      { return get(func(c Config) time.Duration { return c.Long }) }
func Recompute() time.Duration { return get(func(c Config) time.Duration { return c.Recompute }) }

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// Configure overrides the non-zero fields of cfg. Call during startup
// before handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	for _, f := range fields(&cur) {
		if v := f.pick(cfg); v > 0 {
			*f.dst = v
		}
	}
}

// Reset restores the defaults. Tests use it.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults()
}

// ConfigureFromEnv reads TIMEOUT_PING, TIMEOUT_SHORT, TIMEOUT_MEDIUM,
// TIMEOUT_LONG and TIMEOUT_RECOMPUTE (Go duration strings such as "2s" or
// "500ms"). Unset, unparsable and non-positive values are ignored.
// Returns how many values were applied.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	n := 0
	for _, f := range fields(&cur) {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*f.dst = d
			n++
		}
	}
	return n
}

type field struct {
	env  string
	dst  *time.Duration
	pick func(Config) time.Duration
}

func fields(c *Config) []field {
	return []field{
		{"TIMEOUT_PING", &c.Ping, func(x Config) time.Duration { return x.Ping }},
		{"TIMEOUT_SHORT", &c.Short, func(x Config) time.Duration { return x.Short }},
		{"TIMEOUT_MEDIUM", &c.Medium, func(x Config) time.Duration { return x.Medium }},
		{"TIMEOUT_LONG", &c.Long, func(x Config) time.Duration { return x.Long }},
		{"TIMEOUT_RECOMPUTE", &c.Recompute, func(x Config) time.Duration { return x.Recompute }},
	}
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when
// the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete product")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
