// Package timeouts provides centralized timeout values for handler operations.
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultLong   = 15 * time.Second
	DefaultUpload = 30 * time.Second
)

var mu sync.RWMutex

var current = Config{
	Ping:   DefaultPing,
	Short:  DefaultShort,
	Long:   DefaultLong,
	Upload: DefaultUpload,
}

// Config holds timeout configuration values.
type Config struct {
	Ping   time.Duration // health checks
	Short  time.Duration // single-document reads and writes
	Long   time.Duration // aggregations, cascades, exports
	Upload time.Duration // handlers that move image bytes
}

// Configure overrides the non-zero values in cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		current.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		current.Short = cfg.Short
	}
	if cfg.Long > 0 {
		current.Long = cfg.Long
	}
	if cfg.Upload > 0 {
		current.Upload = cfg.Upload
	}
}

// Reset restores all timeouts to defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = Config{Ping: DefaultPing, Short: DefaultShort, Long: DefaultLong, Upload: DefaultUpload}
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func Ping() time.Duration   { return Current().Ping }
func Short() time.Duration  { return Current().Short }
func Long() time.Duration   { return Current().Long }
func Upload() time.Duration { return Current().Upload }

// WithTimeout creates a context with timeout that logs when the deadline
// was hit by the time cancel is called.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout))
		}
		cancel()
	}
}
