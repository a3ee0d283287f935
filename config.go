package openweather

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

// Mode selects how cached entries are kept fresh.
type Mode string

const (
	// OnDemand refreshes an entry only when a lookup finds it expired.
	OnDemand Mode = "on_demand"

	// Polling additionally refreshes every cached city on a fixed interval
	// in the background.
	Polling Mode = "polling"
)

var validate = validator.New()

// Config holds the tunables of a Client. Build one from DefaultConfig with
// the chainable With methods; it is validated once at client construction and
// invalid values fail construction rather than being clamped.
type Config struct {
	Mode            Mode          `validate:"required,oneof=on_demand polling"`
	TTL             time.Duration `validate:"gt=0"`
	PollingInterval time.Duration `validate:"gt=0"`
	MaxCacheSize    int           `validate:"gt=0"`
	WorkerPoolSize  int           `validate:"gt=0"`

	// DedupeInFlight collapses concurrent cache misses for the same city
	// into a single remote fetch. Off by default: both callers fetch and the
	// second write wins.
	DedupeInFlight bool
}

// DefaultConfig returns the default configuration: on-demand mode, 600s TTL,
// 600s polling interval, 10 cache slots, and a worker pool sized to
// min(4, NumCPU).
func DefaultConfig() Config {
	return Config{
		Mode:            OnDemand,
		TTL:             600 * time.Second,
		PollingInterval: 600 * time.Second,
		MaxCacheSize:    10,
		WorkerPoolSize:  min(4, runtime.NumCPU()),
	}
}

// WithMode returns a copy of the config with the given mode.
func (c Config) WithMode(mode Mode) Config {
	c.Mode = mode
	return c
}

// WithTTL returns a copy of the config with the given cache entry lifetime.
func (c Config) WithTTL(ttl time.Duration) Config {
	c.TTL = ttl
	return c
}

// WithPollingInterval returns a copy of the config with the given polling
// interval. Only meaningful in Polling mode.
func (c Config) WithPollingInterval(interval time.Duration) Config {
	c.PollingInterval = interval
	return c
}

// WithMaxCacheSize returns a copy of the config with the given cache bound.
func (c Config) WithMaxCacheSize(size int) Config {
	c.MaxCacheSize = size
	return c
}

// WithWorkerPoolSize returns a copy of the config with the given number of
// background refresh workers. Only meaningful in Polling mode.
func (c Config) WithWorkerPoolSize(size int) Config {
	c.WorkerPoolSize = size
	return c
}

// WithDedupeInFlight returns a copy of the config with in-flight fetch
// deduplication enabled or disabled.
func (c Config) WithDedupeInFlight(enabled bool) Config {
	c.DedupeInFlight = enabled
	return c
}

func (c Config) validateConfig() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
