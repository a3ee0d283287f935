package openweather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/openweather-sdk/internal/cache"
	"github.com/i474232898/openweather-sdk/internal/scheduler"
)

// closeGrace bounds how long Close waits for in-flight background refreshes
// before force-cancelling them.
const closeGrace = 5 * time.Second

// fetcher is the remote lookup the client depends on. Satisfied by
// internal/owm.Client; tests substitute stubs.
type fetcher interface {
	Fetch(ctx context.Context, cityName string) (string, error)
}

// Client is one engine instance bound to a single API key. It serves current
// weather by city name from a bounded TTL cache, fetching through the remote
// service on miss or expiry. In Polling mode it also owns a background poller
// that refreshes every cached city on a fixed interval.
//
// A Client is obtained from a Registry and is safe for concurrent use. Once
// closed it stays closed; register the credential again for a fresh instance.
type Client struct {
	cfg    Config
	store  *cache.Store
	remote fetcher
	poller *scheduler.Poller
	group  singleflight.Group

	mu     sync.RWMutex
	closed bool
}

func newClient(cfg Config, remote fetcher) (*Client, error) {
	if err := cfg.validateConfig(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		store:  cache.New(cfg.MaxCacheSize),
		remote: remote,
	}

	if cfg.Mode == Polling {
		c.poller = scheduler.New(cfg.PollingInterval, cfg.WorkerPoolSize, c.store.Keys, c.refresh)
		if err := c.poller.Start(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// WeatherByCity returns the current weather for the named city as a JSON
// string. A cached entry younger than the TTL is served without any network
// call; otherwise the remote service is queried and the result cached.
//
// Concurrent misses for the same city may each trigger a fetch unless
// Config.DedupeInFlight is set; the last write wins either way.
func (c *Client) WeatherByCity(ctx context.Context, cityName string) (string, error) {
	if err := c.ensureOpen(); err != nil {
		return "", err
	}

	trimmed := strings.TrimSpace(cityName)
	if trimmed == "" {
		return "", ErrInvalidCity
	}
	key := strings.ToLower(trimmed)

	if entry, ok := c.store.Get(key); ok && !entry.Expired(c.cfg.TTL, time.Now()) {
		return entry.Payload, nil
	}

	payload, err := c.fetch(ctx, key, trimmed)
	if err != nil {
		return "", wrapRemoteErr(err)
	}

	c.writeBack(key, payload)
	return payload, nil
}

// ClearCache empties the cache. It succeeds regardless of lifecycle state.
func (c *Client) ClearCache() {
	c.store.Clear()
}

// DeleteCity removes one city from the cache. Blank names and absent keys
// are no-ops.
func (c *Client) DeleteCity(cityName string) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}

	trimmed := strings.TrimSpace(cityName)
	if trimmed == "" {
		return nil
	}

	c.store.Remove(strings.ToLower(trimmed))
	return nil
}

// CacheSize returns the current number of cached cities.
func (c *Client) CacheSize() int {
	return c.store.Len()
}

// Close transitions the client to its terminal closed state: the poller is
// stopped (waiting up to a grace period for in-flight refreshes), and the
// cache is cleared. Close is idempotent; subsequent calls are no-ops.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.poller != nil {
		c.poller.Stop(closeGrace)
	}

	c.store.Clear()
	return nil
}

func (c *Client) ensureOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}
	return nil
}

// fetch performs the remote lookup, optionally collapsing concurrent calls
// for the same key into one.
func (c *Client) fetch(ctx context.Context, key, cityName string) (string, error) {
	if !c.cfg.DedupeInFlight {
		return c.remote.Fetch(ctx, cityName)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.remote.Fetch(ctx, cityName)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// refresh re-fetches one cached city and writes the result back. Used by the
// background poller.
func (c *Client) refresh(ctx context.Context, key string) error {
	payload, err := c.remote.Fetch(ctx, key)
	if err != nil {
		return err
	}
	c.writeBack(key, payload)
	return nil
}

// writeBack stores a fetched payload unless the client has closed in the
// meantime. The read lock is held across the check and the put so a
// concurrent Close cannot interleave between them.
func (c *Client) writeBack(key, payload string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}
	c.store.Put(key, payload, time.Now())
}

// wrapRemoteErr folds transient network failures into a single "I/O error"
// reporting kind. Validation, not-found, client-request and context errors
// pass through unchanged.
func wrapRemoteErr(err error) error {
	if errors.Is(err, ErrTransient) {
		return fmt.Errorf("I/O error: %w", err)
	}
	return err
}
