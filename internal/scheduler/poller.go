package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Poller periodically refreshes every currently cached city through a fixed
// worker pool. Ticks never overlap; the refresh tasks a tick submits run
// concurrently with each other and with foreground lookups.
type Poller struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	listKeys  func() []string
	refresh   func(ctx context.Context, key string) error

	workers int
	tasks   chan string
	wg      sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// New creates a Poller that enumerates keys via listKeys every interval and
// refreshes each through refresh. The task queue is bounded; keys that do not
// fit are skipped until the next tick.
func New(interval time.Duration, workers int, listKeys func() []string, refresh func(ctx context.Context, key string) error) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		listKeys:  listKeys,
		refresh:   refresh,
		workers:   workers,
		tasks:     make(chan string, workers*4),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Start launches the worker pool and schedules the periodic job. The first
// tick fires immediately.
func (p *Poller) Start() error {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for key := range p.tasks {
				p.runTask(key)
			}
		}()
	}

	_, err := p.scheduler.Every(p.interval).StartImmediately().SingletonMode().Do(p.tick)
	if err != nil {
		return err
	}

	p.scheduler.StartAsync()
	return nil
}

// tick snapshots the cached keys and submits one refresh task per key.
func (p *Poller) tick() {
	for _, key := range p.listKeys() {
		p.submit(key)
	}
}

func (p *Poller) submit(key string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return
	}

	select {
	case p.tasks <- key:
	default:
		log.Printf("poller: refresh queue full, skipping %q until next tick", key)
	}
}

// runTask refreshes one key. Failures are logged and isolated; the stale
// entry stays in place until the next successful refresh or TTL expiry.
func (p *Poller) runTask(key string) {
	ctx, cancel := context.WithTimeout(p.baseCtx, 30*time.Second)
	defer cancel()

	if err := p.refresh(ctx, key); err != nil {
		log.Printf("poller: refresh failed for %q: %v", key, err)
	}
}

// Stop halts the periodic job, closes the task intake, and waits up to grace
// for in-flight tasks. Tasks still running after the grace period are
// force-cancelled through their context. Stop is idempotent.
func (p *Poller) Stop(grace time.Duration) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.scheduler.Stop()
	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		p.cancel()
		select {
		case <-done:
		case <-time.After(grace):
			log.Printf("poller: workers did not stop within grace period")
		}
	}

	p.cancel()
}
