package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const cacheStopTimeout = 5 * time.Second

// OverviewCache re-computes the today overview in the background so
// dashboard loads do not wait on the store. The computation itself is
// always consistent with the snapshot set at refresh time; staleness
// is bounded by the refresh interval.
type OverviewCache struct {
	mu     sync.RWMutex
	cached *OverviewResponse

	log      *slog.Logger
	clock    clockwork.Clock
	server   *Server
	interval time.Duration

	lastRefresh time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOverviewCache(log *slog.Logger, clock clockwork.Clock, server *Server, interval time.Duration) *OverviewCache {
	return &OverviewCache{
		log:      log,
		clock:    clock,
		server:   server,
		interval: interval,
	}
}

// Start performs one synchronous refresh so the cache is warm, then
// launches the background refresh loop.
func (c *OverviewCache) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.log.Info("starting overview cache", "interval", c.interval)
	c.refresh(ctx)

	c.wg.Add(1)
	go c.refreshLoop(ctx)
}

// Stop cancels the refresh loop and waits for it to exit.
func (c *OverviewCache) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.log.Info("overview cache stopped")
	case <-time.After(cacheStopTimeout):
		c.log.Warn("overview cache stop timed out, continuing shutdown")
	}
}

// Get returns the cached overview, or nil when the cache is cold.
func (c *OverviewCache) Get() *OverviewResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// LastRefresh reports when the cache last refreshed successfully.
func (c *OverviewCache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

func (c *OverviewCache) refreshLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.refresh(ctx)
		}
	}
}

func (c *OverviewCache) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	resp, err := c.server.computeOverview(refreshCtx)
	if err != nil {
		// Keep serving the previous snapshot; staleness beats a
		// blank dashboard during a store hiccup.
		c.log.Error("overview cache refresh failed", "error", err)
		return
	}

	c.mu.Lock()
	c.cached = resp
	c.lastRefresh = c.clock.Now()
	c.mu.Unlock()
}
