package lifecycle

import (
	"context"
	"sync"
	"time"
)

// Handle ties one background poller (the Redis health checker, the raffle
// feed sync) to the Manager that will stop it.
type Handle struct {
	name string
	ctx  context.Context

	once    sync.Once
	release func()
}

// Name is the service name the Handle was registered under.
func (h *Handle) Name() string {
	return h.name
}

// Ctx is cancelled when the owning Manager shuts down. Pass it to store and
// Redis calls so they abort with the service.
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

// Done is closed on shutdown.
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Err is non-nil once Done is closed.
func (h *Handle) Err() error {
	return h.ctx.Err()
}

// Close reports the service as stopped. Only the first call counts.
func (h *Handle) Close() {
	h.once.Do(h.release)
}

// Sleep pauses for d. It returns the context error as soon as shutdown starts.
func (h *Handle) Sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.Done():
		return h.Err()
	case <-timer.C:
		return nil
	}
}

// Poll calls tick every interval until shutdown, then closes the Handle.
// The first tick happens after one interval, not immediately.
func (h *Handle) Poll(interval time.Duration, tick func(ctx context.Context)) {
	defer h.Close()
	for h.Sleep(interval) == nil {
		tick(h.ctx)
	}
}
