package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/parking-raffle-backend/pkg/lifecycle"
	"github.com/google/logger"
)

// Timeouts for each shutdown phase.
var (
	HTTPTimeout     = 15 * time.Second
	GracefulTimeout = 30 * time.Second
	ForcefulTimeout = 1 * time.Second
)

type finalizer struct {
	name string
	fn   func() error
}

// Coordinator orchestrates graceful shutdown: stop accepting requests, stop
// background services in two phases, then release resources.
type Coordinator struct {
	GracefulManager *lifecycle.Manager
	ForcefulManager *lifecycle.Manager

	finalizers []finalizer
}

// NewCoordinator creates a Coordinator over the given lifecycle managers.
func NewCoordinator(gracefulMgr, forcefulMgr *lifecycle.Manager) *Coordinator {
	return &Coordinator{
		GracefulManager: gracefulMgr,
		ForcefulManager: forcefulMgr,
	}
}

// AddFinalizer registers fn to run after every background service has
// stopped. Finalizers run in reverse registration order.
func (c *Coordinator) AddFinalizer(name string, fn func() error) {
	c.finalizers = append(c.finalizers, finalizer{name: name, fn: fn})
}

// ListenForSignalsAndShutdown blocks until SIGINT or SIGTERM, then shuts down.
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	logger.Infof("received %v, shutting down...", sig)
	c.Shutdown(server)
}

// Shutdown runs the shutdown sequence once.
func (c *Coordinator) Shutdown(server *http.Server) {
	// Let in-flight requests finish
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), HTTPTimeout)
		if err := server.Shutdown(ctx); err != nil {
			logger.Errorf("http server shutdown: %v", err)
		} else {
			logger.Info("http server stopped")
		}
		cancel()
	}

	// --- Phase 1: graceful ---
	logger.Infof("phase 1: waiting up to %v for background services", GracefulTimeout)
	c.GracefulManager.Shutdown()

	remaining := c.GracefulManager.WaitWithTimeout(GracefulTimeout)
	if len(remaining) == 0 {
		logger.Info("all background services stopped in phase 1")
	} else {
		// --- Phase 2: forceful ---
		logger.Warningf("phase 1 timed out with %v still running; forcing stop (up to %v)", remaining, ForcefulTimeout)
		c.ForcefulManager.Shutdown()
		if left := c.ForcefulManager.WaitWithTimeout(ForcefulTimeout); len(left) > 0 {
			logger.Errorf("services did not stop: %v", left)
		}
	}

	// --- Release resources ---
	for i := len(c.finalizers) - 1; i >= 0; i-- {
		f := c.finalizers[i]
		if err := f.fn(); err != nil {
			logger.Errorf("closing %s: %v", f.name, err)
		} else {
			logger.Infof("%s closed", f.name)
		}
	}

	logger.Info("shutdown complete")
}
