// Package lifecycle runs the server's background pollers and stops them in
// two phases: graceful first, forceful if they overrun.
package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/logger"
)

// Manager owns a group of background services sharing one shutdown signal.
type Manager struct {
	name string

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager returns a Manager; name tags its log lines ("graceful", "forceful").
func NewManager(name string) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		name:    name,
		running: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// NewServiceHandle registers name and returns its Handle. The caller owns
// the goroutine and must Close the Handle when it exits.
func (m *Manager) NewServiceHandle(name string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.running[name]; dup {
		return nil, fmt.Errorf("lifecycle %s: service %q already registered", m.name, name)
	}
	m.running[name] = struct{}{}
	m.wg.Add(1)
	logger.Infof("lifecycle %s: %s started", m.name, name)

	return &Handle{
		name: name,
		ctx:  m.ctx,
		release: func() {
			m.mu.Lock()
			delete(m.running, name)
			m.mu.Unlock()
			m.wg.Done()
			logger.Infof("lifecycle %s: %s stopped", m.name, name)
		},
	}, nil
}

// Go registers name and runs fn on its own goroutine. The Handle is closed
// when fn returns, whether or not fn closed it.
func (m *Manager) Go(name string, fn func(*Handle)) error {
	h, err := m.NewServiceHandle(name)
	if err != nil {
		return err
	}
	go func() {
		defer h.Close()
		fn(h)
	}()
	return nil
}

// Shutdown cancels the context shared by every Handle.
func (m *Manager) Shutdown() {
	logger.Infof("lifecycle %s: shutting down", m.name)
	m.cancel()
}

// WaitWithTimeout blocks until every service has closed its Handle or timeout
// elapses. It returns the sorted names still running, or nil.
func (m *Manager) WaitWithTimeout(timeout time.Duration) []string {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.running))
	for name := range m.running {
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	slices.Sort(names)
	return names
}
