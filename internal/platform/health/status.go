package health

import (
	"sync"

	"github.com/google/logger"
)

// State is the Redis health as seen by the checker.
type State int

const (
	StateHealthy State = iota
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// statusManager tracks the Redis state and the run_id last seen while healthy.
type statusManager struct {
	mu             sync.RWMutex
	currentState   State
	lastKnownRunID string
}

func newStatusManager() *statusManager {
	return &statusManager{currentState: StateHealthy}
}

func (sm *statusManager) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

func (sm *statusManager) SetInitialRunID(runID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.lastKnownRunID = runID
}

// Assess folds in one probe result. restarted is true when Redis answered
// with a different run_id than before, meaning every session was dropped.
func (sm *statusManager) Assess(connected bool, runID string) (restarted bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	switch sm.currentState {
	case StateHealthy:
		if !connected {
			sm.currentState = StateDegraded
			logger.Warning("health: redis connection lost, state -> [degraded]")
		}
	case StateDegraded:
		if connected {
			sm.currentState = StateHealthy
			logger.Info("health: redis connection restored, state -> [healthy]")
		}
	}

	if connected {
		if sm.lastKnownRunID != "" && sm.lastKnownRunID != runID {
			restarted = true
			logger.Warningf("health: redis restarted (run_id %s -> %s), active sessions were lost", sm.lastKnownRunID, runID)
		}
		sm.lastKnownRunID = runID
	}
	return restarted
}
