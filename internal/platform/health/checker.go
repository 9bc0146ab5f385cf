package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/SlpAus/parking-raffle-backend/pkg/lifecycle"
	"github.com/google/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	checkInterval = 5 * time.Second
	pingTimeout   = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// Checker probes Redis in the background and answers readiness questions.
type Checker struct {
	rdb    *redis.Client
	db     *gorm.DB
	status *statusManager
	// OnRestart runs after a Redis restart is detected.
	OnRestart func()
}

// NewChecker builds a Checker; db may be nil when raffles live in a remote store.
func NewChecker(rdb *redis.Client, db *gorm.DB) *Checker {
	return &Checker{rdb: rdb, db: db, status: newStatusManager()}
}

// getRedisRunID extracts run_id from INFO server.
func (c *Checker) getRedisRunID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	info, err := c.rdb.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	matches := runIDPattern.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("run_id not found in redis INFO")
	}
	return matches[1], nil
}

// InitializeRunID records the run_id at startup so later restarts can be noticed.
func (c *Checker) InitializeRunID(ctx context.Context) error {
	runID, err := c.getRedisRunID(ctx)
	if err != nil {
		return fmt.Errorf("cannot read redis run_id at startup: %w", err)
	}
	c.status.SetInitialRunID(runID)
	logger.Infof("health: initial redis run_id %s", runID)
	return nil
}

// PerformCheck runs one probe and updates the state.
func (c *Checker) PerformCheck(ctx context.Context) {
	runID, err := c.getRedisRunID(ctx)
	restarted := c.status.Assess(err == nil, runID)
	if restarted && c.OnRestart != nil {
		c.OnRestart()
	}
}

// RedisHealthy reports the last known Redis state.
func (c *Checker) RedisHealthy() bool {
	return c.status.State() == StateHealthy
}

// Report is the body of GET /api/health.
type Report struct {
	Status   string `json:"status"`
	Redis    string `json:"redis"`
	Database string `json:"database"`
}

// Snapshot returns the current report; the database is pinged on demand.
func (c *Checker) Snapshot(ctx context.Context) Report {
	r := Report{Status: "ok", Redis: c.status.State().String(), Database: "n/a"}
	if c.db != nil {
		r.Database = "ok"
		sqlDB, err := c.db.DB()
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err = sqlDB.PingContext(pingCtx)
			cancel()
		}
		if err != nil {
			r.Database = "unreachable"
		}
	}
	if r.Redis != StateHealthy.String() || r.Database == "unreachable" {
		r.Status = "degraded"
	}
	return r
}

// Run probes Redis every checkInterval until the handle is cancelled.
func (c *Checker) Run(handle *lifecycle.Handle) {
	handle.Poll(checkInterval, c.PerformCheck)
}
