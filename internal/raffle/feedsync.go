package raffle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SlpAus/parking-raffle-backend/pkg/lifecycle"
	"github.com/google/logger"
)

// FeedSyncer re-reads the open raffle from the store on an interval so the
// feed follows changes made outside this process, e.g. by another instance
// or directly against a remote store.
type FeedSyncer struct {
	gateway  *Gateway
	interval time.Duration

	mu sync.Mutex
}

// NewFeedSyncer returns a syncer for gateway's feed.
func NewFeedSyncer(gateway *Gateway, interval time.Duration) *FeedSyncer {
	return &FeedSyncer{gateway: gateway, interval: interval}
}

// Run polls until handle is shut down.
func (s *FeedSyncer) Run(handle *lifecycle.Handle) {
	logger.Infof("feed sync: polling every %v", s.interval)
	handle.Poll(s.interval, s.tick)
}

func (s *FeedSyncer) tick(ctx context.Context) {
	changed, err := s.SyncOnce(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warningf("feed sync: %v", err)
		}
		return
	}
	if changed {
		logger.Info("feed sync: open raffle changed outside this process")
	}
}

// SyncOnce loads the open raffle and publishes it only if it differs from
// what the feed already holds.
func (s *FeedSyncer) SyncOnce(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := s.gateway.feed
	if feed == nil {
		return false, nil
	}
	open, err := s.gateway.GetActiveRaffle(ctx)
	if err != nil {
		return false, err
	}
	if sameRaffle(feed.Get(), open) {
		return false, nil
	}
	feed.Set(open)
	return true, nil
}

func sameRaffle(a, b *Raffle) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Status == b.Status && a.Period == b.Period && a.TotalSpots == b.TotalSpots
}
