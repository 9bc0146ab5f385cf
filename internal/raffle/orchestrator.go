package raffle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SlpAus/parking-raffle-backend/pkg/observable"
	"github.com/google/logger"
	"golang.org/x/sync/errgroup"
)

// ExecutionResult summarises a finished raffle run. Winner identities are not
// returned; callers re-query registrations to see them.
type ExecutionResult struct {
	RaffleID      string `json:"raffleId"`
	Registrations int    `json:"registrations"`
	Winners       int    `json:"winners"`
}

// Orchestrator runs the lottery for the open raffle.
type Orchestrator struct {
	store  Store
	source Source
	feed   *observable.Value[*Raffle]

	// execMu runs one execution at a time in this process.
	execMu sync.Mutex
}

// NewOrchestrator returns an Orchestrator over store. feed, if not nil, is
// cleared once a raffle has been closed.
func NewOrchestrator(store Store, feed *observable.Value[*Raffle]) *Orchestrator {
	return &Orchestrator{store: store, source: DefaultSource, feed: feed}
}

// ExecuteRaffle picks min(totalSpots, N) winners among the open raffle's
// registrations, flags them and closes the raffle. It is not idempotent: once
// it succeeds, the next call fails with ErrNoOpenRaffle.
func (o *Orchestrator) ExecuteRaffle(ctx context.Context) (ExecutionResult, error) {
	o.execMu.Lock()
	defer o.execMu.Unlock()

	// 1. Locate the open raffle
	open, err := findOpenRaffle(ctx, o.store)
	if err != nil {
		return ExecutionResult{}, err
	}
	if open == nil {
		return ExecutionResult{}, ErrNoOpenRaffle
	}

	// 2. Fetch its registrations
	regs, err := o.store.FindRegistrations(ctx, RegistrationFilter{RaffleID: open.ID})
	if err != nil {
		return ExecutionResult{}, err
	}
	if len(regs) == 0 {
		return ExecutionResult{}, ErrNoRegistrations
	}

	// 3. Shuffle and take the first totalSpots entries
	winners := SelectWinners(regs, open.TotalSpots, o.source)

	// 4. Flag winners and close the raffle
	if tx, ok := o.store.(Transactional); ok {
		err = tx.WithinTx(ctx, func(s Store) error {
			return applySequential(ctx, s, open.ID, winners)
		})
	} else {
		err = applyConcurrent(ctx, o.store, open.ID, winners)
	}
	if errors.Is(err, ErrNoOpenRaffle) {
		// Another process closed it between our read and our write.
		logger.Warningf("raffle %s was executed concurrently", open.ID)
		return ExecutionResult{}, ErrNoOpenRaffle
	}
	if err != nil {
		logger.Errorf("raffle %s: execution failed: %v", open.ID, err)
		return ExecutionResult{}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	if o.feed != nil {
		o.feed.Set(nil)
	}
	logger.Infof("raffle %s (%s): %d winners among %d registrations", open.ID, open.Period, len(winners), len(regs))

	return ExecutionResult{
		RaffleID:      open.ID,
		Registrations: len(regs),
		Winners:       len(winners),
	}, nil
}

func winnerPatch() RegistrationPatch {
	won := true
	return RegistrationPatch{IsWinner: &won}
}

// applyConcurrent dispatches every update at once and waits for all of them.
// A failure leaves whatever already succeeded in place.
func applyConcurrent(ctx context.Context, store Store, raffleID string, winners []Registration) error {
	var g errgroup.Group
	for _, w := range winners {
		g.Go(func() error {
			if _, err := store.PatchRegistration(ctx, w.ID, winnerPatch()); err != nil {
				return fmt.Errorf("mark registration %s as winner: %w", w.ID, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if _, err := store.PatchRaffle(ctx, raffleID, RafflePatch{Status: StatusClosed}); err != nil {
			return fmt.Errorf("close raffle %s: %w", raffleID, err)
		}
		return nil
	})
	return g.Wait()
}

// applySequential runs inside a transaction. The raffle is closed first so
// that a concurrent execution which lost the race writes no winners.
func applySequential(ctx context.Context, store Store, raffleID string, winners []Registration) error {
	if closer, ok := store.(openRaffleCloser); ok {
		if err := closer.CloseOpenRaffle(ctx, raffleID); err != nil {
			return err
		}
	} else if _, err := store.PatchRaffle(ctx, raffleID, RafflePatch{Status: StatusClosed}); err != nil {
		return fmt.Errorf("close raffle %s: %w", raffleID, err)
	}

	for _, w := range winners {
		if _, err := store.PatchRegistration(ctx, w.ID, winnerPatch()); err != nil {
			return fmt.Errorf("mark registration %s as winner: %w", w.ID, err)
		}
	}
	return nil
}
