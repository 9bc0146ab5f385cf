package raffle

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/SlpAus/parking-raffle-backend/pkg/observable"
)

func newTestOrchestrator(store Store) *Orchestrator {
	o := NewOrchestrator(store, nil)
	o.source = rand.New(rand.NewPCG(11, 13))
	return o
}

func TestExecuteRaffle_MarksMinOfSpotsAndRegistrations(t *testing.T) {
	tests := []struct {
		name        string
		spots, regs int
		wantWinners int
	}{
		{"fewer spots than entries", 2, 5, 2},
		{"more spots than entries", 5, 2, 2},
		{"exact fit", 3, 3, 3},
		{"single entry", 1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			open := store.seed(tt.spots, tt.regs)

			result, err := newTestOrchestrator(store).ExecuteRaffle(context.Background())
			if err != nil {
				t.Fatalf("ExecuteRaffle: %v", err)
			}

			if got := len(store.winners()); got != tt.wantWinners {
				t.Errorf("winners = %d, want %d", got, tt.wantWinners)
			}
			if result.Winners != tt.wantWinners || result.Registrations != tt.regs || result.RaffleID != open.ID {
				t.Errorf("unexpected result %+v", result)
			}
			if got := store.patchCalls(); got != tt.wantWinners+1 {
				t.Errorf("patch calls = %d, want %d", got, tt.wantWinners+1)
			}
			if len(store.rafflePatches) != 1 || store.rafflePatches[0].Status != StatusClosed {
				t.Errorf("raffle patches = %+v, want one CLOSED", store.rafflePatches)
			}
			if got := store.raffle(open.ID).Status; got != StatusClosed {
				t.Errorf("raffle status = %s, want CLOSED", got)
			}
		})
	}
}

func TestExecuteRaffle_TwoEntriesOneSpot(t *testing.T) {
	store := &memStore{}
	open := store.seed(1, 2)

	if _, err := NewOrchestrator(store, nil).ExecuteRaffle(context.Background()); err != nil {
		t.Fatalf("ExecuteRaffle: %v", err)
	}

	winners := 0
	for _, r := range store.regs {
		if r.IsWinner {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("exactly one of reg1/reg2 should win, got %d", winners)
	}
	if store.raffle(open.ID).Status != StatusClosed {
		t.Error("raffle should be CLOSED")
	}
}

func TestExecuteRaffle_NoOpenRaffle(t *testing.T) {
	store := &memStore{}
	_, _ = store.CreateRaffle(context.Background(), Raffle{Period: "old", Status: StatusClosed, TotalSpots: 1})

	_, err := newTestOrchestrator(store).ExecuteRaffle(context.Background())
	if !errors.Is(err, ErrNoOpenRaffle) {
		t.Fatalf("expected ErrNoOpenRaffle, got %v", err)
	}
	if store.patchCalls() != 0 {
		t.Error("no writes expected")
	}
}

func TestExecuteRaffle_NoRegistrations(t *testing.T) {
	store := &memStore{}
	store.seed(5, 0)

	_, err := newTestOrchestrator(store).ExecuteRaffle(context.Background())
	if !errors.Is(err, ErrNoRegistrations) {
		t.Fatalf("expected ErrNoRegistrations, got %v", err)
	}
	if store.patchCalls() != 0 {
		t.Error("no writes expected")
	}
}

func TestExecuteRaffle_MultipleOpenRaffles(t *testing.T) {
	store := &memStore{}
	store.seed(1, 1)
	store.seed(1, 1)

	_, err := newTestOrchestrator(store).ExecuteRaffle(context.Background())
	if !errors.Is(err, ErrMultipleOpenRaffles) {
		t.Fatalf("expected ErrMultipleOpenRaffles, got %v", err)
	}
}

func TestExecuteRaffle_SecondCallFails(t *testing.T) {
	store := &memStore{}
	store.seed(1, 3)
	o := newTestOrchestrator(store)

	if _, err := o.ExecuteRaffle(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := o.ExecuteRaffle(context.Background()); !errors.Is(err, ErrNoOpenRaffle) {
		t.Fatalf("second call: expected ErrNoOpenRaffle, got %v", err)
	}
}

func TestExecuteRaffle_ConcurrentCallsRunOnce(t *testing.T) {
	store := &memStore{}
	r := store.seed(1, 6)
	o := newTestOrchestrator(store)

	const calls = 4
	errs := make([]error, calls)
	var wg sync.WaitGroup
	for i := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = o.ExecuteRaffle(context.Background())
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrNoOpenRaffle):
			t.Errorf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one successful execution, got %d", succeeded)
	}
	if got := len(store.winners()); got != r.TotalSpots {
		t.Errorf("winners = %d, want %d", got, r.TotalSpots)
	}
}

func TestExecuteRaffle_PartialFailureIsAggregated(t *testing.T) {
	cause := errors.New("connection reset")
	store := &memStore{failPatchRaffle: cause}
	store.seed(2, 4)

	_, err := newTestOrchestrator(store).ExecuteRaffle(context.Background())
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("expected ErrExecutionFailed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected the cause to be wrapped, got %v", err)
	}
	if code, _ := Classify(err); code != "EXECUTION_FAILED" {
		t.Errorf("Classify = %s", code)
	}
	// Every update was still dispatched.
	if got := store.patchCalls(); got != 3 {
		t.Errorf("patch calls = %d, want 3", got)
	}
}

func TestExecuteRaffle_ClearsFeed(t *testing.T) {
	store := &memStore{}
	open := store.seed(1, 1)
	feed := observable.New[*Raffle](&open)

	if _, err := NewOrchestrator(store, feed).ExecuteRaffle(context.Background()); err != nil {
		t.Fatalf("ExecuteRaffle: %v", err)
	}
	if feed.Get() != nil {
		t.Errorf("feed should be cleared, got %+v", feed.Get())
	}
}
