package raffle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SlpAus/parking-raffle-backend/pkg/observable"
	"github.com/google/logger"
)

// Gateway handles everything a resident or admin does before execution:
// opening a raffle, registering for it and looking up history.
type Gateway struct {
	store Store
	feed  *observable.Value[*Raffle]
	now   func() time.Time

	// createMu serializes the open-raffle check and insert in CreateRaffle.
	createMu sync.Mutex
	// winnerMu serializes the spot count and update in MarkWinner.
	winnerMu sync.Mutex
}

// NewGateway returns a Gateway over store. feed, if not nil, receives the
// open raffle whenever one is created.
func NewGateway(store Store, feed *observable.Value[*Raffle]) *Gateway {
	return &Gateway{store: store, feed: feed, now: time.Now}
}

// GetActiveRaffle returns the open raffle, or nil when none is open.
func (g *Gateway) GetActiveRaffle(ctx context.Context) (*Raffle, error) {
	return findOpenRaffle(ctx, g.store)
}

// RefreshFeed loads the open raffle into the feed, e.g. at startup.
func (g *Gateway) RefreshFeed(ctx context.Context) error {
	if g.feed == nil {
		return nil
	}
	open, err := g.GetActiveRaffle(ctx)
	if err != nil {
		return err
	}
	g.feed.Set(open)
	return nil
}

// CreateRaffle opens a new raffle period. Only one raffle may be open at a time.
func (g *Gateway) CreateRaffle(ctx context.Context, period string, totalSpots int) (Raffle, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return Raffle{}, fmt.Errorf("%w: period is required", ErrInvalidRaffle)
	}
	if totalSpots < 1 {
		return Raffle{}, fmt.Errorf("%w: totalSpots must be at least 1", ErrInvalidRaffle)
	}

	g.createMu.Lock()
	defer g.createMu.Unlock()

	open, err := findOpenRaffle(ctx, g.store)
	if err != nil {
		return Raffle{}, err
	}
	if open != nil {
		return Raffle{}, fmt.Errorf("%w: %s is still open", ErrRaffleAlreadyOpen, open.Period)
	}

	created, err := g.store.CreateRaffle(ctx, Raffle{
		Period:     period,
		TotalSpots: totalSpots,
		Status:     StatusOpen,
	})
	if err != nil {
		return Raffle{}, err
	}

	if g.feed != nil {
		snapshot := created
		g.feed.Set(&snapshot)
	}
	logger.Infof("raffle %s opened for %s with %d spots", created.ID, created.Period, created.TotalSpots)
	return created, nil
}

// RegisterResident records userID's entry into raffleID. It does not check for
// an existing registration; Register does.
func (g *Gateway) RegisterResident(ctx context.Context, userID, raffleID string) (Registration, error) {
	return g.store.CreateRegistration(ctx, Registration{
		UserID:           userID,
		RaffleID:         raffleID,
		RegistrationDate: NewTimestamp(g.now()),
		IsWinner:         false,
	})
}

// CheckRegistration reports whether userID is already registered for raffleID.
func (g *Gateway) CheckRegistration(ctx context.Context, userID, raffleID string) (bool, error) {
	regs, err := g.store.FindRegistrations(ctx, RegistrationFilter{UserID: userID, RaffleID: raffleID})
	if err != nil {
		return false, err
	}
	return len(regs) > 0, nil
}

// GetRegistrationHistory lists userID's registrations with their raffles, newest first.
func (g *Gateway) GetRegistrationHistory(ctx context.Context, userID string) ([]Registration, error) {
	return g.store.FindRegistrations(ctx, RegistrationFilter{
		UserID:       userID,
		ExpandRaffle: true,
		NewestFirst:  true,
	})
}

// Register enters userID into the open raffle, at most once.
func (g *Gateway) Register(ctx context.Context, userID string) (Registration, error) {
	open, err := g.GetActiveRaffle(ctx)
	if err != nil {
		return Registration{}, err
	}
	if open == nil {
		return Registration{}, ErrNoOpenRaffle
	}

	registered, err := g.CheckRegistration(ctx, userID, open.ID)
	if err != nil {
		return Registration{}, err
	}
	if registered {
		return Registration{}, ErrAlreadyRegistered
	}

	reg, err := g.RegisterResident(ctx, userID, open.ID)
	if err != nil {
		return Registration{}, err
	}
	logger.Infof("user %s registered for raffle %s", userID, open.ID)
	return reg, nil
}

// Portal is what a resident sees on load.
type Portal struct {
	ActiveRaffle *Raffle        `json:"activeRaffle"`
	IsRegistered bool           `json:"isRegistered"`
	History      []Registration `json:"history"`
}

// PortalStatus gathers the active raffle, the user's registration state and history.
func (g *Gateway) PortalStatus(ctx context.Context, userID string) (Portal, error) {
	history, err := g.GetRegistrationHistory(ctx, userID)
	if err != nil {
		return Portal{}, err
	}
	if history == nil {
		history = []Registration{}
	}

	open, err := g.GetActiveRaffle(ctx)
	if err != nil {
		return Portal{}, err
	}

	portal := Portal{ActiveRaffle: open, History: history}
	if open != nil {
		if portal.IsRegistered, err = g.CheckRegistration(ctx, userID, open.ID); err != nil {
			return Portal{}, err
		}
	}
	return portal, nil
}

// --- Admin maintenance ---

// ListRaffles returns raffles matching filter.
func (g *Gateway) ListRaffles(ctx context.Context, filter RaffleFilter) ([]Raffle, error) {
	return g.store.FindRaffles(ctx, filter)
}

// ListRegistrations returns registrations matching filter.
func (g *Gateway) ListRegistrations(ctx context.Context, filter RegistrationFilter) ([]Registration, error) {
	return g.store.FindRegistrations(ctx, filter)
}

// SetRaffleStatus moves a raffle along its lifecycle. Closing an open raffle
// is reserved for execution, so OPEN is never a valid source state here.
func (g *Gateway) SetRaffleStatus(ctx context.Context, id string, to Status) (Raffle, error) {
	if !to.Valid() {
		return Raffle{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRaffle, to)
	}

	raffles, err := g.store.FindRaffles(ctx, RaffleFilter{ID: id})
	if err != nil {
		return Raffle{}, err
	}
	if len(raffles) == 0 {
		return Raffle{}, fmt.Errorf("raffle %s: %w", id, ErrNotFound)
	}
	current := raffles[0]

	if current.Status == StatusOpen {
		return Raffle{}, fmt.Errorf("%w: open raffles are closed by execution", ErrInvalidTransition)
	}
	if !canTransition(current.Status, to) {
		return Raffle{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	updated, err := g.store.PatchRaffle(ctx, id, RafflePatch{Status: to})
	if err != nil {
		return Raffle{}, err
	}
	logger.Infof("raffle %s moved from %s to %s", id, current.Status, to)
	return updated, nil
}

// MarkWinner flags a single registration as a winner after the fact, for a
// raffle that has already been executed. Open raffles get their winners from
// execution only, and a raffle never gets more winners than spots.
func (g *Gateway) MarkWinner(ctx context.Context, id string) (Registration, error) {
	g.winnerMu.Lock()
	defer g.winnerMu.Unlock()

	regs, err := g.store.FindRegistrations(ctx, RegistrationFilter{ID: id})
	if err != nil {
		return Registration{}, err
	}
	if len(regs) == 0 {
		return Registration{}, fmt.Errorf("registration %s: %w", id, ErrNotFound)
	}
	reg := regs[0]
	if reg.IsWinner {
		return reg, nil
	}

	raffles, err := g.store.FindRaffles(ctx, RaffleFilter{ID: reg.RaffleID})
	if err != nil {
		return Registration{}, err
	}
	if len(raffles) == 0 {
		return Registration{}, fmt.Errorf("raffle %s: %w", reg.RaffleID, ErrNotFound)
	}
	parent := raffles[0]
	if parent.Status == StatusOpen {
		return Registration{}, fmt.Errorf("%w: winners of an open raffle are drawn by execution", ErrInvalidTransition)
	}

	entries, err := g.store.FindRegistrations(ctx, RegistrationFilter{RaffleID: parent.ID})
	if err != nil {
		return Registration{}, err
	}
	winners := 0
	for _, e := range entries {
		if e.IsWinner {
			winners++
		}
	}
	if winners >= parent.TotalSpots {
		return Registration{}, fmt.Errorf("%w: all %d spots of raffle %s are taken", ErrInvalidTransition, parent.TotalSpots, parent.ID)
	}

	updated, err := g.store.PatchRegistration(ctx, id, winnerPatch())
	if err != nil {
		return Registration{}, err
	}
	logger.Infof("registration %s marked as winner of raffle %s", id, parent.ID)
	return updated, nil
}
