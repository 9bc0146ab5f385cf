package raffle

import "context"

// RaffleFilter narrows a raffle query. Zero fields do not filter.
type RaffleFilter struct {
	ID     string
	Status Status
}

// RegistrationFilter narrows a registration query. Zero fields do not filter.
type RegistrationFilter struct {
	ID       string
	UserID   string
	RaffleID string
	// ExpandRaffle joins each registration with its parent raffle.
	ExpandRaffle bool
	// NewestFirst orders by registrationDate descending.
	NewestFirst bool
}

// Store is the raffle repository contract: filtered reads, creates and partial updates.
// Implementations are Repository (database) and RemoteStore (REST).
type Store interface {
	FindRaffles(ctx context.Context, filter RaffleFilter) ([]Raffle, error)
	CreateRaffle(ctx context.Context, r Raffle) (Raffle, error)
	PatchRaffle(ctx context.Context, id string, patch RafflePatch) (Raffle, error)

	FindRegistrations(ctx context.Context, filter RegistrationFilter) ([]Registration, error)
	CreateRegistration(ctx context.Context, reg Registration) (Registration, error)
	PatchRegistration(ctx context.Context, id string, patch RegistrationPatch) (Registration, error)
}

// Transactional is implemented by stores that can apply several writes atomically.
// fn receives a Store bound to the transaction; returning an error rolls it back.
type Transactional interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// openRaffleCloser is implemented by stores that can close a raffle only
// while it is still OPEN.
type openRaffleCloser interface {
	CloseOpenRaffle(ctx context.Context, id string) error
}

// findOpenRaffle returns the single OPEN raffle, or nil when there is none.
// More than one OPEN raffle is an invariant violation.
func findOpenRaffle(ctx context.Context, store Store) (*Raffle, error) {
	raffles, err := store.FindRaffles(ctx, RaffleFilter{Status: StatusOpen})
	if err != nil {
		return nil, err
	}
	switch len(raffles) {
	case 0:
		return nil, nil
	case 1:
		return &raffles[0], nil
	default:
		return nil, ErrMultipleOpenRaffles
	}
}
