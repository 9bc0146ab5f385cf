package raffle

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memStore is an in-memory Store that counts partial updates.
type memStore struct {
	mu     sync.Mutex
	nextID int

	raffles []Raffle
	regs    []Registration

	rafflePatches       []RafflePatch
	registrationPatches []string

	failPatchRaffle       error
	failPatchRegistration error
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s%d", prefix, m.nextID)
}

func (m *memStore) patchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rafflePatches) + len(m.registrationPatches)
}

func (m *memStore) raffle(id string) Raffle {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.raffles {
		if r.ID == id {
			return r
		}
	}
	return Raffle{}
}

func (m *memStore) winners() []Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Registration
	for _, r := range m.regs {
		if r.IsWinner {
			out = append(out, r)
		}
	}
	return out
}

func (m *memStore) FindRaffles(_ context.Context, filter RaffleFilter) ([]Raffle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Raffle
	for _, r := range m.raffles {
		if filter.ID != "" && r.ID != filter.ID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) CreateRaffle(_ context.Context, r Raffle) (Raffle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id("raffle-")
	m.raffles = append(m.raffles, r)
	return r, nil
}

func (m *memStore) PatchRaffle(_ context.Context, id string, patch RafflePatch) (Raffle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rafflePatches = append(m.rafflePatches, patch)
	if m.failPatchRaffle != nil {
		return Raffle{}, m.failPatchRaffle
	}
	for i := range m.raffles {
		if m.raffles[i].ID == id {
			if patch.Status != "" {
				m.raffles[i].Status = patch.Status
			}
			return m.raffles[i], nil
		}
	}
	return Raffle{}, ErrNotFound
}

func (m *memStore) FindRegistrations(_ context.Context, filter RegistrationFilter) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Registration
	for _, r := range m.regs {
		if filter.ID != "" && r.ID != filter.ID {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.RaffleID != "" && r.RaffleID != filter.RaffleID {
			continue
		}
		if filter.ExpandRaffle {
			for _, parent := range m.raffles {
				if parent.ID == r.RaffleID {
					p := parent
					r.Raffle = &p
				}
			}
		}
		out = append(out, r)
	}
	if filter.NewestFirst {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].RegistrationDate.After(out[j].RegistrationDate.Time)
		})
	}
	return out, nil
}

func (m *memStore) CreateRegistration(_ context.Context, reg Registration) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg.ID = m.id("reg-")
	reg.Raffle = nil
	m.regs = append(m.regs, reg)
	return reg, nil
}

func (m *memStore) PatchRegistration(_ context.Context, id string, patch RegistrationPatch) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrationPatches = append(m.registrationPatches, id)
	if m.failPatchRegistration != nil {
		return Registration{}, m.failPatchRegistration
	}
	for i := range m.regs {
		if m.regs[i].ID == id {
			if patch.IsWinner != nil {
				m.regs[i].IsWinner = *patch.IsWinner
			}
			return m.regs[i], nil
		}
	}
	return Registration{}, ErrNotFound
}

// seed adds an open raffle with n registrations from users u1..un.
func (m *memStore) seed(totalSpots, n int) Raffle {
	r, _ := m.CreateRaffle(context.Background(), Raffle{Period: "2026-Q1", Status: StatusOpen, TotalSpots: totalSpots})
	for i := 1; i <= n; i++ {
		_, _ = m.CreateRegistration(context.Background(), Registration{
			UserID:   fmt.Sprintf("u%d", i),
			RaffleID: r.ID,
		})
	}
	return r
}
