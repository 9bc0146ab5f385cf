package raffle

import (
	"context"
	"errors"
	"fmt"

	"github.com/SlpAus/parking-raffle-backend/internal/platform/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the database-backed Store.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("cannot generate UUID v7: %w", err)
	}
	return id.String(), nil
}

// --- Raffles ---

func (r *Repository) FindRaffles(ctx context.Context, filter RaffleFilter) ([]Raffle, error) {
	q := r.db.WithContext(ctx).Model(&Raffle{})
	if filter.ID != "" {
		q = q.Where("id = ?", filter.ID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var raffles []Raffle
	if err := q.Order("created_at asc").Order("id asc").Find(&raffles).Error; err != nil {
		return nil, fmt.Errorf("query raffles: %w", err)
	}
	return raffles, nil
}

func (r *Repository) CreateRaffle(ctx context.Context, raffle Raffle) (Raffle, error) {
	if raffle.ID == "" {
		id, err := newID()
		if err != nil {
			return Raffle{}, err
		}
		raffle.ID = id
	}
	if err := r.db.WithContext(ctx).Create(&raffle).Error; err != nil {
		return Raffle{}, fmt.Errorf("insert raffle: %w", err)
	}
	return raffle, nil
}

func (r *Repository) PatchRaffle(ctx context.Context, id string, patch RafflePatch) (Raffle, error) {
	db := r.db.WithContext(ctx)
	if patch.Status != "" {
		res := db.Model(&Raffle{ID: id}).Update("status", patch.Status)
		if res.Error != nil {
			return Raffle{}, fmt.Errorf("update raffle %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return Raffle{}, fmt.Errorf("raffle %s: %w", id, ErrNotFound)
		}
	}

	var raffle Raffle
	if err := db.First(&raffle, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Raffle{}, fmt.Errorf("raffle %s: %w", id, ErrNotFound)
		}
		return Raffle{}, fmt.Errorf("reload raffle %s: %w", id, err)
	}
	return raffle, nil
}

// CloseOpenRaffle moves raffle id from OPEN to CLOSED. It fails with
// ErrNoOpenRaffle when the raffle is no longer OPEN, so of two executions
// racing on the same raffle only one can close it.
func (r *Repository) CloseOpenRaffle(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&Raffle{}).
		Where("id = ? AND status = ?", id, StatusOpen).
		Update("status", StatusClosed)
	if res.Error != nil {
		return fmt.Errorf("close raffle %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("raffle %s: %w", id, ErrNoOpenRaffle)
	}
	return nil
}

// --- Registrations ---

func (r *Repository) FindRegistrations(ctx context.Context, filter RegistrationFilter) ([]Registration, error) {
	q := r.db.WithContext(ctx).Model(&Registration{})
	if filter.ID != "" {
		q = q.Where("id = ?", filter.ID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.RaffleID != "" {
		q = q.Where("raffle_id = ?", filter.RaffleID)
	}
	if filter.ExpandRaffle {
		q = q.Preload("Raffle")
	}
	if filter.NewestFirst {
		q = q.Order("registration_date desc").Order("id desc")
	} else {
		q = q.Order("registration_date asc").Order("id asc")
	}

	var regs []Registration
	if err := q.Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	return regs, nil
}

// CreateRegistration relies on the (user_id, raffle_id) unique index to reject
// duplicates that slip past the pre-check.
func (r *Repository) CreateRegistration(ctx context.Context, reg Registration) (Registration, error) {
	if reg.ID == "" {
		id, err := newID()
		if err != nil {
			return Registration{}, err
		}
		reg.ID = id
	}
	reg.Raffle = nil

	if err := r.db.WithContext(ctx).Create(&reg).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return Registration{}, ErrAlreadyRegistered
		}
		return Registration{}, fmt.Errorf("insert registration: %w", err)
	}
	return reg, nil
}

func (r *Repository) PatchRegistration(ctx context.Context, id string, patch RegistrationPatch) (Registration, error) {
	db := r.db.WithContext(ctx)
	if patch.IsWinner != nil {
		res := db.Model(&Registration{ID: id}).Update("is_winner", *patch.IsWinner)
		if res.Error != nil {
			return Registration{}, fmt.Errorf("update registration %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return Registration{}, fmt.Errorf("registration %s: %w", id, ErrNotFound)
		}
	}

	var reg Registration
	if err := db.First(&reg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Registration{}, fmt.Errorf("registration %s: %w", id, ErrNotFound)
		}
		return Registration{}, fmt.Errorf("reload registration %s: %w", id, err)
	}
	return reg, nil
}

// WithinTx runs fn against a Repository bound to one database transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}
