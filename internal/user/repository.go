package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/SlpAus/parking-raffle-backend/internal/access"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists users with gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns all users, or only those with role when it is set.
func (r *Repository) List(ctx context.Context, role access.Role) ([]User, error) {
	q := r.db.WithContext(ctx).Model(&User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []User
	if err := q.Order("email asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return users, nil
}

func (r *Repository) first(ctx context.Context, query string, arg any) (User, error) {
	var u User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// Get looks a user up by ID.
func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByEmail looks a user up by normalized email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.first(ctx, "email = ?", email)
}

// Create inserts u, assigning a UUID v7 when ID is empty.
func (r *Repository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("cannot generate UUID v7: %w", err)
		}
		u.ID = id.String()
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update applies column updates to the user with id and returns the new row.
func (r *Repository) Update(ctx context.Context, id string, updates map[string]any) (User, error) {
	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&User{ID: id}).Updates(updates)
		if res.Error != nil {
			if database.IsDuplicateKeyError(res.Error) {
				return User{}, ErrEmailTaken
			}
			return User{}, fmt.Errorf("update user %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return User{}, ErrNotFound
		}
	}
	return r.Get(ctx, id)
}

// Delete removes the user with id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&User{ID: id})
	if res.Error != nil {
		return fmt.Errorf("delete user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
