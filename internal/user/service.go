package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/SlpAus/parking-raffle-backend/internal/access"
	"github.com/google/logger"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// hashCost is lowered in tests.
var hashCost = bcrypt.DefaultCost

// Service implements login and the admin user directory.
type Service struct {
	repo *Repository
}

// NewService returns a Service over repo.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidUser, email)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidUser, minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password is too long", ErrInvalidUser)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks email and password. Unknown emails and wrong passwords both
// yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// List returns users, optionally only those with role.
func (s *Service) List(ctx context.Context, role access.Role) ([]User, error) {
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}
	return s.repo.List(ctx, role)
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create validates in and stores a new user with a hashed password.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	u := User{
		Email: normalizeEmail(in.Email),
		Name:  strings.TrimSpace(in.Name),
		Role:  in.Role,
		Unit:  strings.TrimSpace(in.Unit),
	}
	if u.Role == "" {
		u.Role = access.RoleResident
	}

	if err := validateEmail(u.Email); err != nil {
		return User{}, err
	}
	if u.Name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if !u.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = hash

	if err := s.repo.Create(ctx, &u); err != nil {
		return User{}, err
	}
	logger.Infof("user %s (%s) created with role %s", u.ID, u.Email, u.Role)
	return u, nil
}

// Update applies patch to the user with id.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (User, error) {
	updates := map[string]any{}

	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if err := validateEmail(email); err != nil {
			return User{}, err
		}
		updates["email"] = email
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: name is required", ErrInvalidUser)
		}
		updates["name"] = name
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, *patch.Role)
		}
		updates["role"] = *patch.Role
	}
	if patch.Unit != nil {
		updates["unit"] = strings.TrimSpace(*patch.Unit)
	}
	if patch.Password != nil {
		hash, err := hashPassword(*patch.Password)
		if err != nil {
			return User{}, err
		}
		updates["password_hash"] = hash
	}

	return s.repo.Update(ctx, id, updates)
}

// Delete removes the user with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Infof("user %s deleted", id)
	return nil
}

// EnsureAdmin creates an admin account for email unless one already exists.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (bool, error) {
	_, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if _, err := s.Create(ctx, CreateInput{
		Email:    email,
		Name:     name,
		Role:     access.RoleAdmin,
		Password: password,
	}); err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	return true, nil
}
