package user

import (
	"time"

	"github.com/SlpAus/parking-raffle-backend/internal/access"
)

// User is an account in the directory. The password is only ever stored as a bcrypt hash.
type User struct {
	ID           string      `gorm:"primarykey;type:varchar(36)" json:"id"`
	Email        string      `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Name         string      `gorm:"type:varchar(128);not null" json:"name"`
	Role         access.Role `gorm:"type:varchar(16);not null;index" json:"role"`
	Unit         string      `gorm:"type:varchar(64)" json:"unit,omitempty"`
	PasswordHash string      `gorm:"type:varchar(72);not null" json:"-"`
	CreatedAt    time.Time   `json:"-"`
	UpdatedAt    time.Time   `json:"-"`
}

// Snapshot is the part of a User carried in a session.
type Snapshot struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  access.Role `json:"role"`
	Unit  string      `json:"unit,omitempty"`
}

// Snapshot copies the session-visible fields of u.
func (u User) Snapshot() Snapshot {
	return Snapshot{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Unit: u.Unit}
}

// CreateInput is the body of POST /users.
type CreateInput struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     access.Role `json:"role"`
	Unit     string      `json:"unit"`
	Password string      `json:"password"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Email    *string      `json:"email"`
	Name     *string      `json:"name"`
	Role     *access.Role `json:"role"`
	Unit     *string      `json:"unit"`
	Password *string      `json:"password"`
}
