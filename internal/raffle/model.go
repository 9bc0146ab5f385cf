package raffle

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Status is the lifecycle state of a Raffle.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusClosed    Status = "CLOSED"
	StatusCompleted Status = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusCompleted:
		return true
	}
	return false
}

// canTransition encodes the one-way lifecycle: nothing ever returns to OPEN.
func canTransition(from, to Status) bool {
	switch from {
	case StatusOpen:
		return to == StatusClosed || to == StatusCompleted
	case StatusClosed:
		return to == StatusCompleted
	}
	return false
}

// Raffle is one lottery period with a fixed number of parking spots.
type Raffle struct {
	ID         string    `gorm:"primarykey;type:varchar(36)" json:"id,omitempty"`
	Period     string    `gorm:"type:varchar(128);not null" json:"period"`
	Status     Status    `gorm:"type:varchar(16);not null;index" json:"status"`
	TotalSpots int       `gorm:"not null" json:"totalSpots"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// Registration is a resident's entry into a raffle. Only IsWinner ever changes.
type Registration struct {
	ID               string    `gorm:"primarykey;type:varchar(36)" json:"id,omitempty"`
	UserID           string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_registration_user_raffle" json:"userId"`
	RaffleID         string    `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_registration_user_raffle" json:"raffleId"`
	RegistrationDate Timestamp `gorm:"not null;index" json:"registrationDate"`
	IsWinner         bool      `gorm:"not null;default:false" json:"isWinner"`

	// Raffle is filled only when the parent raffle is expanded.
	Raffle *Raffle `gorm:"foreignKey:RaffleID" json:"raffle,omitempty"`
}

// RafflePatch is a partial update of a Raffle.
type RafflePatch struct {
	Status Status `json:"status,omitempty"`
}

// RegistrationPatch is a partial update of a Registration.
type RegistrationPatch struct {
	IsWinner *bool `json:"isWinner,omitempty"`
}

// --- Timestamp ---

// isoLayout matches JavaScript's Date.prototype.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is a UTC instant serialized as an ISO-8601 string.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to milliseconds in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

func (t Timestamp) String() string {
	return t.UTC().Format(isoLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts full RFC 3339 timestamps and bare dates.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := parseISO(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func parseISO(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
}

func (t Timestamp) Value() (driver.Value, error) {
	return t.UTC(), nil
}

func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.scanString(v)
	case []byte:
		return t.scanString(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into Timestamp", src)
}

func (t *Timestamp) scanString(s string) error {
	for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	parsed, err := parseISO(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// GormDBDataType picks a timezone-aware column type per dialect.
func (Timestamp) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "timestamptz"
	default:
		return "datetime"
	}
}
