package metadata

import "time"

// Metadata is one key-value row describing the deployment itself.
type Metadata struct {
	Key       string `gorm:"primarykey;type:varchar(255)"`
	Value     string `gorm:"type:varchar(255)"`
	UpdatedAt time.Time
}
