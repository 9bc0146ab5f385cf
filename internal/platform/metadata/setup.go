package metadata

import (
	"fmt"

	"github.com/google/logger"
	"gorm.io/gorm"
)

// MigrateDB creates or updates the metadata table.
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&Metadata{}); err != nil {
		return fmt.Errorf("cannot migrate metadata table: %w", err)
	}
	logger.Info("metadata table migrated")
	return nil
}
