package raffle

import (
	"fmt"

	"github.com/google/logger"
	"gorm.io/gorm"
)

// MigrateDB creates or updates the raffle and registration tables.
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&Raffle{}, &Registration{}); err != nil {
		return fmt.Errorf("cannot migrate raffle tables: %w", err)
	}
	logger.Info("raffle tables migrated")
	return nil
}
