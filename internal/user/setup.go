package user

import (
	"context"
	"fmt"

	"github.com/SlpAus/parking-raffle-backend/internal/platform/config"
	"github.com/google/logger"
	"gorm.io/gorm"
)

// MigrateDB creates or updates the users table.
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("cannot migrate users table: %w", err)
	}
	logger.Info("users table migrated")
	return nil
}

// SeedAdmin makes sure the configured bootstrap admin exists. It does
// nothing when no admin email is configured.
func SeedAdmin(ctx context.Context, svc *Service, cfg config.BootstrapConfig) error {
	if cfg.AdminEmail == "" {
		logger.Info("no bootstrap admin configured")
		return nil
	}
	created, err := svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName)
	if err != nil {
		return err
	}
	if created {
		logger.Infof("bootstrap admin %s created", cfg.AdminEmail)
	}
	return nil
}
