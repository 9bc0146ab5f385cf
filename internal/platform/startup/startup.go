package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/parking-raffle-backend/internal/platform/config"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/metadata"
	"github.com/SlpAus/parking-raffle-backend/internal/raffle"
	"github.com/SlpAus/parking-raffle-backend/internal/user"
	"github.com/google/logger"
	"gorm.io/gorm"
)

// Application is what InitializeApplication prepares before the server starts.
type Application struct {
	DB        *gorm.DB
	Store     config.StoreDriver
	Users     *user.Service
	Gateway   *raffle.Gateway
	Bootstrap config.BootstrapConfig
}

// InitializeApplication migrates schemas, seeds the bootstrap admin and
// loads the open raffle into the state feed.
func InitializeApplication(ctx context.Context, app Application) error {
	logger.Info("initializing application...")

	// 1. Schemas. Raffle tables only exist when raffles are stored locally.
	if err := metadata.MigrateDB(app.DB); err != nil {
		return err
	}
	if err := user.MigrateDB(app.DB); err != nil {
		return err
	}
	if app.Store == config.StoreLocal {
		if err := raffle.MigrateDB(app.DB); err != nil {
			return err
		}
	}

	// 2. Warn when the raffle store moved since the last start
	previous, err := metadata.GetValue(ctx, app.DB, metadata.StoreDriverKey)
	if err != nil {
		return fmt.Errorf("cannot read metadata: %w", err)
	}
	if previous != "" && previous != string(app.Store) {
		logger.Warningf("raffle store changed from %s to %s: existing raffles are not migrated", previous, app.Store)
	}

	// 3. Bootstrap admin
	if err := user.SeedAdmin(ctx, app.Users, app.Bootstrap); err != nil {
		return err
	}

	// 4. Current open raffle
	if err := app.Gateway.RefreshFeed(ctx); err != nil {
		return fmt.Errorf("cannot load the open raffle: %w", err)
	}

	// 5. Remember this start
	if err := metadata.SetValue(ctx, app.DB, metadata.StoreDriverKey, string(app.Store)); err != nil {
		return fmt.Errorf("cannot write metadata: %w", err)
	}
	if err := metadata.SetValue(ctx, app.DB, metadata.InitializedAtKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("cannot write metadata: %w", err)
	}

	logger.Info("application initialized")
	return nil
}

// HandleRedisRecovery runs after the health checker sees Redis come back
// with a new run_id. Sessions live only in Redis, so everyone must log in again.
func HandleRedisRecovery() {
	logger.Warning("redis restarted: all sessions were lost, users must log in again")
}
