package startup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/SlpAus/parking-raffle-backend/internal/access"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/config"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/database"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/metadata"
	"github.com/SlpAus/parking-raffle-backend/internal/raffle"
	"github.com/SlpAus/parking-raffle-backend/internal/user"
	"github.com/SlpAus/parking-raffle-backend/pkg/observable"
)

func TestInitializeApplication_Local(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "app.db")}, false)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	users := user.NewService(user.NewRepository(db))
	repo := raffle.NewRepository(db)
	feed := observable.New[*raffle.Raffle](nil)

	app := Application{
		DB:      db,
		Store:   config.StoreLocal,
		Users:   users,
		Gateway: raffle.NewGateway(repo, feed),
		Bootstrap: config.BootstrapConfig{
			AdminEmail:    "root@example.com",
			AdminPassword: "bootstrap-pw",
			AdminName:     "Root",
		},
	}
	if err := InitializeApplication(ctx, app); err != nil {
		t.Fatalf("InitializeApplication: %v", err)
	}

	admins, err := users.List(ctx, access.RoleAdmin)
	if err != nil || len(admins) != 1 {
		t.Fatalf("bootstrap admin: %+v, %v", admins, err)
	}
	if feed.Get() != nil {
		t.Error("feed should be empty without an open raffle")
	}
	if v, _ := metadata.GetValue(ctx, db, metadata.StoreDriverKey); v != "local" {
		t.Errorf("store driver metadata = %q", v)
	}

	open, err := repo.CreateRaffle(ctx, raffle.Raffle{Period: "2026-Q1", Status: raffle.StatusOpen, TotalSpots: 2})
	if err != nil {
		t.Fatalf("CreateRaffle: %v", err)
	}

	// A second start is idempotent and picks up the open raffle.
	if err := InitializeApplication(ctx, app); err != nil {
		t.Fatalf("second InitializeApplication: %v", err)
	}
	if got := feed.Get(); got == nil || got.ID != open.ID {
		t.Errorf("feed = %+v, want raffle %s", got, open.ID)
	}
}
