package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/SlpAus/parking-raffle-backend/api"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/config"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/database"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/health"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/shutdown"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/startup"
	"github.com/SlpAus/parking-raffle-backend/internal/raffle"
	"github.com/SlpAus/parking-raffle-backend/internal/user"
	"github.com/SlpAus/parking-raffle-backend/pkg/lifecycle"
	"github.com/SlpAus/parking-raffle-backend/pkg/observable"
	"github.com/SlpAus/parking-raffle-backend/pkg/token"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

func main() {
	defer logger.Init("parking-raffle", true, false, io.Discard).Close()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("cannot load config: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)

	// 1. Connections
	db, err := database.InitDB(cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		logger.Fatalf("cannot open database: %v", err)
	}
	rdb, err := database.InitRedis(cfg.Database.Redis)
	if err != nil {
		logger.Fatalf("cannot connect to redis: %v", err)
	}

	// 2. Raffle store: local tables or an external REST API
	var store raffle.Store
	switch cfg.Store.Driver {
	case config.StoreLocal:
		store = raffle.NewRepository(db)
	case config.StoreRemote:
		if cfg.Store.Remote.BaseURL == "" {
			logger.Fatal("store.remote.baseURL is required for the remote store")
		}
		store = raffle.NewRemoteStore(cfg.Store.Remote.BaseURL, cfg.Store.Remote.Timeout)
		logger.Infof("raffles are stored at %s", cfg.Store.Remote.BaseURL)
	default:
		logger.Fatalf("unknown store driver %q", cfg.Store.Driver)
	}

	feed := observable.New[*raffle.Raffle](nil)
	gateway := raffle.NewGateway(store, feed)
	orchestrator := raffle.NewOrchestrator(store, feed)

	// 3. Users and sessions
	signer, err := token.NewSigner([]byte(cfg.Session.Secret))
	if err != nil {
		logger.Fatalf("cannot create session signer: %v", err)
	}
	if cfg.Session.Secret == "" {
		logger.Warning("session.secret is empty: using a random key, sessions end on restart")
	}
	sessions := user.NewSessionStore(rdb, signer, cfg.Session.TTL)
	users := user.NewService(user.NewRepository(db))
	limiter := user.NewLoginLimiter(rdb, cfg.Session.LoginMaxFailures, cfg.Session.LoginFailureWindow)
	cookie := user.CookieSettings{Name: cfg.Session.CookieName, Secure: cfg.Session.Secure}

	// 4. Schema, bootstrap admin, open raffle
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = startup.InitializeApplication(initCtx, startup.Application{
		DB:        db,
		Store:     cfg.Store.Driver,
		Users:     users,
		Gateway:   gateway,
		Bootstrap: cfg.Bootstrap,
	})
	cancel()
	if err != nil {
		logger.Fatalf("application initialization failed: %v", err)
	}

	// 5. Background services
	gracefulManager := lifecycle.NewManager("graceful")
	forcefulManager := lifecycle.NewManager("forceful")

	checker := health.NewChecker(rdb, db)
	checker.OnRestart = startup.HandleRedisRecovery
	if err := checker.InitializeRunID(context.Background()); err != nil {
		logger.Warningf("redis restart detection disabled: %v", err)
	}
	checker.PerformCheck(context.Background())

	if err := gracefulManager.Go("redis-health-checker", checker.Run); err != nil {
		logger.Fatalf("cannot start health checker: %v", err)
	}
	if interval := cfg.Store.FeedSyncInterval; interval > 0 {
		if err := gracefulManager.Go("raffle-feed-sync", raffle.NewFeedSyncer(gateway, interval).Run); err != nil {
			logger.Fatalf("cannot start feed sync: %v", err)
		}
	}

	// 6. HTTP
	router := api.NewRouter(api.Dependencies{
		Server:   cfg.Server,
		Cookie:   cookie,
		Sessions: sessions,
		Users:    user.NewHandler(users, sessions, limiter, cookie),
		Raffles:  raffle.NewHandler(gateway, orchestrator, feed),
		Health:   checker,
	})
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	coordinator := shutdown.NewCoordinator(gracefulManager, forcefulManager)
	coordinator.AddFinalizer("database", func() error { return database.Close(db) })
	coordinator.AddFinalizer("redis", rdb.Close)

	go func() {
		logger.Infof("listening on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server: %v", err)
			os.Exit(1)
		}
	}()

	coordinator.ListenForSignalsAndShutdown(server)
}
