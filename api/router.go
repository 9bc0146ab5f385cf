package api

import (
	"net/http"
	"time"

	"github.com/SlpAus/parking-raffle-backend/internal/platform/config"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/health"
	"github.com/SlpAus/parking-raffle-backend/internal/raffle"
	"github.com/SlpAus/parking-raffle-backend/internal/user"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies are the handlers and services the router mounts.
type Dependencies struct {
	Server   config.ServerConfig
	Cookie   user.CookieSettings
	Sessions *user.SessionStore
	Users    *user.Handler
	Raffles  *raffle.Handler
	Health   *health.Checker
}

// NewRouter builds the gin engine with CORS, session hydration and every /api route.
func NewRouter(d Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(user.SessionMiddleware(d.Sessions, d.Cookie))

	SetupRoutes(r, d)
	return r
}

// SetupRoutes registers all API routes on router.
func SetupRoutes(router *gin.Engine, d Dependencies) {
	api := router.Group("/api")
	{
		api.GET("/health", healthHandler(d.Health))

		user.RegisterRoutes(api, d.Users)
		raffle.RegisterRoutes(api, d.Raffles)
	}
}

func healthHandler(checker *health.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.Snapshot(c.Request.Context())
		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
