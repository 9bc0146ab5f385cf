package user

import (
	"errors"
	"net/http"

	"github.com/SlpAus/parking-raffle-backend/internal/access"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

// Handler serves authentication and the admin user directory.
type Handler struct {
	service  *Service
	sessions *SessionStore
	limiter  *LoginLimiter
	cookie   CookieSettings
}

// NewHandler wires the HTTP layer to its services. limiter may be nil.
func NewHandler(service *Service, sessions *SessionStore, limiter *LoginLimiter, cookie CookieSettings) *Handler {
	return &Handler{service: service, sessions: sessions, limiter: limiter, cookie: cookie}
}

func writeError(c *gin.Context, err error) {
	code, status := Classify(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var body loginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY", "message": err.Error()})
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()
	allowed, err := h.limiter.Allow(ctx, ip)
	if err != nil {
		// Fail open: a Redis outage must not lock admins out.
		logger.Warningf("login limiter: %v", err)
		allowed = true
	}
	if !allowed {
		writeError(c, ErrTooManyAttempts)
		return
	}

	u, err := h.service.Login(ctx, body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			if err := h.limiter.RecordFailure(ctx, ip); err != nil {
				logger.Warningf("login limiter: %v", err)
			}
		}
		writeError(c, err)
		return
	}
	if err := h.limiter.Reset(ctx, ip); err != nil {
		logger.Warningf("login limiter: %v", err)
	}

	value, sess, err := h.sessions.Create(ctx, u)
	if err != nil {
		writeError(c, err)
		return
	}
	h.cookie.set(c, value, int(h.sessions.TTL().Seconds()))

	logger.Infof("user %s logged in", u.ID)
	c.JSON(http.StatusOK, gin.H{
		"user":       sess.User,
		"expiresAt":  sess.ExpiresAt,
		"redirectTo": access.HomeRoute(u.Role),
	})
}

// Logout handles POST /auth/logout. It succeeds without a session too.
func (h *Handler) Logout(c *gin.Context) {
	if value, err := c.Cookie(h.cookie.Name); err == nil && value != "" {
		if err := h.sessions.Delete(c.Request.Context(), value); err != nil {
			writeError(c, err)
			return
		}
	}
	h.cookie.clear(c)
	c.JSON(http.StatusOK, gin.H{"redirectTo": access.LoginRoute})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	sess := CurrentSession(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHENTICATED", "redirectTo": access.LoginRoute})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": sess.User, "expiresAt": sess.ExpiresAt})
}

// --- Directory ---

// ListUsers handles GET /users[?role=].
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.List(c.Request.Context(), access.Role(c.Query("role")))
	if err != nil {
		writeError(c, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	c.JSON(http.StatusOK, users)
}

// GetUser handles GET /users/:id.
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(c *gin.Context) {
	var body CreateInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY", "message": err.Error()})
		return
	}
	u, err := h.service.Create(c.Request.Context(), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// PatchUser handles PATCH /users/:id. A role change ends the user's sessions.
func (h *Handler) PatchUser(c *gin.Context) {
	var body Patch
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY", "message": err.Error()})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	before, err := h.service.Get(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	u, err := h.service.Update(ctx, id, body)
	if err != nil {
		writeError(c, err)
		return
	}

	if u.Role != before.Role {
		if err := h.sessions.RevokeUser(ctx, id); err != nil {
			logger.Warningf("user %s: %v", id, err)
		}
	}
	c.JSON(http.StatusOK, u)
}

// DeleteUser handles DELETE /users/:id. Admins cannot delete themselves.
func (h *Handler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if p := access.CurrentPrincipal(c); p != nil && p.ID == id {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidUser.Error(), "message": "cannot delete your own account"})
		return
	}

	ctx := c.Request.Context()
	if err := h.service.Delete(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	if err := h.sessions.RevokeUser(ctx, id); err != nil {
		logger.Warningf("user %s: %v", id, err)
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes mounts /auth and /users on rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handler) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", access.RequireAuthenticated(), h.Me)
	}

	users := rg.Group("/users", access.RequireRole(access.RoleAdmin))
	{
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.POST("", h.CreateUser)
		users.PATCH("/:id", h.PatchUser)
		users.DELETE("/:id", h.DeleteUser)
	}
}
