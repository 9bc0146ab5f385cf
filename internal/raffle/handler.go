package raffle

import (
	"errors"
	"io"
	"net/http"

	"github.com/SlpAus/parking-raffle-backend/internal/access"
	"github.com/SlpAus/parking-raffle-backend/pkg/observable"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

// Handler exposes the raffle workflow and the raffle/registration resources over HTTP.
type Handler struct {
	gateway      *Gateway
	orchestrator *Orchestrator
	feed         *observable.Value[*Raffle]
}

// NewHandler wires the HTTP layer to its services. feed may be nil, in
// which case the event stream is unavailable.
func NewHandler(gateway *Gateway, orchestrator *Orchestrator, feed *observable.Value[*Raffle]) *Handler {
	return &Handler{gateway: gateway, orchestrator: orchestrator, feed: feed}
}

// writeError maps err onto the {error, message} body.
func writeError(c *gin.Context, err error) {
	code, status := Classify(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code, "message": message})
}

// --- Raffles ---

// ListRaffles handles GET /raffles[?status=].
func (h *Handler) ListRaffles(c *gin.Context) {
	filter := RaffleFilter{ID: c.Query("id"), Status: Status(c.Query("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		badRequest(c, "INVALID_QUERY", "unknown status "+string(filter.Status))
		return
	}

	raffles, err := h.gateway.ListRaffles(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if raffles == nil {
		raffles = []Raffle{}
	}
	c.JSON(http.StatusOK, raffles)
}

type createRaffleRequest struct {
	Period     string `json:"period"`
	TotalSpots int    `json:"totalSpots"`
	Status     Status `json:"status"`
}

// CreateRaffle handles POST /raffles.
func (h *Handler) CreateRaffle(c *gin.Context) {
	var body createRaffleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "INVALID_BODY", err.Error())
		return
	}
	if body.Status != "" && body.Status != StatusOpen {
		badRequest(c, ErrInvalidRaffle.Error(), "new raffles are always OPEN")
		return
	}

	created, err := h.gateway.CreateRaffle(c.Request.Context(), body.Period, body.TotalSpots)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// PatchRaffle handles PATCH /raffles/:id with a {status} body.
func (h *Handler) PatchRaffle(c *gin.Context) {
	var body RafflePatch
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "INVALID_BODY", err.Error())
		return
	}
	if body.Status == "" {
		badRequest(c, "INVALID_BODY", "status is required")
		return
	}

	updated, err := h.gateway.SetRaffleStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GetActiveRaffle handles GET /raffles/active.
func (h *Handler) GetActiveRaffle(c *gin.Context) {
	open, err := h.gateway.GetActiveRaffle(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeRaffle": open})
}

// StreamActiveRaffle handles GET /raffles/active/events. It sends the current
// open raffle and then every change as server-sent events.
func (h *Handler) StreamActiveRaffle(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "UNAVAILABLE", "message": "raffle feed is disabled"})
		return
	}

	updates, stop := h.feed.Watch()
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case open := <-updates:
			c.SSEvent("raffle", gin.H{"activeRaffle": open})
			return true
		}
	})
}

// ExecuteRaffle handles POST /raffles/execute.
func (h *Handler) ExecuteRaffle(c *gin.Context) {
	result, err := h.orchestrator.ExecuteRaffle(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Registrations ---

// ListRegistrations handles GET /registrations with json-server style
// filters. Residents only ever see their own registrations.
func (h *Handler) ListRegistrations(c *gin.Context) {
	filter, err := registrationFilterFromQuery(c)
	if err != nil {
		badRequest(c, "INVALID_QUERY", err.Error())
		return
	}
	if p := access.CurrentPrincipal(c); p != nil && p.Role != access.RoleAdmin {
		filter.UserID = p.ID
	}

	regs, err := h.gateway.ListRegistrations(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if regs == nil {
		regs = []Registration{}
	}
	c.JSON(http.StatusOK, regs)
}

func registrationFilterFromQuery(c *gin.Context) (RegistrationFilter, error) {
	filter := RegistrationFilter{
		ID:       c.Query("id"),
		UserID:   c.Query("userId"),
		RaffleID: c.Query("raffleId"),
	}

	switch c.Query("_expand") {
	case "":
	case "raffle":
		filter.ExpandRaffle = true
	default:
		return filter, errors.New("only _expand=raffle is supported")
	}

	switch c.Query("_sort") {
	case "":
	case "registrationDate":
		switch c.DefaultQuery("_order", "asc") {
		case "asc":
		case "desc":
			filter.NewestFirst = true
		default:
			return filter, errors.New("_order must be asc or desc")
		}
	default:
		return filter, errors.New("only _sort=registrationDate is supported")
	}
	return filter, nil
}

type createRegistrationRequest struct {
	UserID   string `json:"userId"`
	RaffleID string `json:"raffleId"`
	IsWinner bool   `json:"isWinner"`
}

// CreateRegistration handles POST /registrations. The entry always goes
// into the open raffle, once per user, and never starts as a winner.
func (h *Handler) CreateRegistration(c *gin.Context) {
	var body createRegistrationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "INVALID_BODY", err.Error())
		return
	}
	if body.IsWinner {
		badRequest(c, "INVALID_BODY", "isWinner is set by raffle execution")
		return
	}

	p := access.CurrentPrincipal(c)
	if p != nil && p.Role != access.RoleAdmin {
		body.UserID = p.ID
	}
	if body.UserID == "" {
		badRequest(c, "INVALID_BODY", "userId is required")
		return
	}

	ctx := c.Request.Context()
	open, err := h.gateway.GetActiveRaffle(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	if open == nil {
		writeError(c, ErrNoOpenRaffle)
		return
	}
	if body.RaffleID != "" && body.RaffleID != open.ID {
		badRequest(c, ErrInvalidRaffle.Error(), "registrations are only accepted for the open raffle")
		return
	}

	reg, err := h.gateway.Register(ctx, body.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

// PatchRegistration handles PATCH /registrations/:id. Only {isWinner: true}
// is accepted.
func (h *Handler) PatchRegistration(c *gin.Context) {
	var body RegistrationPatch
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "INVALID_BODY", err.Error())
		return
	}
	if body.IsWinner == nil || !*body.IsWinner {
		writeError(c, ErrInvalidTransition)
		return
	}

	reg, err := h.gateway.MarkWinner(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// --- Portal ---

// GetPortal handles GET /portal for the logged-in resident.
func (h *Handler) GetPortal(c *gin.Context) {
	p := access.CurrentPrincipal(c)
	if p == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHENTICATED", "redirectTo": access.LoginRoute})
		return
	}

	portal, err := h.gateway.PortalStatus(c.Request.Context(), p.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, portal)
}

// RegisterCurrentUser handles POST /portal/register.
func (h *Handler) RegisterCurrentUser(c *gin.Context) {
	p := access.CurrentPrincipal(c)
	if p == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHENTICATED", "redirectTo": access.LoginRoute})
		return
	}

	reg, err := h.gateway.Register(c.Request.Context(), p.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

// RegisterRoutes mounts the raffle endpoints on rg. Authentication and
// role middleware come from the access package.
func RegisterRoutes(rg *gin.RouterGroup, h *Handler) {
	authenticated := access.RequireAuthenticated()
	admin := access.RequireRole(access.RoleAdmin)
	resident := access.RequireRole(access.RoleResident)

	raffles := rg.Group("/raffles")
	{
		raffles.GET("", authenticated, h.ListRaffles)
		raffles.POST("", admin, h.CreateRaffle)
		raffles.GET("/active", authenticated, h.GetActiveRaffle)
		raffles.GET("/active/events", authenticated, h.StreamActiveRaffle)
		raffles.POST("/execute", admin, h.ExecuteRaffle)
		raffles.PATCH("/:id", admin, h.PatchRaffle)
	}

	registrations := rg.Group("/registrations")
	{
		registrations.GET("", authenticated, h.ListRegistrations)
		registrations.POST("", authenticated, h.CreateRegistration)
		registrations.PATCH("/:id", admin, h.PatchRegistration)
	}

	portal := rg.Group("/portal", resident)
	{
		portal.GET("", h.GetPortal)
		portal.POST("/register", h.RegisterCurrentUser)
	}
}
