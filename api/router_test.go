package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/SlpAus/parking-raffle-backend/internal/access"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/config"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/database"
	"github.com/SlpAus/parking-raffle-backend/internal/platform/health"
	"github.com/SlpAus/parking-raffle-backend/internal/raffle"
	"github.com/SlpAus/parking-raffle-backend/internal/user"
	"github.com/SlpAus/parking-raffle-backend/pkg/observable"
	"github.com/SlpAus/parking-raffle-backend/pkg/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const cookieName = "raffle-session"

type client struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c *client) login(email, password string) {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password})
	if w.Code != http.StatusOK {
		c.t.Fatalf("login %s: %d %s", email, w.Code, w.Body)
	}
	for _, ck := range w.Result().Cookies() {
		if ck.Name == cookieName {
			c.cookie = ck
		}
	}
}

func newTestRouter(t *testing.T) (http.Handler, *user.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "api.db")}, false)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	if err := user.MigrateDB(db); err != nil {
		t.Fatal(err)
	}
	if err := raffle.MigrateDB(db); err != nil {
		t.Fatal(err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	signer, _ := token.NewSigner([]byte("router-test"))
	sessions := user.NewSessionStore(rdb, signer, time.Hour)
	cookie := user.CookieSettings{Name: cookieName}
	users := user.NewService(user.NewRepository(db))

	store := raffle.NewRepository(db)
	feed := observable.New[*raffle.Raffle](nil)
	gateway := raffle.NewGateway(store, feed)

	router := NewRouter(Dependencies{
		Server:   config.ServerConfig{Cors: config.CorsConfig{AllowedOrigins: []string{"http://localhost:4200"}}},
		Cookie:   cookie,
		Sessions: sessions,
		Users:    user.NewHandler(users, sessions, user.NewLoginLimiter(rdb, 5, time.Minute), cookie),
		Raffles:  raffle.NewHandler(gateway, raffle.NewOrchestrator(store, feed), feed),
		Health:   health.NewChecker(rdb, db),
	})

	if _, err := users.Create(ctx, user.CreateInput{Email: "admin@example.com", Name: "Admin", Role: access.RoleAdmin, Password: "admin-password"}); err != nil {
		t.Fatal(err)
	}
	return router, users
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("health: %d %s", w.Code, w.Body)
	}
	var report health.Report
	_ = json.Unmarshal(w.Body.Bytes(), &report)
	if report.Status != "ok" || report.Database != "ok" {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
}

func TestRouter_RaffleRound(t *testing.T) {
	router, _ := newTestRouter(t)

	admin := &client{t: t, router: router}
	admin.login("admin@example.com", "admin-password")

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		w := admin.do(http.MethodPost, "/api/users", user.CreateInput{Email: email, Name: email, Password: "resident-pw"})
		if w.Code != http.StatusCreated {
			t.Fatalf("create %s: %d %s", email, w.Code, w.Body)
		}
	}

	w := admin.do(http.MethodPost, "/api/raffles", map[string]any{"period": "2026-Q1", "totalSpots": 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("create raffle: %d %s", w.Code, w.Body)
	}

	residents := map[string]*client{}
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		c := &client{t: t, router: router}
		c.login(email, "resident-pw")
		residents[email] = c

		if w := c.do(http.MethodPost, "/api/portal/register", nil); w.Code != http.StatusCreated {
			t.Fatalf("%s register: %d %s", email, w.Code, w.Body)
		}
	}
	if w := residents["a@example.com"].do(http.MethodPost, "/api/portal/register", nil); w.Code != http.StatusConflict {
		t.Errorf("duplicate registration: %d", w.Code)
	}

	w = admin.do(http.MethodPost, "/api/raffles/execute", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("execute: %d %s", w.Code, w.Body)
	}
	var result raffle.ExecutionResult
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	if result.Winners != 2 || result.Registrations != 3 {
		t.Errorf("unexpected result %+v", result)
	}

	winners := 0
	for email, c := range residents {
		var portal raffle.Portal
		w := c.do(http.MethodGet, "/api/portal", nil)
		if err := json.Unmarshal(w.Body.Bytes(), &portal); err != nil {
			t.Fatalf("%s portal: %v", email, err)
		}
		if portal.ActiveRaffle != nil || len(portal.History) != 1 {
			t.Fatalf("%s portal after execution: %+v", email, portal)
		}
		if portal.History[0].Raffle == nil || portal.History[0].Raffle.Status != raffle.StatusClosed {
			t.Errorf("%s history raffle: %+v", email, portal.History[0].Raffle)
		}
		if portal.History[0].IsWinner {
			winners++
		}
	}
	if winners != 2 {
		t.Errorf("winners seen by residents = %d, want 2", winners)
	}

	if w := admin.do(http.MethodPost, "/api/raffles/execute", nil); w.Code != http.StatusNotFound {
		t.Errorf("second execution: %d", w.Code)
	}
}
