package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SlpAus/parking-raffle-backend/internal/access"
	"github.com/gin-gonic/gin"
)

const testCookie = "raffle-session"

type testAPI struct {
	router *gin.Engine
	svc    *Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newTestService(t)
	sessions, _ := newTestSessions(t, time.Hour)
	limiter := NewLoginLimiter(sessions.rdb, 3, time.Minute)
	cookie := CookieSettings{Name: testCookie}

	r := gin.New()
	r.Use(SessionMiddleware(sessions, cookie))
	RegisterRoutes(r.Group("/api"), NewHandler(svc, sessions, limiter, cookie))

	ctx := context.Background()
	if _, err := svc.Create(ctx, CreateInput{Email: "admin@example.com", Name: "Admin", Role: access.RoleAdmin, Password: "admin-password"}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Email: "res@example.com", Name: "Res", Unit: "2A", Password: "resident-password"}); err != nil {
		t.Fatalf("seed resident: %v", err)
	}
	return &testAPI{router: r, svc: svc}
}

func (a *testAPI) do(t *testing.T, method, path string, cookie *http.Cookie, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/auth/login", nil, map[string]string{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, w.Code, w.Body)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func TestHandler_LoginMeLogout(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/auth/login", nil, map[string]string{"email": "res@example.com", "password": "resident-password"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body)
	}
	var login struct {
		User       Snapshot `json:"user"`
		RedirectTo string   `json:"redirectTo"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &login)
	if login.RedirectTo != access.PortalRoute || login.User.Unit != "2A" {
		t.Errorf("unexpected login response %s", w.Body)
	}

	cookie := api.login(t, "res@example.com", "resident-password")

	w = api.do(t, http.MethodGet, "/api/auth/me", cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d %s", w.Code, w.Body)
	}

	w = api.do(t, http.MethodPost, "/api/auth/logout", cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", w.Code, w.Body)
	}
	if w := api.do(t, http.MethodGet, "/api/auth/me", cookie, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout: %d", w.Code)
	}
}

func TestHandler_LoginWrongPassword(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/auth/login", nil, map[string]string{"email": "res@example.com", "password": "nope-nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error != "INVALID_CREDENTIALS" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestHandler_LoginThrottled(t *testing.T) {
	api := newTestAPI(t)
	wrong := map[string]string{"email": "res@example.com", "password": "nope-nope"}

	for range 3 {
		if w := api.do(t, http.MethodPost, "/api/auth/login", nil, wrong); w.Code != http.StatusUnauthorized {
			t.Fatalf("wrong password: %d", w.Code)
		}
	}
	right := map[string]string{"email": "res@example.com", "password": "resident-password"}
	if w := api.do(t, http.MethodPost, "/api/auth/login", nil, right); w.Code != http.StatusTooManyRequests {
		t.Errorf("after 3 failures: %d %s", w.Code, w.Body)
	}
}

func TestHandler_AdminDirectory(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login(t, "admin@example.com", "admin-password")
	resident := api.login(t, "res@example.com", "resident-password")

	if w := api.do(t, http.MethodGet, "/api/users", resident, nil); w.Code != http.StatusForbidden {
		t.Errorf("resident listing users: %d", w.Code)
	}
	if w := api.do(t, http.MethodGet, "/api/users", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous listing users: %d", w.Code)
	}

	w := api.do(t, http.MethodGet, "/api/users?role=resident", admin, nil)
	var users []User
	_ = json.Unmarshal(w.Body.Bytes(), &users)
	if w.Code != http.StatusOK || len(users) != 1 {
		t.Fatalf("list residents: %d %s", w.Code, w.Body)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Error("password hash leaked into the response")
	}

	w = api.do(t, http.MethodPost, "/api/users", admin, CreateInput{Email: "new@example.com", Name: "New", Password: "new-password"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	var created User
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = api.do(t, http.MethodPost, "/api/users", admin, CreateInput{Email: "new@example.com", Name: "Dup", Password: "new-password"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate email: %d", w.Code)
	}

	w = api.do(t, http.MethodPatch, "/api/users/"+created.ID, admin, map[string]string{"name": "Renamed"})
	if w.Code != http.StatusOK {
		t.Errorf("patch: %d %s", w.Code, w.Body)
	}

	if w := api.do(t, http.MethodDelete, "/api/users/"+created.ID, admin, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete: %d %s", w.Code, w.Body)
	}
	if w := api.do(t, http.MethodGet, "/api/users/"+created.ID, admin, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted: %d", w.Code)
	}
}

func TestHandler_RoleChangeEndsSessions(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login(t, "admin@example.com", "admin-password")
	resident := api.login(t, "res@example.com", "resident-password")

	residents, _ := api.svc.List(context.Background(), access.RoleResident)
	w := api.do(t, http.MethodPatch, "/api/users/"+residents[0].ID, admin, map[string]string{"role": "admin"})
	if w.Code != http.StatusOK {
		t.Fatalf("promote: %d %s", w.Code, w.Body)
	}

	if w := api.do(t, http.MethodGet, "/api/auth/me", resident, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("session should end after a role change, got %d", w.Code)
	}
}
