// ABOUTME: End-to-end tests for the assembled gateway over its HTTP surface.
// ABOUTME: Exercises login, session checks, and the full dispatch pipeline.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/escape-gateway/internal/auth"
	"github.com/2389/escape-gateway/internal/config"
	"github.com/2389/escape-gateway/internal/store"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "correct horse battery staple"
	testJWTSecret     = "0123456789abcdef0123456789abcdef"
)

// testDownstream is a fake tool server recording what the gateway sends it.
type testDownstream struct {
	server        *httptest.Server
	hits          atomic.Int32
	lastPrincipal atomic.Value
	lastAuth      atomic.Value
}

func newTestDownstream(t *testing.T) *testDownstream {
	t.Helper()

	d := &testDownstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"tools":[
			{"name":"say","description":"Echo a message","parameters":{"type":"object"}},
			{"name":"fail","description":"Always fails"}
		]}`)
	})
	mux.HandleFunc("POST /tools/say", func(w http.ResponseWriter, r *http.Request) {
		d.hits.Add(1)
		d.lastPrincipal.Store(r.Header.Get("X-Escape-Principal"))
		d.lastAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	})
	mux.HandleFunc("POST /tools/fail", func(w http.ResponseWriter, r *http.Request) {
		d.hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"bad arguments"}`)
	})
	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

// newTestGateway assembles a gateway against a temp store and the given
// downstream, and creates the default admin principal.
func newTestGateway(t *testing.T, downstream *testDownstream) *Gateway {
	t.Helper()

	dir := t.TempDir()
	registryPath := filepath.Join(dir, "servers.toml")
	registry := fmt.Sprintf(`[[server]]
name = "echo"
label = "Echo Tools"
endpoint = %q
secret_name = "echo_api_key"
`, downstream.server.URL)
	if err := os.WriteFile(registryPath, []byte(registry), 0o644); err != nil {
		t.Fatalf("writing registry: %v", err)
	}

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = filepath.Join(dir, "gateway.db")
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Auth.SessionTTL = 24 * time.Hour
	cfg.Auth.LoginWindow = 15 * time.Minute
	cfg.Auth.MaxLoginFailures = 5
	cfg.Secrets.Fallback = "file"
	cfg.Secrets.FilePath = filepath.Join(dir, "secrets-fallback.json")
	cfg.Servers.RegistryPath = registryPath
	cfg.Servers.DispatchTimeout = 5 * time.Second
	cfg.Servers.ToolCacheTTL = 30 * time.Second

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("assembling gateway: %v", err)
	}
	t.Cleanup(func() { gw.store.Close() })

	createTestPrincipal(t, gw, testAdminEmail, testAdminPassword, store.RoleAdmin)
	return gw
}

func createTestPrincipal(t *testing.T, gw *Gateway, email, password, role string) *store.Principal {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	p := &store.Principal{
		ID:           "principal-" + email,
		Email:        email,
		DisplayName:  "Test " + role,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := gw.store.CreatePrincipal(context.Background(), p); err != nil {
		t.Fatalf("creating principal: %v", err)
	}
	return p
}

// login authenticates and returns the session cookie.
func login(t *testing.T, gw *Gateway, email, password string) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatal("login response carried no session cookie")
	return nil
}

// doRequest runs one request through the gateway's handler.
func doRequest(gw *Gateway, method, path string, body []byte, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	return envelope.Error
}

func TestHealthz(t *testing.T) {
	gw := newTestGateway(t, newTestDownstream(t))

	rec := doRequest(gw, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	gw := newTestGateway(t, newTestDownstream(t))

	cookie := login(t, gw, testAdminEmail, testAdminPassword)

	rec := doRequest(gw, http.MethodGet, "/auth/user", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var principal PrincipalResponse
	if err := json.NewDecoder(rec.Body).Decode(&principal); err != nil {
		t.Fatalf("decoding principal: %v", err)
	}
	if principal.Email != testAdminEmail {
		t.Errorf("expected email %q, got %q", testAdminEmail, principal.Email)
	}
	if principal.Role != store.RoleAdmin {
		t.Errorf("expected admin role, got %q", principal.Role)
	}

	rec = doRequest(gw, http.MethodPost, "/auth/logout", nil, cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected status 204, got %d", rec.Code)
	}

	// The revoked credential no longer validates even though it has not expired
	rec = doRequest(gw, http.MethodGet, "/auth/user", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 after logout, got %d", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	gw := newTestGateway(t, newTestDownstream(t))

	body, _ := json.Marshal(LoginRequest{Email: testAdminEmail, Password: "nope"})
	rec := doRequest(gw, http.MethodPost, "/auth/login", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "invalid email or password" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestLoginUnknownEmailSameMessage(t *testing.T) {
	gw := newTestGateway(t, newTestDownstream(t))

	body, _ := json.Marshal(LoginRequest{Email: "nobody@example.com", Password: "nope"})
	rec := doRequest(gw, http.MethodPost, "/auth/login", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "invalid email or password" {
		t.Errorf("unknown email must get the generic message, got %q", msg)
	}
}

func TestLoginThrottled(t *testing.T) {
	gw := newTestGateway(t, newTestDownstream(t))

	body, _ := json.Marshal(LoginRequest{Email: testAdminEmail, Password: "nope"})
	for i := 0; i < 5; i++ {
		rec := doRequest(gw, http.MethodPost, "/auth/login", body, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected status 401, got %d", i+1, rec.Code)
		}
	}

	// Correct password no longer helps inside the window
	good, _ := json.Marshal(LoginRequest{Email: testAdminEmail, Password: testAdminPassword})
	rec := doRequest(gw, http.MethodPost, "/auth/login", good, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "too many attempts, try later" {
		t.Errorf("unexpected throttle message: %q", msg)
	}
}

func TestLoginDisabledRole(t *testing.T) {
	gw := newTestGateway(t, newTestDownstream(t))
	createTestPrincipal(t, gw, "gone@example.com", "pw12345678", store.RoleDisabled)

	body, _ := json.Marshal(LoginRequest{Email: "gone@example.com", Password: "pw12345678"})
	rec := doRequest(gw, http.MethodPost, "/auth/login", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	// Disabled accounts get the same message as any other failed login
	if msg := decodeError(t, rec); msg != "invalid email or password" {
		t.Errorf("disabled account must get the generic message, got %q", msg)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	gw := newTestGateway(t, newTestDownstream(t))

	cookie := login(t, gw, testAdminEmail, testAdminPassword)

	rec := doRequest(gw, http.MethodPost, "/auth/refresh", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var fresh *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			fresh = c
		}
	}
	if fresh == nil {
		t.Fatal("refresh response carried no session cookie")
	}
	if fresh.Value == cookie.Value {
		t.Error("refresh did not rotate the credential")
	}

	// The old credential's session was revoked by the rotation
	rec = doRequest(gw, http.MethodGet, "/auth/user", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for superseded credential, got %d", rec.Code)
	}
	rec = doRequest(gw, http.MethodGet, "/auth/user", nil, fresh)
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for fresh credential, got %d", rec.Code)
	}
}
