// ABOUTME: Tests for the session-validating HTTP middleware
// ABOUTME: Covers cookie and bearer extraction, revocation, and admin gating

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func loginForTest(t *testing.T, authority *Authority) *LoginResult {
	t.Helper()
	result, err := authority.Authenticate(context.Background(), testEmail, testPassword, testIP, testUA)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	return result
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestRequireSession_CookieCredential(t *testing.T) {
	authority, _ := setupAuthority(t)
	result := loginForTest(t, authority)

	handler, called := okHandler()
	mw := RequireSession(authority)(handler)

	req := httptest.NewRequest(http.MethodGet, "/servers", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: result.Token})
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !*called {
		t.Error("handler was not called")
	}
}

func TestRequireSession_BearerCredential(t *testing.T) {
	authority, _ := setupAuthority(t)
	result := loginForTest(t, authority)

	handler, _ := okHandler()
	mw := RequireSession(authority)(handler)

	req := httptest.NewRequest(http.MethodGet, "/servers", nil)
	req.Header.Set("Authorization", "Bearer "+result.Token)
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireSession_NoCredential(t *testing.T) {
	authority, _ := setupAuthority(t)

	handler, called := okHandler()
	mw := RequireSession(authority)(handler)

	req := httptest.NewRequest(http.MethodGet, "/servers", nil)
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if *called {
		t.Error("handler was called without credentials")
	}
}

func TestRequireSession_RevokedSession(t *testing.T) {
	authority, _ := setupAuthority(t)
	result := loginForTest(t, authority)

	if err := authority.Revoke(context.Background(), result.Session.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	handler, called := okHandler()
	mw := RequireSession(authority)(handler)

	req := httptest.NewRequest(http.MethodGet, "/servers", nil)
	req.Header.Set("Authorization", "Bearer "+result.Token)
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "session revoked") {
		t.Errorf("body = %q, want revocation message", rec.Body.String())
	}
	if *called {
		t.Error("handler was called with a revoked session")
	}
}

func TestRequireSession_ClaimsInContext(t *testing.T) {
	authority, _ := setupAuthority(t)
	result := loginForTest(t, authority)

	var gotClaims *Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	mw := RequireSession(authority)(handler)

	req := httptest.NewRequest(http.MethodGet, "/servers", nil)
	req.Header.Set("Authorization", "Bearer "+result.Token)
	mw.ServeHTTP(httptest.NewRecorder(), req)

	if gotClaims == nil {
		t.Fatal("claims missing from request context")
	}
	if gotClaims.PrincipalID != "p-admin" {
		t.Errorf("PrincipalID = %q, want %q", gotClaims.PrincipalID, "p-admin")
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		claims     *Claims
		wantStatus int
	}{
		{
			name:       "admin allowed",
			claims:     &Claims{PrincipalID: "p-1", Role: "admin", SessionID: "s-1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "service forbidden",
			claims:     &Claims{PrincipalID: "p-2", Role: "service", SessionID: "s-2"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unauthenticated",
			claims:     nil,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := okHandler()
			mw := RequireAdmin()(handler)

			req := httptest.NewRequest(http.MethodGet, "/admin/secrets", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()

			mw.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCredentialFromRequest_CookieWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")

	if got := CredentialFromRequest(req); got != "cookie-token" {
		t.Errorf("CredentialFromRequest() = %q, want %q", got, "cookie-token")
	}
}

func TestCredentialFromRequest_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := CredentialFromRequest(req); got != "" {
		t.Errorf("CredentialFromRequest() = %q, want empty", got)
	}
}

func TestExpiredCredentialRejected(t *testing.T) {
	authority, _ := setupAuthority(t)

	codec := newTestCodec(t)
	expired, err := codec.Sign(Claims{PrincipalID: "p-admin", Role: "admin", SessionID: "s-1"}, -time.Minute)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	handler, called := okHandler()
	mw := RequireSession(authority)(handler)

	req := httptest.NewRequest(http.MethodGet, "/servers", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "session expired") {
		t.Errorf("body = %q, want expiry message", rec.Body.String())
	}
	if *called {
		t.Error("handler was called with an expired credential")
	}
}
