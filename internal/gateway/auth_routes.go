// ABOUTME: HTTP handlers for login, logout, refresh, and the current-user lookup
// ABOUTME: Failed logins get one generic message; throttled logins get a distinct one

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/2389/escape-gateway/internal/auth"
	"github.com/2389/escape-gateway/internal/store"
)

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PrincipalResponse is the principal summary returned by login and /auth/user.
type PrincipalResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func principalResponse(p *store.Principal) PrincipalResponse {
	return PrincipalResponse{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
	}
}

// clientIP extracts the remote address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// setSessionCookie attaches the session credential to the response.
func (g *Gateway) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(g.authority.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// handleLogin handles POST /auth/login.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		g.sendJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := g.authority.Authenticate(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrThrottled):
			g.sendJSONError(w, http.StatusTooManyRequests, "too many attempts, try later")
		case errors.Is(err, auth.ErrRoleNotAllowed), errors.Is(err, auth.ErrInvalidCredentials):
			// One generic message for every credential failure so the
			// response does not reveal account status
			g.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
		default:
			g.logger.Error("login failed", "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	g.setSessionCookie(w, r, result.Token)
	g.writeJSON(w, principalResponse(result.Principal))
}

// handleLogout handles POST /auth/logout. Always succeeds; revoking an
// already-dead session is a no-op.
func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.CredentialFromRequest(r); token != "" {
		if claims, err := g.authority.Validate(r.Context(), token); err == nil {
			if err := g.authority.Revoke(r.Context(), claims.SessionID); err != nil {
				g.logger.Error("revoking session failed", "error", err)
			}
		}
	}

	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh handles POST /auth/refresh: rotates the session record and
// issues a fresh credential.
func (g *Gateway) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := auth.CredentialFromRequest(r)
	if token == "" {
		g.sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	result, err := g.authority.Refresh(r.Context(), token, clientIP(r), r.UserAgent())
	if err != nil {
		g.sendJSONError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	g.setSessionCookie(w, r, result.Token)
	g.writeJSON(w, principalResponse(result.Principal))
}

// handleCurrentUser handles GET /auth/user.
func (g *Gateway) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustClaimsFromContext(r.Context())

	principal, err := g.store.GetPrincipal(r.Context(), claims.PrincipalID)
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			g.sendJSONError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		g.logger.Error("loading principal failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	g.writeJSON(w, principalResponse(principal))
}
