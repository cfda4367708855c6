// ABOUTME: Session authority handling login, validation, refresh, and revocation
// ABOUTME: Sessions are valid only when both the JWT and the server-side record check out

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/escape-gateway/internal/store"
)

// Authority errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrThrottled          = errors.New("too many failed login attempts")
	ErrRoleNotAllowed     = errors.New("role may not log in")
	ErrSessionRevoked     = errors.New("session revoked")
)

// dummyHash is compared against when the email is unknown so that login
// timing does not reveal whether an account exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Config holds authority tuning parameters.
type Config struct {
	SessionTTL       time.Duration
	LoginWindow      time.Duration
	MaxLoginFailures int
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string
	Principal *store.Principal
	Session   *store.Session
}

// Authority is the session authority. It owns login decisions, session
// lifecycle, and credential validation.
type Authority struct {
	principals store.PrincipalStore
	sessions   store.SessionStore
	attempts   store.LoginAttemptStore
	codec      TokenCodec
	cfg        Config
	logger     *slog.Logger
}

// NewAuthority creates a session authority over the given stores.
func NewAuthority(principals store.PrincipalStore, sessions store.SessionStore,
	attempts store.LoginAttemptStore, codec TokenCodec, cfg Config) *Authority {
	return &Authority{
		principals: principals,
		sessions:   sessions,
		attempts:   attempts,
		codec:      codec,
		cfg:        cfg,
		logger:     slog.Default().With("component", "auth"),
	}
}

// generateSecureToken creates a cryptographically secure random token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// record appends a ledger entry; ledger failures are logged, not fatal.
func (a *Authority) record(ctx context.Context, email, ip string, success bool) {
	err := a.attempts.RecordLoginAttempt(ctx, &store.LoginAttempt{
		ID:        uuid.NewString(),
		Email:     email,
		IP:        ip,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		a.logger.Error("recording login attempt failed", "error", err)
	}
}

// Authenticate verifies an email/password pair and opens a new session.
//
// The throttle check runs before any password verification, and a throttled
// attempt is still recorded in the ledger. Unknown emails cost a bcrypt
// comparison against a dummy hash so response timing stays uniform.
func (a *Authority) Authenticate(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	windowStart := time.Now().UTC().Add(-a.cfg.LoginWindow)
	failures, err := a.attempts.CountLoginFailures(ctx, email, ip, windowStart)
	if err != nil {
		return nil, fmt.Errorf("counting login failures: %w", err)
	}
	if failures >= a.cfg.MaxLoginFailures {
		a.record(ctx, email, ip, false)
		a.logger.Warn("login throttled", "ip", ip)
		return nil, ErrThrottled
	}

	principal, err := a.principals.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			// Burn the same time as a real comparison
			bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			a.record(ctx, email, ip, false)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up principal: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		a.record(ctx, email, ip, false)
		return nil, ErrInvalidCredentials
	}

	if principal.Role == store.RoleDisabled {
		a.record(ctx, email, ip, false)
		a.logger.Warn("login rejected for disabled principal", "principal_id", principal.ID)
		return nil, ErrRoleNotAllowed
	}

	result, err := a.openSession(ctx, principal, ip, userAgent)
	if err != nil {
		return nil, err
	}

	a.record(ctx, email, ip, true)
	if err := a.principals.TouchPrincipalLogin(ctx, principal.ID, time.Now().UTC()); err != nil {
		a.logger.Error("updating last login failed", "principal_id", principal.ID, "error", err)
	}

	a.logger.Info("login succeeded", "principal_id", principal.ID, "session_id", result.Session.ID)
	return result, nil
}

// openSession creates a session record and signs a matching credential.
func (a *Authority) openSession(ctx context.Context, principal *store.Principal, ip, userAgent string) (*LoginResult, error) {
	sessionID, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := time.Now().UTC()
	session := &store.Session{
		ID:          sessionID,
		PrincipalID: principal.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(a.cfg.SessionTTL),
		IP:          ip,
		UserAgent:   userAgent,
	}
	if err := a.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	token, err := a.codec.Sign(Claims{
		PrincipalID: principal.ID,
		Role:        principal.Role,
		SessionID:   sessionID,
	}, a.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("signing credential: %w", err)
	}

	return &LoginResult{Token: token, Principal: principal, Session: session}, nil
}

// Validate checks a credential against both layers: the JWT signature and
// expiry, and the server-side session record. A valid, unexpired JWT whose
// session has been revoked fails with ErrSessionRevoked.
func (a *Authority) Validate(ctx context.Context, token string) (*Claims, error) {
	claims, err := a.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	session, err := a.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	// The session must belong to the principal named in the credential
	if session.PrincipalID != claims.PrincipalID {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Revoke deletes a session. Revoking an already-revoked or unknown session
// is not an error.
func (a *Authority) Revoke(ctx context.Context, sessionID string) error {
	if err := a.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	a.logger.Info("session revoked", "session_id", sessionID)
	return nil
}

// Refresh exchanges a valid credential for a fresh session and token,
// revoking the old session.
func (a *Authority) Refresh(ctx context.Context, token, ip, userAgent string) (*LoginResult, error) {
	claims, err := a.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	principal, err := a.principals.GetPrincipal(ctx, claims.PrincipalID)
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, fmt.Errorf("looking up principal: %w", err)
	}

	result, err := a.openSession(ctx, principal, ip, userAgent)
	if err != nil {
		return nil, err
	}

	if err := a.Revoke(ctx, claims.SessionID); err != nil {
		a.logger.Error("revoking refreshed session failed", "session_id", claims.SessionID, "error", err)
	}

	return result, nil
}

// SessionTTL exposes the configured session lifetime for cookie expiry.
func (a *Authority) SessionTTL() time.Duration {
	return a.cfg.SessionTTL
}
