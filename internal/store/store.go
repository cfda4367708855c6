// ABOUTME: Store interfaces and data types for escape-gateway persistence
// ABOUTME: Defines Principal, Session, LoginAttempt, Secret structs and narrow store interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrPrincipalNotFound is returned when a principal lookup misses
var ErrPrincipalNotFound = errors.New("principal not found")

// ErrSessionNotFound is returned when a session does not exist or has expired
var ErrSessionNotFound = errors.New("session not found")

// ErrEmailExists is returned when creating a principal with an email already in use
var ErrEmailExists = errors.New("email already registered")

// Role constants for principals
const (
	RoleAdmin    = "admin"    // Full access including secret management
	RoleService  = "service"  // Discovery and dispatch only
	RoleDisabled = "disabled" // May not log in
)

// ValidRole reports whether role is one of the known principal roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleService, RoleDisabled:
		return true
	}
	return false
}

// Principal represents an account that can log in to the gateway
type Principal struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string // admin, service, disabled
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
	DeletedAt    *time.Time
}

// Session represents a server-side session record.
// A session is live when it exists and its expiry is in the future.
type Session struct {
	ID          string
	PrincipalID string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	IP          string
	UserAgent   string
}

// LoginAttempt is an append-only record of one login attempt
type LoginAttempt struct {
	ID        string
	Email     string
	IP        string
	Success   bool
	CreatedAt time.Time
}

// Secret represents a stored credential entry.
// Scope is empty for global secrets, or a principal ID for scoped ones.
type Secret struct {
	ID          string
	Name        string
	Value       string
	Scope       string
	Sensitive   bool
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UpdatedBy   *string
}

// PrincipalStore defines principal persistence operations
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, p *Principal) error
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (*Principal, error)
	UpdatePrincipalPassword(ctx context.Context, id, passwordHash string) error
	TouchPrincipalLogin(ctx context.Context, id string, when time.Time) error
	SoftDeletePrincipal(ctx context.Context, id string) error
	ListPrincipals(ctx context.Context) ([]*Principal, error)
	CountPrincipals(ctx context.Context) (int, error)
}

// SessionStore defines session persistence operations
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) error
}

// LoginAttemptStore defines the append-only login attempt ledger
type LoginAttemptStore interface {
	RecordLoginAttempt(ctx context.Context, attempt *LoginAttempt) error
	CountLoginFailures(ctx context.Context, email, ip string, since time.Time) (int, error)
	PruneLoginAttempts(ctx context.Context, before time.Time) error
}

// SecretStore defines secret persistence operations.
// Implementations treat (name, scope) as the unique key.
type SecretStore interface {
	UpsertSecret(ctx context.Context, secret *Secret) error
	GetSecretByName(ctx context.Context, name, scope string) (*Secret, error)
	DeleteSecretByName(ctx context.Context, name, scope string) error
	ListSecrets(ctx context.Context, scope string) ([]*Secret, error)
}
