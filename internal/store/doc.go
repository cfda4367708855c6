// Package store provides SQLite-backed persistence for escape-gateway.
//
// # Overview
//
// The store persists four entity families:
//
//   - Principals: accounts that can log in (admin, service, disabled)
//   - Sessions: server-side session records with absolute expiry
//   - Login attempts: an append-only ledger used for throttling
//   - Secrets: named credential entries keyed by (name, scope)
//
// # Database
//
// Uses modernc.org/sqlite (pure Go, no CGO) with:
//
//   - WAL mode for concurrent access
//   - Foreign keys enabled
//   - RFC3339 UTC timestamps stored as TEXT
//
// # Interfaces
//
// Consumers depend on the narrow interfaces (PrincipalStore, SessionStore,
// LoginAttemptStore, SecretStore) rather than the concrete SQLiteStore, so
// tests can substitute fakes per concern.
//
// # Error Handling
//
// Sentinel errors for common cases:
//
//	store.ErrNotFound           - generic missing entity
//	store.ErrPrincipalNotFound  - principal missing or soft-deleted
//	store.ErrSessionNotFound    - session missing or expired
//	store.ErrEmailExists        - duplicate email on principal creation
//
// Check with errors.Is:
//
//	p, err := store.GetPrincipalByEmail(ctx, email)
//	if errors.Is(err, store.ErrPrincipalNotFound) {
//	    // handle missing principal
//	}
//
// # Semantics
//
//   - Principal deletion is a soft delete; deleted principals are invisible
//     to all lookups and their sessions are removed.
//   - GetSession only returns live sessions; expired rows act as missing.
//   - The login attempt ledger is append-only; rows are only removed by
//     explicit pruning.
//   - Secret upserts keep the original row ID and created_at.
package store
