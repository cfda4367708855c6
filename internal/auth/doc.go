// Package auth implements the escape-gateway session authority.
//
// # Overview
//
// Authentication is email + password verified with bcrypt. A successful
// login opens a session with two layers:
//
//   - A server-side session record with an absolute expiry
//   - A signed HS256 JWT naming the principal (sub), role, and session (sid)
//
// A request is authenticated only when both layers are valid: the JWT must
// verify and be unexpired, and the session record it names must still exist.
// Revoking a session therefore kills its credential immediately, regardless
// of the JWT expiry.
//
// # Throttling
//
// Login attempts are recorded in an append-only ledger. Before any password
// verification the authority counts recent failures for the (email, source
// IP) pair; at the limit the attempt is rejected with ErrThrottled and
// still recorded. Unknown emails cost a bcrypt comparison against a dummy
// hash so response timing stays uniform.
//
// # HTTP Integration
//
// Credentials travel in the escape_session cookie or an Authorization
// bearer header. RequireSession validates and attaches Claims to the
// request context; RequireAdmin additionally gates on the admin role.
//
//	mux.Handle("GET /servers", auth.RequireSession(authority)(handler))
//
// # Errors
//
//	auth.ErrInvalidCredentials - bad email/password pair
//	auth.ErrThrottled          - failure budget exhausted for the window
//	auth.ErrRoleNotAllowed     - disabled principals may not log in
//	auth.ErrSessionRevoked     - credential names a dead session
//	auth.ErrInvalidToken       - signature or structure problems
//	auth.ErrExpiredToken       - JWT past its expiry
package auth
