// Package secrets implements the escape-gateway credential store.
//
// # Overview
//
// Secrets are named credential entries, optionally scoped to a principal
// (empty scope means global). The Vault coordinates two backends:
//
//   - Primary: the gateway SQLite database (StoreBackend)
//   - Fallback: a JSON file (FileBackend) or Redis (RedisBackend)
//
// # Fallback Semantics
//
// Reads consult the fallback only when the primary is unavailable; a missing
// entry is authoritative and never triggers fallback. Writes go primary-first
// and land in the fallback when the primary fails; only when both backends
// fail does the operation error with ErrStorageUnavailable. Successful
// primary writes are mirrored to the fallback best-effort so it can serve
// reads later.
//
// # Masking
//
// Sensitive values never leave the package unmasked except through GetRaw,
// which exists for dispatch-time credential injection. Get and ListMasked
// replace sensitive values with MaskPlaceholder.
package secrets
