// Package gateway assembles the service and exposes its HTTP surface.
//
// # Overview
//
// New wires the SQLite store, session authority, credential vault, and tool
// registry together, then serves four route groups: auth (login, logout,
// refresh, current user), discovery (list servers, list a server's tools),
// dispatch (invoke a tool on a server), and the admin secrets surface.
//
// # Dispatch pipeline
//
// Every dispatch runs the same checks in order: validate the session
// credential against its server-side record, resolve the server and tool
// names in the registry, fetch the server's secret from the vault if it
// declares one, forward the call with the caller's identity attached, and
// relay the downstream result. Secrets travel only in outbound request
// headers and never appear in responses, error messages, or logs.
package gateway
