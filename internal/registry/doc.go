// Package registry manages the downstream tool server catalog.
//
// # Overview
//
// Tool servers are declared in a TOML file, one [[server]] block each:
//
//	[[server]]
//	name = "notes"
//	label = "Notes"
//	endpoint = "http://localhost:9001"
//	secret_name = "notes-api-key"
//	secret_scoped = false
//	timeout = "5s"
//
// The registry answers server lookups from memory and tool lookups from a
// TTL cache over live downstream listings (GET {endpoint}/tools). When a
// refresh fails and a stale entry exists, the stale listing is served.
//
// # Dispatch
//
// Client.Invoke forwards a call to POST {endpoint}/tools/{tool}, attaching
// the calling principal and role as X-Escape-* headers and, when configured,
// the server's secret as a bearer credential. Whatever HTTP response the
// downstream produces is relayed verbatim; only transport failures and
// timeouts become ErrDownstreamUnavailable.
package registry
