// Package config handles configuration loading for escape-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${ESCAPE_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  session_ttl: "24h"
//	  login_window: "15m"
//	servers:
//	  dispatch_timeout: "10s"
//	  tool_cache_ttl: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/escape/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${ESCAPE_JWT_SECRET}"  # required, >= 32 bytes
//	  session_ttl: "24h"
//	  login_window: "15m"
//	  max_login_failures: 5
//
// Credential store:
//
//	secrets:
//	  fallback: "file"  # file or redis
//	  file_path: "/var/lib/escape/secrets-fallback.json"
//	  redis_url: "${ESCAPE_REDIS_URL}"
//
// Tool servers:
//
//	servers:
//	  registry_path: "/etc/escape/servers.toml"
//	  dispatch_timeout: "10s"
//	  tool_cache_ttl: "30s"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - JWT secret minimum length (32 bytes)
//   - Required paths (database, server registry)
//   - Duration format validity
//   - Fallback backend selection
package config
