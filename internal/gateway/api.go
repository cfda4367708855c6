// ABOUTME: HTTP handlers for tool server discovery and dispatch
// ABOUTME: Check order is auth, server, tool, secret, forward; errors map to HTTP statuses

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/escape-gateway/internal/auth"
	"github.com/2389/escape-gateway/internal/registry"
	"github.com/2389/escape-gateway/internal/secrets"
)

// maxRequestBytes caps inbound JSON bodies.
const maxRequestBytes = 1 << 20

// ToolResponse is one tool in a listing response.
type ToolResponse struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ListToolsResponse is the JSON response for GET /servers/{name}/tools.
type ListToolsResponse struct {
	Tools []ToolResponse `json:"tools"`
}

// InvokeByBodyRequest is the JSON body for POST /tools.
type InvokeByBodyRequest struct {
	Server    string          `json:"server"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// sendJSONError writes a JSON error envelope.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": message, "status": status})
}

// writeJSON writes a JSON response with a 200 status.
func (g *Gateway) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		g.logger.Error("encoding response failed", "error", err)
	}
}

// handleListServers handles GET /servers.
// Returns a name-to-label map of configured tool servers.
func (g *Gateway) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers := g.registry.ListServers()

	response := make(map[string]string, len(servers))
	for _, srv := range servers {
		response[srv.Name] = srv.Label
	}
	g.writeJSON(w, response)
}

// handleListTools handles GET /servers/{name}/tools.
func (g *Gateway) handleListTools(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	tools, err := g.registry.ListTools(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownServer):
			g.sendJSONError(w, http.StatusNotFound, "unknown server: "+name)
		case errors.Is(err, registry.ErrDownstreamUnavailable):
			g.sendJSONError(w, http.StatusBadGateway, "tool server unavailable: "+name)
		default:
			g.logger.Error("listing tools failed", "server", name, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	response := ListToolsResponse{Tools: make([]ToolResponse, 0, len(tools))}
	for _, tool := range tools {
		response.Tools = append(response.Tools, ToolResponse{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	g.writeJSON(w, response)
}

// handleInvoke handles POST /servers/{name}/tools/{tool}.
// The request body is the tool argument object, forwarded as-is.
func (g *Gateway) handleInvoke(w http.ResponseWriter, r *http.Request) {
	serverName := r.PathValue("name")
	toolName := r.PathValue("tool")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "reading request body failed")
		return
	}
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	g.invoke(w, r, serverName, toolName, payload)
}

// handleInvokeByBody handles POST /tools, the server-agnostic dispatch route.
func (g *Gateway) handleInvokeByBody(w http.ResponseWriter, r *http.Request) {
	var req InvokeByBodyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Server == "" || req.Tool == "" {
		g.sendJSONError(w, http.StatusBadRequest, "server and tool are required")
		return
	}

	payload := req.Arguments
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	g.invoke(w, r, req.Server, req.Tool, payload)
}

// invoke runs the dispatch pipeline after auth: resolve server and tool,
// fetch the secret if the server wants one, forward, relay the result.
func (g *Gateway) invoke(w http.ResponseWriter, r *http.Request, serverName, toolName string, payload []byte) {
	claims := auth.MustClaimsFromContext(r.Context())

	srv, _, err := g.registry.ResolveTool(r.Context(), serverName, toolName)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownServer):
			g.sendJSONError(w, http.StatusNotFound, "unknown server: "+serverName)
		case errors.Is(err, registry.ErrUnknownTool):
			g.sendJSONError(w, http.StatusNotFound, "unknown tool: "+toolName)
		case errors.Is(err, registry.ErrDownstreamUnavailable):
			g.sendJSONError(w, http.StatusBadGateway, "tool server unavailable: "+serverName)
		default:
			g.logger.Error("resolving tool failed", "server", serverName, "tool", toolName, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	secret, ok := g.resolveSecret(w, r, srv, claims)
	if !ok {
		return
	}

	result, err := g.dispatch.Invoke(r.Context(), srv, toolName, payload, registry.InvokeOptions{
		PrincipalID: claims.PrincipalID,
		Role:        claims.Role,
		Secret:      secret,
	})
	if err != nil {
		if errors.Is(err, registry.ErrDownstreamUnavailable) {
			g.sendJSONError(w, http.StatusBadGateway, "tool server unavailable: "+serverName+"/"+toolName)
			return
		}
		g.logger.Error("dispatch failed", "server", serverName, "tool", toolName, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if result.StatusCode < 200 || result.StatusCode > 299 {
		// Relay the downstream failure status with server/tool identity
		g.logger.Warn("downstream tool call failed",
			"server", serverName, "tool", toolName, "status", result.StatusCode)
		g.sendJSONError(w, result.StatusCode, "tool call failed on "+serverName+"/"+toolName)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"result":`))
	if json.Valid(result.Body) && len(result.Body) > 0 {
		w.Write(result.Body)
	} else {
		// Non-JSON downstream payloads are relayed as a string
		encoded, _ := json.Marshal(string(result.Body))
		w.Write(encoded)
	}
	w.Write([]byte(`}`))
}

// resolveSecret fetches the server's secret for this caller. A missing
// secret is tolerated; an unavailable store is not. Returns ok=false when a
// response has already been written.
func (g *Gateway) resolveSecret(w http.ResponseWriter, r *http.Request, srv *registry.Server, claims *auth.Claims) (string, bool) {
	if srv.SecretName == "" {
		return "", true
	}

	scope := ""
	if srv.SecretScoped {
		scope = claims.PrincipalID
	}

	entry, err := g.vault.GetRaw(r.Context(), srv.SecretName, scope)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			g.logger.Warn("secret not configured for tool server",
				"server", srv.Name, "secret", srv.SecretName, "scoped", srv.SecretScoped)
			return "", true
		}
		g.logger.Error("fetching tool server secret failed", "server", srv.Name, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "secret storage unavailable")
		return "", false
	}

	return entry.Value, true
}
