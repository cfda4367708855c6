// ABOUTME: Admin HTTP handlers for managing stored secrets
// ABOUTME: Listing is always masked; raw values never leave this process over HTTP

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/2389/escape-gateway/internal/auth"
	"github.com/2389/escape-gateway/internal/secrets"
	"github.com/2389/escape-gateway/internal/store"
)

// SecretResponse is one entry in the masked admin listing.
type SecretResponse struct {
	Name        string    `json:"name"`
	Value       string    `json:"value"`
	Scope       string    `json:"scope,omitempty"`
	Sensitive   bool      `json:"sensitive"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertSecretRequest is the JSON body for POST /admin/secrets.
type UpsertSecretRequest struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Scope       string `json:"scope"`
	Sensitive   bool   `json:"sensitive"`
	Description string `json:"description"`
}

// handleListSecrets handles GET /admin/secrets?scope=...
func (g *Gateway) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")

	entries, err := g.vault.ListMasked(r.Context(), scope)
	if err != nil {
		g.logger.Error("listing secrets failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	response := make([]SecretResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, SecretResponse{
			Name:        entry.Name,
			Value:       entry.Value,
			Scope:       entry.Scope,
			Sensitive:   entry.Sensitive,
			Description: entry.Description,
			UpdatedAt:   entry.UpdatedAt,
		})
	}
	g.writeJSON(w, map[string]any{"secrets": response})
}

// handleUpsertSecret handles POST /admin/secrets.
func (g *Gateway) handleUpsertSecret(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustClaimsFromContext(r.Context())

	var req UpsertSecretRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		g.sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	updatedBy := claims.PrincipalID
	entry := &store.Secret{
		Name:        req.Name,
		Value:       req.Value,
		Scope:       req.Scope,
		Sensitive:   req.Sensitive,
		Description: req.Description,
		UpdatedBy:   &updatedBy,
	}

	if err := g.vault.Set(r.Context(), entry); err != nil {
		if errors.Is(err, secrets.ErrStorageUnavailable) {
			g.sendJSONError(w, http.StatusInternalServerError, "secret storage unavailable")
			return
		}
		g.logger.Error("storing secret failed", "name", req.Name, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSecret handles DELETE /admin/secrets/{name}?scope=...
func (g *Gateway) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	scope := r.URL.Query().Get("scope")

	if err := g.vault.Delete(r.Context(), name, scope); err != nil {
		switch {
		case errors.Is(err, secrets.ErrNotFound):
			g.sendJSONError(w, http.StatusNotFound, "unknown secret: "+name)
		case errors.Is(err, secrets.ErrStorageUnavailable):
			g.sendJSONError(w, http.StatusInternalServerError, "secret storage unavailable")
		default:
			g.logger.Error("deleting secret failed", "name", name, "error", err)
			g.sendJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
