// ABOUTME: Credential store with a primary backend and an availability fallback
// ABOUTME: Reads fall through on backend failure; writes go primary-first with fallback

package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/escape-gateway/internal/store"
)

// ErrNotFound is returned when a secret does not exist in any reachable backend
var ErrNotFound = errors.New("secret not found")

// ErrStorageUnavailable is returned when neither backend can serve the operation
var ErrStorageUnavailable = errors.New("secret storage unavailable")

// MaskPlaceholder replaces sensitive values in listings and display reads
const MaskPlaceholder = "••••••••"

// Backend is a single secret storage backend.
// Implementations return store.ErrNotFound for missing entries and any other
// error for availability problems.
type Backend interface {
	Get(ctx context.Context, name, scope string) (*store.Secret, error)
	Set(ctx context.Context, secret *store.Secret) error
	Delete(ctx context.Context, name, scope string) error
	List(ctx context.Context, scope string) ([]*store.Secret, error)
}

// Vault is the credential store. It serves reads from the primary backend,
// falling back to the secondary when the primary is unavailable. Missing
// entries never trigger fallback.
type Vault struct {
	primary  Backend
	fallback Backend
	logger   *slog.Logger
}

// NewVault creates a credential store over the given backends.
// The fallback may be nil, in which case only the primary is used.
func NewVault(primary, fallback Backend) *Vault {
	return &Vault{
		primary:  primary,
		fallback: fallback,
		logger:   slog.Default().With("component", "secrets"),
	}
}

// get reads a secret, consulting the fallback only on availability errors.
func (v *Vault) get(ctx context.Context, name, scope string) (*store.Secret, error) {
	secret, err := v.primary.Get(ctx, name, scope)
	if err == nil {
		return secret, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}

	if v.fallback == nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	v.logger.Warn("primary secret backend unavailable, using fallback", "name", name, "error", err)

	secret, ferr := v.fallback.Get(ctx, name, scope)
	if ferr == nil {
		return secret, nil
	}
	if errors.Is(ferr, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, ferr)
}

// Get returns a secret with sensitive values masked. Callers that need the
// real value use GetRaw.
func (v *Vault) Get(ctx context.Context, name, scope string) (*store.Secret, error) {
	secret, err := v.get(ctx, name, scope)
	if err != nil {
		return nil, err
	}
	return masked(secret), nil
}

// GetRaw returns a secret with its real value. Internal use only; raw values
// must never reach list or display responses.
func (v *Vault) GetRaw(ctx context.Context, name, scope string) (*store.Secret, error) {
	return v.get(ctx, name, scope)
}

// Set stores a secret, writing to the primary backend first. If the primary
// write fails, the fallback is tried; only when both fail does the write
// error with ErrStorageUnavailable.
func (v *Vault) Set(ctx context.Context, secret *store.Secret) error {
	if secret.ID == "" {
		secret.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = now
	}
	secret.UpdatedAt = now

	perr := v.primary.Set(ctx, secret)
	if perr == nil {
		if v.fallback != nil {
			// Best-effort mirror so the fallback can serve reads later
			if err := v.fallback.Set(ctx, secret); err != nil {
				v.logger.Warn("mirroring secret to fallback failed", "name", secret.Name, "error", err)
			}
		}
		return nil
	}

	if v.fallback == nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, perr)
	}

	v.logger.Warn("primary secret backend write failed, using fallback", "name", secret.Name, "error", perr)

	if ferr := v.fallback.Set(ctx, secret); ferr != nil {
		return fmt.Errorf("%w: primary: %v, fallback: %v", ErrStorageUnavailable, perr, ferr)
	}
	return nil
}

// Delete removes a secret from every backend that holds it.
// Returns ErrNotFound when no reachable backend had the entry.
func (v *Vault) Delete(ctx context.Context, name, scope string) error {
	perr := v.primary.Delete(ctx, name, scope)

	var ferr error = store.ErrNotFound
	if v.fallback != nil {
		ferr = v.fallback.Delete(ctx, name, scope)
	}

	if perr == nil || ferr == nil {
		return nil
	}
	if errors.Is(perr, store.ErrNotFound) && errors.Is(ferr, store.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(perr, store.ErrNotFound) || errors.Is(ferr, store.ErrNotFound) {
		// One backend was unreachable, the other had no entry
		if !errors.Is(perr, store.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, perr)
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, ferr)
	}
	return fmt.Errorf("%w: primary: %v, fallback: %v", ErrStorageUnavailable, perr, ferr)
}

// ListMasked returns secrets for a scope with sensitive values masked.
// Falls back to the secondary backend when the primary is unavailable;
// when neither is reachable an empty list is returned rather than an error,
// so listings degrade instead of failing the page.
func (v *Vault) ListMasked(ctx context.Context, scope string) ([]*store.Secret, error) {
	secrets, err := v.primary.List(ctx, scope)
	if err != nil {
		if v.fallback == nil {
			v.logger.Warn("secret backends unavailable for list", "error", err)
			return []*store.Secret{}, nil
		}
		v.logger.Warn("primary secret backend unavailable for list, using fallback", "error", err)
		secrets, err = v.fallback.List(ctx, scope)
		if err != nil {
			v.logger.Warn("secret backends unavailable for list", "error", err)
			return []*store.Secret{}, nil
		}
	}

	out := make([]*store.Secret, 0, len(secrets))
	for _, s := range secrets {
		out = append(out, masked(s))
	}
	return out, nil
}

// masked returns a copy with the value replaced when the entry is sensitive.
func masked(s *store.Secret) *store.Secret {
	c := *s
	if c.Sensitive {
		c.Value = MaskPlaceholder
	}
	return &c
}
