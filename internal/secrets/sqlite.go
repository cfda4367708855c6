// ABOUTME: Primary vault backend adapter over the SQLite secret store
// ABOUTME: Thin passthrough; the store owns upsert and (name, scope) semantics

package secrets

import (
	"context"

	"github.com/2389/escape-gateway/internal/store"
)

// StoreBackend adapts a store.SecretStore into a vault Backend.
type StoreBackend struct {
	store store.SecretStore
}

// NewStoreBackend wraps a secret store as the primary vault backend.
func NewStoreBackend(s store.SecretStore) *StoreBackend {
	return &StoreBackend{store: s}
}

func (b *StoreBackend) Get(ctx context.Context, name, scope string) (*store.Secret, error) {
	return b.store.GetSecretByName(ctx, name, scope)
}

func (b *StoreBackend) Set(ctx context.Context, secret *store.Secret) error {
	return b.store.UpsertSecret(ctx, secret)
}

func (b *StoreBackend) Delete(ctx context.Context, name, scope string) error {
	return b.store.DeleteSecretByName(ctx, name, scope)
}

func (b *StoreBackend) List(ctx context.Context, scope string) ([]*store.Secret, error) {
	return b.store.ListSecrets(ctx, scope)
}

var _ Backend = (*StoreBackend)(nil)
