// ABOUTME: Tests for the credential store fallback, masking, and write paths
// ABOUTME: Uses an in-memory backend and a failing backend stub

package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/escape-gateway/internal/store"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	secrets map[string]*store.Secret
}

func newMemBackend() *memBackend {
	return &memBackend{secrets: make(map[string]*store.Secret)}
}

func (m *memBackend) key(name, scope string) string { return scope + "/" + name }

func (m *memBackend) Get(ctx context.Context, name, scope string) (*store.Secret, error) {
	s, ok := m.secrets[m.key(name, scope)]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *memBackend) Set(ctx context.Context, secret *store.Secret) error {
	c := *secret
	m.secrets[m.key(secret.Name, secret.Scope)] = &c
	return nil
}

func (m *memBackend) Delete(ctx context.Context, name, scope string) error {
	k := m.key(name, scope)
	if _, ok := m.secrets[k]; !ok {
		return store.ErrNotFound
	}
	delete(m.secrets, k)
	return nil
}

func (m *memBackend) List(ctx context.Context, scope string) ([]*store.Secret, error) {
	var out []*store.Secret
	for _, s := range m.secrets {
		if scope != "" && s.Scope != scope {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

// failBackend fails every operation with an availability error.
type failBackend struct{}

var errBackendDown = errors.New("backend down")

func (failBackend) Get(ctx context.Context, name, scope string) (*store.Secret, error) {
	return nil, errBackendDown
}
func (failBackend) Set(ctx context.Context, secret *store.Secret) error { return errBackendDown }
func (failBackend) Delete(ctx context.Context, name, scope string) error {
	return errBackendDown
}
func (failBackend) List(ctx context.Context, scope string) ([]*store.Secret, error) {
	return nil, errBackendDown
}

func sensitiveSecret(name, value string) *store.Secret {
	return &store.Secret{Name: name, Value: value, Sensitive: true}
}

func TestVault_SetAndGetRaw(t *testing.T) {
	vault := NewVault(newMemBackend(), nil)
	ctx := context.Background()

	require.NoError(t, vault.Set(ctx, sensitiveSecret("github-token", "ghp_abc123")))

	raw, err := vault.GetRaw(ctx, "github-token", "")
	require.NoError(t, err)
	assert.Equal(t, "ghp_abc123", raw.Value)
	assert.NotEmpty(t, raw.ID)
	assert.False(t, raw.CreatedAt.IsZero())
}

func TestVault_GetMasksSensitiveValues(t *testing.T) {
	vault := NewVault(newMemBackend(), nil)
	ctx := context.Background()

	require.NoError(t, vault.Set(ctx, sensitiveSecret("github-token", "ghp_abc123")))

	got, err := vault.Get(ctx, "github-token", "")
	require.NoError(t, err)
	assert.Equal(t, MaskPlaceholder, got.Value)
	assert.NotContains(t, got.Value, "ghp_abc123")
}

func TestVault_GetDoesNotMaskNonSensitive(t *testing.T) {
	vault := NewVault(newMemBackend(), nil)
	ctx := context.Background()

	require.NoError(t, vault.Set(ctx, &store.Secret{Name: "endpoint", Value: "https://api.example.com"}))

	got, err := vault.Get(ctx, "endpoint", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", got.Value)
}

func TestVault_GetFallsBackWhenPrimaryDown(t *testing.T) {
	fallback := newMemBackend()
	ctx := context.Background()

	require.NoError(t, fallback.Set(ctx, &store.Secret{Name: "api-key", Value: "from-fallback", Sensitive: true}))

	vault := NewVault(failBackend{}, fallback)

	raw, err := vault.GetRaw(ctx, "api-key", "")
	require.NoError(t, err)
	assert.Equal(t, "from-fallback", raw.Value)
}

func TestVault_GetMissingDoesNotFallBack(t *testing.T) {
	primary := newMemBackend()
	fallback := newMemBackend()
	ctx := context.Background()

	// The fallback holds a stale entry the primary no longer has
	require.NoError(t, fallback.Set(ctx, &store.Secret{Name: "stale", Value: "old"}))

	vault := NewVault(primary, fallback)

	_, err := vault.GetRaw(ctx, "stale", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVault_GetBothBackendsDown(t *testing.T) {
	vault := NewVault(failBackend{}, failBackend{})

	_, err := vault.GetRaw(context.Background(), "anything", "")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestVault_SetFallsBackWhenPrimaryDown(t *testing.T) {
	fallback := newMemBackend()
	vault := NewVault(failBackend{}, fallback)
	ctx := context.Background()

	err := vault.Set(ctx, sensitiveSecret("api-key", "value-1"))
	require.NoError(t, err)

	stored, err := fallback.Get(ctx, "api-key", "")
	require.NoError(t, err)
	assert.Equal(t, "value-1", stored.Value)
}

func TestVault_SetBothBackendsDown(t *testing.T) {
	vault := NewVault(failBackend{}, failBackend{})

	err := vault.Set(context.Background(), sensitiveSecret("api-key", "value-1"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestVault_SetMirrorsToFallback(t *testing.T) {
	primary := newMemBackend()
	fallback := newMemBackend()
	vault := NewVault(primary, fallback)
	ctx := context.Background()

	require.NoError(t, vault.Set(ctx, sensitiveSecret("api-key", "value-1")))

	mirrored, err := fallback.Get(ctx, "api-key", "")
	require.NoError(t, err)
	assert.Equal(t, "value-1", mirrored.Value)
}

func TestVault_Delete(t *testing.T) {
	primary := newMemBackend()
	fallback := newMemBackend()
	vault := NewVault(primary, fallback)
	ctx := context.Background()

	require.NoError(t, vault.Set(ctx, sensitiveSecret("api-key", "value-1")))
	require.NoError(t, vault.Delete(ctx, "api-key", ""))

	_, err := vault.GetRaw(ctx, "api-key", "")
	assert.ErrorIs(t, err, ErrNotFound)

	err = vault.Delete(ctx, "api-key", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVault_ListMaskedNeverExposesSensitiveValues(t *testing.T) {
	vault := NewVault(newMemBackend(), nil)
	ctx := context.Background()

	require.NoError(t, vault.Set(ctx, sensitiveSecret("token-a", "raw-value-a")))
	require.NoError(t, vault.Set(ctx, sensitiveSecret("token-b", "raw-value-b")))

	listed, err := vault.ListMasked(ctx, "")
	require.NoError(t, err)
	require.Len(t, listed, 2)

	for _, s := range listed {
		assert.Equal(t, MaskPlaceholder, s.Value)
		assert.NotContains(t, s.Value, "raw-value")
	}
}

func TestVault_ListMaskedDegradesToEmpty(t *testing.T) {
	vault := NewVault(failBackend{}, failBackend{})

	listed, err := vault.ListMasked(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, listed)
}
