// ABOUTME: File-based fallback backend storing secrets as a JSON document
// ABOUTME: Writes atomically via temp file and rename; guarded by a mutex

package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/2389/escape-gateway/internal/store"
)

// FileBackend stores secrets in a single JSON file.
// Intended as a fallback for small deployments; every operation reads and
// rewrites the whole document.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend creates a file backend at the given path.
// Parent directories are created if needed.
func NewFileBackend(path string) (*FileBackend, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating secrets directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

type fileDocument struct {
	Secrets []*store.Secret `json:"secrets"`
}

func fileKey(name, scope string) string {
	return scope + "\x00" + name
}

// load reads the document; a missing file is an empty document.
func (b *FileBackend) load() (*fileDocument, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return &fileDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return &doc, nil
}

// save writes the document atomically.
func (b *FileBackend) save(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding secrets file: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing secrets file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing secrets file: %w", err)
	}
	return nil
}

func (b *FileBackend) Get(ctx context.Context, name, scope string) (*store.Secret, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return nil, err
	}

	key := fileKey(name, scope)
	for _, s := range doc.Secrets {
		if fileKey(s.Name, s.Scope) == key {
			c := *s
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (b *FileBackend) Set(ctx context.Context, secret *store.Secret) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return err
	}

	c := *secret
	key := fileKey(secret.Name, secret.Scope)
	replaced := false
	for i, s := range doc.Secrets {
		if fileKey(s.Name, s.Scope) == key {
			// Keep the original identity, matching upsert semantics
			c.ID = s.ID
			c.CreatedAt = s.CreatedAt
			doc.Secrets[i] = &c
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Secrets = append(doc.Secrets, &c)
	}

	return b.save(doc)
}

func (b *FileBackend) Delete(ctx context.Context, name, scope string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return err
	}

	key := fileKey(name, scope)
	for i, s := range doc.Secrets {
		if fileKey(s.Name, s.Scope) == key {
			doc.Secrets = append(doc.Secrets[:i], doc.Secrets[i+1:]...)
			return b.save(doc)
		}
	}
	return store.ErrNotFound
}

func (b *FileBackend) List(ctx context.Context, scope string) ([]*store.Secret, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return nil, err
	}

	var out []*store.Secret
	for _, s := range doc.Secrets {
		if scope != "" && s.Scope != scope {
			continue
		}
		c := *s
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

var _ Backend = (*FileBackend)(nil)
