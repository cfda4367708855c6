// ABOUTME: Tool server registry loaded from a TOML descriptor file
// ABOUTME: Caches downstream tool listings with a TTL; lookups are read-locked

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Registry errors
var (
	ErrUnknownServer = errors.New("unknown tool server")
	ErrUnknownTool   = errors.New("unknown tool")
)

// Server describes one downstream tool server.
type Server struct {
	Name         string `toml:"name"`
	Label        string `toml:"label"`
	Endpoint     string `toml:"endpoint"`
	SecretName   string `toml:"secret_name"`
	SecretScoped bool   `toml:"secret_scoped"`
	TimeoutRaw   string `toml:"timeout"`

	Timeout time.Duration `toml:"-"`
}

// Tool is one invokable tool advertised by a downstream server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type registryFile struct {
	Servers []*Server `toml:"server"`
}

// LoadServers parses a servers.toml file and validates the descriptors.
func LoadServers(path string) ([]*Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading server registry: %w", err)
	}

	var file registryFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing server registry: %w", err)
	}

	seen := make(map[string]bool)
	for _, srv := range file.Servers {
		if srv.Name == "" {
			return nil, fmt.Errorf("server registry: name is required")
		}
		if seen[srv.Name] {
			return nil, fmt.Errorf("server registry: duplicate server %q", srv.Name)
		}
		seen[srv.Name] = true

		if srv.Endpoint == "" {
			return nil, fmt.Errorf("server registry: endpoint is required for %q", srv.Name)
		}
		u, err := url.Parse(srv.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("server registry: invalid endpoint %q for %q", srv.Endpoint, srv.Name)
		}

		if srv.Label == "" {
			srv.Label = srv.Name
		}
		if srv.TimeoutRaw != "" {
			srv.Timeout, err = time.ParseDuration(srv.TimeoutRaw)
			if err != nil {
				return nil, fmt.Errorf("server registry: invalid timeout %q for %q: %w", srv.TimeoutRaw, srv.Name, err)
			}
		}
	}

	return file.Servers, nil
}

// toolLister fetches the live tool listing of one server.
type toolLister interface {
	FetchTools(ctx context.Context, server *Server) ([]*Tool, error)
}

type cacheEntry struct {
	tools     []*Tool
	fetchedAt time.Time
}

// Registry holds the configured tool servers and a TTL cache of their
// tool listings.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*Server
	order   []string
	cache   map[string]*cacheEntry

	lister   toolLister
	cacheTTL time.Duration
	logger   *slog.Logger
}

// New creates a registry over the given servers.
func New(servers []*Server, lister toolLister, cacheTTL time.Duration) *Registry {
	r := &Registry{
		servers:  make(map[string]*Server),
		cache:    make(map[string]*cacheEntry),
		lister:   lister,
		cacheTTL: cacheTTL,
		logger:   slog.Default().With("component", "registry"),
	}
	for _, srv := range servers {
		r.servers[srv.Name] = srv
		r.order = append(r.order, srv.Name)
	}
	return r
}

// ListServers returns the configured servers in file order.
func (r *Registry) ListServers() []*Server {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Server, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.servers[name])
	}
	return out
}

// GetServer returns a server by name.
// Returns ErrUnknownServer if no such server is configured.
func (r *Registry) GetServer(name string) (*Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	srv, ok := r.servers[name]
	if !ok {
		return nil, ErrUnknownServer
	}
	return srv, nil
}

// ListTools returns the tool listing for a server, served from cache when
// fresh. A stale cache entry is returned when the downstream fetch fails,
// so transient downstream outages don't blank the listing.
func (r *Registry) ListTools(ctx context.Context, serverName string) ([]*Tool, error) {
	srv, err := r.GetServer(serverName)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	entry, ok := r.cache[serverName]
	r.mu.RUnlock()

	if ok && time.Since(entry.fetchedAt) < r.cacheTTL {
		return entry.tools, nil
	}

	tools, err := r.lister.FetchTools(ctx, srv)
	if err != nil {
		if ok {
			r.logger.Warn("tool listing fetch failed, serving stale cache",
				"server", serverName, "error", err)
			return entry.tools, nil
		}
		return nil, err
	}

	r.mu.Lock()
	r.cache[serverName] = &cacheEntry{tools: tools, fetchedAt: time.Now()}
	r.mu.Unlock()

	return tools, nil
}

// ResolveTool checks that the named tool exists on the server.
// Returns ErrUnknownServer or ErrUnknownTool accordingly.
func (r *Registry) ResolveTool(ctx context.Context, serverName, toolName string) (*Server, *Tool, error) {
	srv, err := r.GetServer(serverName)
	if err != nil {
		return nil, nil, err
	}

	tools, err := r.ListTools(ctx, serverName)
	if err != nil {
		return nil, nil, err
	}

	for _, tool := range tools {
		if tool.Name == toolName {
			return srv, tool, nil
		}
	}
	return nil, nil, ErrUnknownTool
}

// Invalidate drops the cached tool listing for a server.
func (r *Registry) Invalidate(serverName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, serverName)
}
