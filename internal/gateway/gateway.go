// ABOUTME: Gateway wiring: stores, session authority, vault, registry, and HTTP server
// ABOUTME: Owns startup, route registration, and graceful shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/escape-gateway/internal/auth"
	"github.com/2389/escape-gateway/internal/config"
	"github.com/2389/escape-gateway/internal/registry"
	"github.com/2389/escape-gateway/internal/secrets"
	"github.com/2389/escape-gateway/internal/store"
)

// Gateway is the assembled service: persistence, session authority,
// credential store, tool registry, and the HTTP surface over them.
type Gateway struct {
	config     *config.Config
	store      *store.SQLiteStore
	authority  *auth.Authority
	vault      *secrets.Vault
	registry   *registry.Registry
	dispatch   *registry.Client
	httpServer *http.Server
	logger     *slog.Logger
}

// buildFallback constructs the configured secondary vault backend.
func buildFallback(ctx context.Context, cfg *config.Config) (secrets.Backend, error) {
	switch cfg.Secrets.Fallback {
	case "file":
		return secrets.NewFileBackend(cfg.Secrets.FilePath)
	case "redis":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return secrets.NewRedisBackend(ctx, cfg.Secrets.RedisURL)
	default:
		return nil, fmt.Errorf("unknown secrets fallback %q", cfg.Secrets.Fallback)
	}
}

// New assembles a gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	codec, err := auth.NewJWTCodec([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("initializing credential codec: %w", err)
	}

	authority := auth.NewAuthority(sqlStore, sqlStore, sqlStore, codec, auth.Config{
		SessionTTL:       cfg.Auth.SessionTTL,
		LoginWindow:      cfg.Auth.LoginWindow,
		MaxLoginFailures: cfg.Auth.MaxLoginFailures,
	})

	fallback, err := buildFallback(context.Background(), cfg)
	if err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("initializing secrets fallback: %w", err)
	}
	vault := secrets.NewVault(secrets.NewStoreBackend(sqlStore), fallback)

	servers, err := registry.LoadServers(cfg.Servers.RegistryPath)
	if err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("loading server registry: %w", err)
	}
	dispatch := registry.NewClient(cfg.Servers.DispatchTimeout)
	reg := registry.New(servers, dispatch, cfg.Servers.ToolCacheTTL)

	gw := &Gateway{
		config:    cfg,
		store:     sqlStore,
		authority: authority,
		vault:     vault,
		registry:  reg,
		dispatch:  dispatch,
		logger:    logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	gw.registerRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("gateway assembled",
		"servers", len(servers),
		"secrets_fallback", cfg.Secrets.Fallback)

	return gw, nil
}

// registerRoutes attaches handlers to the mux using method patterns.
func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	requireSession := auth.RequireSession(g.authority)
	requireAdmin := auth.RequireAdmin()

	// Health - no auth required
	mux.HandleFunc("GET /healthz", g.handleHealth)

	// Auth surface
	mux.HandleFunc("POST /auth/login", g.handleLogin)
	mux.HandleFunc("POST /auth/logout", g.handleLogout)
	mux.HandleFunc("POST /auth/refresh", g.handleRefresh)
	mux.Handle("GET /auth/user", requireSession(http.HandlerFunc(g.handleCurrentUser)))

	// Discovery and dispatch - session required
	mux.Handle("GET /servers", requireSession(http.HandlerFunc(g.handleListServers)))
	mux.Handle("GET /servers/{name}/tools", requireSession(http.HandlerFunc(g.handleListTools)))
	mux.Handle("POST /servers/{name}/tools/{tool}", requireSession(http.HandlerFunc(g.handleInvoke)))
	mux.Handle("POST /tools", requireSession(http.HandlerFunc(g.handleInvokeByBody)))

	// Secrets admin surface - admin role required
	adminChain := func(h http.Handler) http.Handler { return requireSession(requireAdmin(h)) }
	mux.Handle("GET /admin/secrets", adminChain(http.HandlerFunc(g.handleListSecrets)))
	mux.Handle("POST /admin/secrets", adminChain(http.HandlerFunc(g.handleUpsertSecret)))
	mux.Handle("DELETE /admin/secrets/{name}", adminChain(http.HandlerFunc(g.handleDeleteSecret)))
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Handler exposes the gateway's HTTP handler for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"status":"ok"}`)
}
