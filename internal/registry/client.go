// ABOUTME: HTTP client for downstream tool servers: listing and dispatch
// ABOUTME: Transport failures and timeouts surface as ErrDownstreamUnavailable

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrDownstreamUnavailable is returned when a tool server cannot be reached
// or does not answer within the dispatch timeout.
var ErrDownstreamUnavailable = errors.New("tool server unavailable")

// maxResponseBytes caps relayed downstream bodies.
const maxResponseBytes = 4 << 20

// InvokeResult carries a downstream tool response verbatim.
type InvokeResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client talks to downstream tool servers over HTTP.
type Client struct {
	httpClient     *http.Client
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// NewClient creates a downstream client with the given default timeout.
// Per-server timeouts from the registry override the default.
func NewClient(defaultTimeout time.Duration) *Client {
	return &Client{
		httpClient:     &http.Client{},
		defaultTimeout: defaultTimeout,
		logger:         slog.Default().With("component", "dispatch"),
	}
}

func (c *Client) timeoutFor(srv *Server) time.Duration {
	if srv.Timeout > 0 {
		return srv.Timeout
	}
	return c.defaultTimeout
}

type toolsResponse struct {
	Tools []*Tool `json:"tools"`
}

// FetchTools retrieves the tool listing from GET {endpoint}/tools.
func (c *Client) FetchTools(ctx context.Context, srv *Server) ([]*Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(srv))
	defer cancel()

	url := strings.TrimSuffix(srv.Endpoint, "/") + "/tools"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building tools request for %s: %w", srv.Name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownstreamUnavailable, srv.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrDownstreamUnavailable, srv.Name, resp.StatusCode)
	}

	var parsed toolsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding tools from %s: %w", srv.Name, err)
	}

	c.logger.Debug("fetched tool listing", "server", srv.Name, "tools", len(parsed.Tools))
	return parsed.Tools, nil
}

// InvokeOptions carries per-call context for a dispatch.
type InvokeOptions struct {
	PrincipalID string
	Role        string
	Secret      string // injected as a bearer credential when non-empty
}

// Invoke forwards a tool call to POST {endpoint}/tools/{tool} and relays the
// downstream response. The request body is passed through unmodified.
// Transport failures and timeouts return ErrDownstreamUnavailable; any HTTP
// response from the downstream, error or not, is relayed as an InvokeResult.
func (c *Client) Invoke(ctx context.Context, srv *Server, toolName string, payload []byte, opts InvokeOptions) (*InvokeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeoutFor(srv))
	defer cancel()

	url := strings.TrimSuffix(srv.Endpoint, "/") + "/tools/" + toolName
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building invoke request for %s/%s: %w", srv.Name, toolName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Escape-Principal", opts.PrincipalID)
	req.Header.Set("X-Escape-Role", opts.Role)
	if opts.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Secret)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Never echo the request; it may carry credentials
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrDownstreamUnavailable, srv.Name, toolName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response from %s/%s: %v", ErrDownstreamUnavailable, srv.Name, toolName, err)
	}

	c.logger.Info("dispatched tool call",
		"server", srv.Name,
		"tool", toolName,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	return &InvokeResult{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

var _ toolLister = (*Client)(nil)
