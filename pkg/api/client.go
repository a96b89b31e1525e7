// Package api is the HTTP client for the remote church-management API.
// It owns request plumbing only: bearer injection, error classification, and
// centralized 401 handling. Idempotent reads retry transient failures with
// backoff; mutations are attempted exactly once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parishops/flock/pkg/apperrors"
	"github.com/parishops/flock/pkg/logging"
	"github.com/parishops/flock/pkg/retry"
)

// TokenSource supplies the bearer token for outgoing requests. An empty
// token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// Client is the API collaborator. Resource sub-clients hang off it.
type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
	backoff *retry.Config

	mu             sync.Mutex
	onUnauthorized func()

	Auth        *AuthAPI
	Groups      *GroupsAPI
	Events      *EventsAPI
	People      *PeopleAPI
	ChurchUsers *ChurchUsersAPI
}

// New creates a Client for the given base URL. tokens may be nil until a
// session exists; SetTokenSource wires it in later.
func New(baseURL string, tokens TokenSource, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  logger.Named("api"),
		backoff: retry.DefaultConfig(),
	}
	c.Auth = &AuthAPI{c}
	c.Groups = &GroupsAPI{c}
	c.Events = &EventsAPI{c}
	c.People = &PeopleAPI{c}
	c.ChurchUsers = &ChurchUsersAPI{c}
	return c, nil
}

// SetTokenSource wires the session's token source into the client.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

// SetUnauthorizedHandler registers the hook invoked whenever the server
// rejects a request with 401. The hook runs at most once per rejection and
// regardless of which caller issued the request.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// errBody is the server's error payload shape.
type errBody struct {
	Message string `json:"message"`
}

// do issues one request and decodes the JSON response into out (when out is
// non-nil). Failures are classified into the apperrors taxonomy.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	c.mu.Lock()
	tokens := c.tokens
	c.mu.Unlock()
	if tokens != nil {
		if token := tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observeRequest(method, path, 0, time.Since(start))
		c.logger.Warn("Request failed before reaching server",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("error", logging.SanitizeError(err)))
		return apperrors.FromStatus(0, "No response received from server")
	}
	defer resp.Body.Close()

	observeRequest(method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized(method, path)
	}

	if resp.StatusCode >= 400 {
		var eb errBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err := json.Unmarshal(raw, &eb); err != nil || eb.Message == "" {
			eb.Message = fmt.Sprintf("Error: %d", resp.StatusCode)
		}
		c.logger.Debug("Request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", eb.Message))
		return apperrors.FromStatus(resp.StatusCode, eb.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleUnauthorized runs the registered hook for a 401 response. The session
// layer clears persisted credentials and redirects to the login boundary.
func (c *Client) handleUnauthorized(method, path string) {
	c.mu.Lock()
	fn := c.onUnauthorized
	c.mu.Unlock()
	c.logger.Info("Authentication rejected by server",
		zap.String("method", method),
		zap.String("path", path))
	if fn != nil {
		fn()
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return retry.Do(ctx, c.backoff, func() error {
		return c.do(ctx, http.MethodGet, path, query, nil, out)
	})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
