// Package rest implements the backend collaborator over HTTP against a
// GoTrue-compatible auth API and a PostgREST-compatible table API.
package rest

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

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/backend"
	"github.com/Ithachiuchiha/e-commers-site/internal/domain"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/localstore"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 1 << 16

	authPrefix = "auth/v1/"
	restPrefix = "rest/v1/"
)

var (
	errBaseURLRequired = errors.New("rest client: base URL is required")
	errAnonKeyRequired = errors.New("rest client: anon key is required")
	errLocalRequired   = errors.New("rest client: local store is required")
)

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Config wires a Client.
type Config struct {
	BaseURL         string
	AnonKey         string
	ProjectRef      string
	ApplicationName string
	HTTPClient      HTTPClient
	Timeout         time.Duration
	// Local persists the auth session across process restarts.
	Local  localstore.Store
	Clock  func() time.Time
	Logger *zap.Logger
}

// Client is both the AuthClient and the Tables of a hosted backend.
type Client struct {
	base       *url.URL
	anonKey    string
	appName    string
	storageKey string
	http       HTTPClient
	local      localstore.Store
	now        func() time.Time
	logger     *zap.Logger

	mu       sync.Mutex
	session  *domain.Session
	loaded   bool
	handlers map[int]backend.AuthStateHandler
	nextID   int
}

// New validates cfg and constructs a Client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errBaseURLRequired
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("rest client: invalid base URL %q", raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, errAnonKeyRequired
	}
	if cfg.Local == nil {
		return nil, errLocalRequired
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ref := strings.TrimSpace(cfg.ProjectRef)
	if ref == "" {
		ref = strings.Split(base.Hostname(), ".")[0]
	}

	return &Client{
		base:       base,
		anonKey:    strings.TrimSpace(cfg.AnonKey),
		appName:    strings.TrimSpace(cfg.ApplicationName),
		storageKey: StorageKey(ref),
		http:       httpClient,
		local:      cfg.Local,
		now:        func() time.Time { return clock().UTC() },
		logger:     observability.OrNop(cfg.Logger).Named("rest"),
		handlers:   map[int]backend.AuthStateHandler{},
	}, nil
}

// StorageKey is the local storage key holding the persisted session for a project.
func StorageKey(projectRef string) string {
	return "sb-" + projectRef + "-auth-token"
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	prefer  []string
	anonKey bool
}

// do issues req and decodes a successful JSON response into out.
func (c *Client) do(ctx context.Context, op string, req request, out any) (err error) {
	ctx, span := observability.StartSpan(ctx, "rest", op,
		attribute.String("http.method", req.method),
		attribute.String("http.route", req.path),
	)
	defer func() { observability.EndSpan(span, err) }()

	endpoint := c.base.ResolveReference(&url.URL{Path: req.path, RawQuery: req.query.Encode()})

	var body io.Reader
	if req.body != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(req.body); err != nil {
			return backend.WrapError(op, backend.KindInvalidInput, fmt.Errorf("encode payload: %w", err))
		}
		body = &buf
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint.String(), body)
	if err != nil {
		return backend.WrapError(op, backend.KindUnknown, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.bearer(ctx, req.anonKey))
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if len(req.prefer) > 0 {
		httpReq.Header.Set("Prefer", strings.Join(req.prefer, ","))
	}
	if c.appName != "" {
		httpReq.Header.Set("X-Application-Name", c.appName)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return backend.WrapError(op, backend.KindUnavailable, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		err := errorFromResponse(op, resp)
		c.logger.Debug("backend request failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", backend.KindOf(err).String()),
		)
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return backend.WrapError(op, backend.KindUnknown, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// bearer returns the held access token, or the anon key for anonymous calls.
func (c *Client) bearer(ctx context.Context, anon bool) string {
	if anon {
		return c.anonKey
	}
	if session := c.loadSession(ctx); session != nil && session.AccessToken != "" {
		return session.AccessToken
	}
	return c.anonKey
}
