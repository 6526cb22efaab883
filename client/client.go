package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zainbaq/medical-ml/errors"
	"github.com/zainbaq/medical-ml/pkg/retry"
	"github.com/zainbaq/medical-ml/registry"
)

// DefaultTimeout bounds each registry call
const DefaultTimeout = 5 * time.Second

// maxResponseBytes caps how much of a registry response is read
const maxResponseBytes = 8 << 20

// Client talks to the registry on behalf of a prediction service. Failures
// are returned to the caller and never terminate the process.
type Client struct {
	registryURL string
	apiBase     string
	httpClient  *http.Client
	logger      *slog.Logger

	mu         sync.Mutex
	registered map[string]registry.ServiceRecord
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the registry at registryURL (for example
// http://localhost:9000). A trailing slash is ignored.
func New(registryURL string, opts ...Option) *Client {
	base := strings.TrimRight(registryURL, "/")
	c := &Client{
		registryURL: base,
		apiBase:     base + "/api/v1",
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		logger:      slog.Default().With("component", "registry-client"),
		registered:  make(map[string]registry.ServiceRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegistryURL returns the normalized registry base URL
func (c *Client) RegistryURL() string {
	return c.registryURL
}

// Register registers or replaces rec. The record is remembered so that
// RunHeartbeat can register again after a registry restart.
func (c *Client) Register(ctx context.Context, rec registry.ServiceRecord) error {
	payload := rec.Clone()
	if payload.Tags == nil {
		payload.Tags = []string{}
	}

	if err := c.do(ctx, http.MethodPost, "/services/register", payload, nil); err != nil {
		c.logger.Warn("Failed to register service with registry", "service_id", rec.ServiceID, "error", err)
		return err
	}

	c.mu.Lock()
	c.registered[rec.ServiceID] = payload
	c.mu.Unlock()

	c.logger.Info("Service registered", "service_id", rec.ServiceID, "registry", c.registryURL)
	return nil
}

// RegisterWithRetry retries Register on transient failures using cfg.
// Rejected records are not retried.
func (c *Client) RegisterWithRetry(ctx context.Context, rec registry.ServiceRecord, cfg retry.Config) error {
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = retryable
	}
	return retry.Do(ctx, cfg, func() error {
		return c.Register(ctx, rec)
	})
}

// Unregister removes id from the registry
func (c *Client) Unregister(ctx context.Context, id string) error {
	c.mu.Lock()
	delete(c.registered, id)
	c.mu.Unlock()

	if err := c.do(ctx, http.MethodDelete, "/services/"+url.PathEscape(id), nil, nil); err != nil {
		c.logger.Warn("Failed to unregister service from registry", "service_id", id, "error", err)
		return err
	}
	c.logger.Info("Service unregistered", "service_id", id)
	return nil
}

// Heartbeat marks id alive and returns the registry's timestamp
func (c *Client) Heartbeat(ctx context.Context, id string) (string, error) {
	var ack struct {
		Timestamp string `json:"timestamp"`
	}
	if err := c.do(ctx, http.MethodPost, "/services/"+url.PathEscape(id)+"/heartbeat", nil, &ack); err != nil {
		return "", err
	}
	return ack.Timestamp, nil
}

// ListServices returns every registered service
func (c *Client) ListServices(ctx context.Context) ([]registry.ServiceRecord, error) {
	var out []registry.ServiceRecord
	if err := c.do(ctx, http.MethodGet, "/services", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetService returns one service; a 404 satisfies errors.IsNotFound
func (c *Client) GetService(ctx context.Context, id string) (registry.ServiceRecord, error) {
	var rec registry.ServiceRecord
	err := c.do(ctx, http.MethodGet, "/services/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

// SearchByTags returns services carrying any of tags. No tags lists all.
func (c *Client) SearchByTags(ctx context.Context, tags ...string) ([]registry.ServiceRecord, error) {
	path := "/services/search/by-tags"
	if len(tags) > 0 {
		path += "?" + url.Values{"tags": {strings.Join(tags, ",")}}.Encode()
	}

	var out []registry.ServiceRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HealthAll returns the registry's per-service health report
func (c *Client) HealthAll(ctx context.Context) (map[string]registry.ServiceHealth, error) {
	var out map[string]registry.ServiceHealth
	if err := c.do(ctx, http.MethodGet, "/health/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.WrapInvalid(err, "Client", method, "encode request")
		}
		body = bytes.NewReader(data)
	}

	target := c.apiBase + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.WrapInvalid(err, "Client", method, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WrapTransient(err, "Client", method, "call registry")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.WrapTransient(err, "Client", method, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(method, target, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.WrapInvalid(err, "Client", method, "decode response")
	}
	return nil
}
