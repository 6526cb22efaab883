package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds a single probe when none is configured.
const DefaultProbeTimeout = 5 * time.Second

// maxProbeBody caps how much of a health response is read.
const maxProbeBody = 64 << 10

// Prober checks a prediction service's health endpoint over HTTP.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// ProberOption configures a Prober
type ProberOption func(*Prober)

// WithHTTPClient sets the HTTP client used for probes
func WithHTTPClient(c *http.Client) ProberOption {
	return func(p *Prober) {
		if c != nil {
			p.client = c
		}
	}
}

// NewProber creates a prober. A non-positive timeout uses DefaultProbeTimeout.
func NewProber(timeout time.Duration, opts ...ProberOption) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	p := &Prober{
		client:  &http.Client{},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Timeout returns the per-probe timeout
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

type probeBody struct {
	Status string `json:"status"`
}

// Probe performs one GET against url and classifies the result for name.
// It never retries.
func (p *Prober) Probe(ctx context.Context, name, url string) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	st := p.probe(ctx, name, url)
	st.Latency = time.Since(start)
	return st
}

func (p *Prober) probe(ctx context.Context, name, url string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewUnhealthy(name, sanitizeErrorMessage(fmt.Sprintf("build request: %v", err)))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return NewUnhealthy(name, sanitizeErrorMessage(fmt.Sprintf("request failed: %v", err)))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBody))
		return NewUnhealthy(name, fmt.Sprintf("unexpected status code %d", resp.StatusCode))
	}

	var body probeBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProbeBody)).Decode(&body); err != nil {
		return NewUnhealthy(name, "health response is not valid JSON")
	}

	if IsHealthyReport(body.Status) {
		return NewHealthy(name, "reported "+strings.ToLower(body.Status))
	}
	return NewUnhealthy(name, fmt.Sprintf("reported status %q", body.Status))
}

// IsHealthyReport reports whether a service's self-reported status string
// counts as healthy.
func IsHealthyReport(reported string) bool {
	switch strings.ToLower(reported) {
	case "healthy", "ok":
		return true
	default:
		return false
	}
}
