package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zainbaq/medical-ml/health"
	"github.com/zainbaq/medical-ml/metric"
)

// Service health values on the wire
const (
	Healthy   = "healthy"
	Unhealthy = "unhealthy"
)

// DefaultProbeConcurrency bounds concurrent active probes.
const DefaultProbeConcurrency = 16

// ServiceHealth is one entry of the aggregate health report
type ServiceHealth struct {
	ServiceName   string  `json:"service_name"`
	Status        string  `json:"status"`
	BaseURL       string  `json:"base_url"`
	LastHeartbeat *string `json:"last_heartbeat"`
}

// HealthChecker classifies a snapshot of records as healthy or unhealthy.
// It never fails: anything that cannot be confirmed healthy is unhealthy.
type HealthChecker interface {
	Check(ctx context.Context, records []ServiceRecord) map[string]ServiceHealth
}

func newServiceHealth(rec ServiceRecord, healthy bool) ServiceHealth {
	status := Unhealthy
	if healthy {
		status = Healthy
	}
	return ServiceHealth{
		ServiceName:   rec.ServiceName,
		Status:        status,
		BaseURL:       rec.BaseURL,
		LastHeartbeat: rec.LastHeartbeat,
	}
}

// PassiveChecker classifies by heartbeat age only; it makes no outbound calls.
type PassiveChecker struct {
	store   *Store
	timeout time.Duration
}

// NewPassiveChecker creates a checker using store's heartbeats and timeout
func NewPassiveChecker(store *Store, timeout time.Duration) *PassiveChecker {
	return &PassiveChecker{store: store, timeout: timeout}
}

// Check implements HealthChecker
func (c *PassiveChecker) Check(_ context.Context, records []ServiceRecord) map[string]ServiceHealth {
	out := make(map[string]ServiceHealth, len(records))
	for _, rec := range records {
		out[rec.ServiceID] = newServiceHealth(rec, c.store.IsHealthy(rec.ServiceID, c.timeout))
	}
	return out
}

// ActiveChecker probes every service's health endpoint concurrently. A slow
// service costs at most one probe timeout and does not delay the others
// beyond that.
type ActiveChecker struct {
	prober      *health.Prober
	monitor     *health.Monitor
	concurrency int
	metrics     *metric.Metrics
	logger      *slog.Logger
}

// ActiveOption configures an ActiveChecker
type ActiveOption func(*ActiveChecker)

// WithConcurrency limits concurrent probes
func WithConcurrency(n int) ActiveOption {
	return func(c *ActiveChecker) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithProbeMetrics counts probe results in m
func WithProbeMetrics(m *metric.Metrics) ActiveOption {
	return func(c *ActiveChecker) {
		c.metrics = m
	}
}

// WithMonitor records each probe's status in m, keyed by service id
func WithMonitor(m *health.Monitor) ActiveOption {
	return func(c *ActiveChecker) {
		if m != nil {
			c.monitor = m
		}
	}
}

// WithCheckerLogger sets the logger
func WithCheckerLogger(l *slog.Logger) ActiveOption {
	return func(c *ActiveChecker) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewActiveChecker creates a checker that probes with prober
func NewActiveChecker(prober *health.Prober, opts ...ActiveOption) *ActiveChecker {
	c := &ActiveChecker{
		prober:      prober,
		monitor:     health.NewMonitor(),
		concurrency: DefaultProbeConcurrency,
		logger:      slog.Default().With("component", "health-checker"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Monitor returns the last observed probe status per service id
func (c *ActiveChecker) Monitor() *health.Monitor {
	return c.monitor
}

// Check implements HealthChecker
func (c *ActiveChecker) Check(ctx context.Context, records []ServiceRecord) map[string]ServiceHealth {
	var (
		mu  sync.Mutex
		out = make(map[string]ServiceHealth, len(records))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, rec := range records {
		g.Go(func() error {
			st := c.prober.Probe(gctx, rec.ServiceID, rec.HealthURL())
			if !st.Healthy {
				c.logger.Warn("Health check failed",
					"service_id", rec.ServiceID, "url", rec.HealthURL(), "reason", st.Message)
			}
			c.monitor.Update(rec.ServiceID, st)
			if c.metrics != nil {
				c.metrics.RecordProbe(st.Healthy)
			}

			mu.Lock()
			out[rec.ServiceID] = newServiceHealth(rec, st.Healthy)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	c.prune(out)
	return out
}

// prune drops monitor entries for services that were not part of this check.
func (c *ActiveChecker) prune(current map[string]ServiceHealth) {
	for _, name := range c.monitor.Names() {
		if _, ok := current[name]; !ok {
			c.monitor.Remove(name)
		}
	}
}
