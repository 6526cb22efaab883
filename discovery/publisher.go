package discovery

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/zainbaq/medical-ml/errors"
	"github.com/zainbaq/medical-ml/metric"
	"github.com/zainbaq/medical-ml/pkg/worker"
	"github.com/zainbaq/medical-ml/registry"
)

// MessagePublisher is the part of natsclient.Client the publisher needs
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Publisher forwards store events to NATS. It implements
// registry.EventSink; Emit only queues the event, a worker pool does the
// publishing, so store callers never wait on the network.
type Publisher struct {
	conn    MessagePublisher
	prefix  string
	pool    *worker.Pool[registry.Event]
	metrics *metric.Metrics
	logger  *slog.Logger
}

// PublisherOption configures a Publisher
type PublisherOption func(*publisherConfig)

type publisherConfig struct {
	workers   int
	queueSize int
	registry  *metric.MetricsRegistry
	logger    *slog.Logger
}

// WithWorkers sets the number of publishing goroutines and the queue size
func WithWorkers(workers, queueSize int) PublisherOption {
	return func(c *publisherConfig) {
		c.workers = workers
		c.queueSize = queueSize
	}
}

// WithPublisherMetrics exports pool metrics and counts dropped events
func WithPublisherMetrics(r *metric.MetricsRegistry) PublisherOption {
	return func(c *publisherConfig) {
		c.registry = r
	}
}

// WithPublisherLogger sets the logger
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(c *publisherConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewPublisher creates a publisher for subjects under prefix
func NewPublisher(conn MessagePublisher, prefix string, opts ...PublisherOption) *Publisher {
	cfg := &publisherConfig{
		workers:   2,
		queueSize: 256,
		logger:    slog.Default().With("component", "event-publisher"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	p := &Publisher{
		conn:   conn,
		prefix: prefix,
		logger: cfg.logger,
	}

	var poolOpts []worker.Option[registry.Event]
	if cfg.registry != nil {
		p.metrics = cfg.registry.CoreMetrics()
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[registry.Event](cfg.registry, "medreg_event_publisher"))
	}
	p.pool = worker.NewPool(cfg.workers, cfg.queueSize, p.publish, poolOpts...)
	return p
}

// Start launches the publishing workers
func (p *Publisher) Start(ctx context.Context) error {
	if err := p.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "Publisher", "Start", "start worker pool")
	}
	return nil
}

// Stop waits up to timeout for queued events to be published
func (p *Publisher) Stop(timeout time.Duration) error {
	if err := p.pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "Publisher", "Stop", "drain queue")
	}
	return nil
}

// Emit queues ev for publishing. Events are dropped when the queue is full
// or the publisher is not running.
func (p *Publisher) Emit(ev registry.Event) {
	err := p.pool.Submit(ev)
	if err == nil {
		return
	}
	if p.metrics != nil {
		p.metrics.RecordEventDropped("nats")
	}
	if stderrors.Is(err, worker.ErrQueueFull) {
		p.logger.Warn("Event queue full, dropping event", "type", ev.Type, "service_id", ev.ServiceID)
		return
	}
	p.logger.Debug("Publisher not running, dropping event", "type", ev.Type, "error", err)
}

// Stats returns worker pool statistics
func (p *Publisher) Stats() worker.PoolStats {
	return p.pool.Stats()
}

func (p *Publisher) publish(ctx context.Context, ev registry.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapInvalid(err, "Publisher", "publish", "marshal event")
	}

	subject := EventSubject(p.prefix, ev.Type)
	if err := p.conn.Publish(ctx, subject, data); err != nil {
		p.logger.Warn("Failed to publish event", "subject", subject, "service_id", ev.ServiceID, "error", err)
		return err
	}
	return nil
}
