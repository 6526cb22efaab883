package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zainbaq/medical-ml/metric"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Pool runs a fixed number of workers over a bounded queue of T.
// Submit never blocks; when the queue is full the item is dropped.
type Pool[T any] struct {
	name      string
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	wg       sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	registry *metric.MetricsRegistry
	metrics  *poolMetrics
}

type poolMetrics struct {
	queueDepth prometheus.Gauge
	outcomes   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// Option configures a Pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry exports pool metrics under the given name prefix
// (for example "medreg_event_publisher").
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(p *Pool[T]) {
		p.registry = registry
		p.name = name
	}
}

// NewPool creates a pool. Non-positive sizes fall back to defaults.
// It panics with ErrNilProcessor when processor is nil.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if processor == nil {
		panic(ErrNilProcessor)
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry != nil && p.name != "" {
		p.metrics = p.registerMetrics()
	}
	return p
}

func (p *Pool[T]) registerMetrics() *poolMetrics {
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: p.name + "_queue_depth",
			Help: "Items waiting in the worker pool queue",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: p.name + "_items_total",
			Help: "Work items by outcome (submitted, processed, failed, dropped)",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    p.name + "_processing_duration_seconds",
			Help:    "Time spent processing one work item",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"status"}),
	}

	// A second pool with the same name keeps working without exported metrics.
	if err := p.registry.RegisterGauge("worker_pool", p.name+"_queue_depth", m.queueDepth); err != nil {
		return nil
	}
	if err := p.registry.RegisterCounterVec("worker_pool", p.name+"_items_total", m.outcomes); err != nil {
		return nil
	}
	if err := p.registry.RegisterHistogramVec("worker_pool", p.name+"_processing_duration_seconds", m.duration); err != nil {
		return nil
	}
	return m
}

func (p *Pool[T]) count(outcome string) {
	if p.metrics != nil {
		p.metrics.outcomes.WithLabelValues(outcome).Inc()
		p.metrics.queueDepth.Set(float64(len(p.workChan)))
	}
}

// Submit queues work without blocking.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if !p.started {
		return ErrPoolNotStarted
	}

	select {
	case p.workChan <- work:
		p.submitted.Add(1)
		p.count("submitted")
		return nil
	default:
		p.dropped.Add(1)
		p.count("dropped")
		return ErrQueueFull
	}
}

// Start launches the workers. They exit when ctx is cancelled or the pool
// is stopped.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued work to drain.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.workChan)
	p.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

func (p *Pool[T]) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}

			start := time.Now()
			err := p.processor(ctx, work)

			p.processed.Add(1)
			outcome := "processed"
			if err != nil {
				p.failed.Add(1)
				outcome = "failed"
			}
			p.count(outcome)
			if p.metrics != nil {
				p.metrics.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
			}
		}
	}
}

// PoolStats is a snapshot of pool counters
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}
