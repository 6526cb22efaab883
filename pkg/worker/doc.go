// Package worker provides a generic bounded worker pool.
//
// The registry uses it to publish store events to NATS off the request
// path: a registration handler hands the event to Submit and returns
// immediately, and a small number of workers perform the network I/O.
//
//	pool := worker.NewPool(2, 256, func(ctx context.Context, ev registry.Event) error {
//	    return publish(ctx, ev)
//	}, worker.WithMetricsRegistry[registry.Event](metrics, "medreg_event_publisher"))
//
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// Submit never blocks. A full queue drops the item and returns ErrQueueFull,
// which callers count rather than retry. Statistics are always tracked;
// Prometheus metrics are exported only when a registry is configured.
package worker
