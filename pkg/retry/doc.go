// Package retry provides exponential backoff retry for calls that may fail
// transiently, such as a prediction service registering before the registry
// is listening.
//
// Retry with the startup policy:
//
//	err := retry.Do(ctx, retry.Startup(), func() error {
//	    return c.Register(ctx, rec)
//	})
//
// Stop early on errors that will not improve:
//
//	cfg := retry.Startup()
//	cfg.ShouldRetry = errors.IsTransient
//	err := retry.Do(ctx, cfg, op)
//
// Errors wrapped with NonRetryable are returned immediately. All operations
// honour context cancellation, both during fn and during the backoff sleep.
//
// The registry itself never retries: store operations and health probes are
// single-shot. Retrying is the caller's job, and this package is what the
// registration client uses to do it.
package retry
