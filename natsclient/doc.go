// Package natsclient wraps the NATS Go client with connection status
// tracking, a connect circuit breaker and slog logging.
//
// The registry uses it for two optional features: publishing store events
// and answering discovery requests. Neither stores anything in NATS.
//
// # Connection Lifecycle
//
// A client moves through Disconnected, Connecting, Connected and
// Reconnecting. After a run of failed Connect calls (default 5) the circuit
// opens and Connect fails fast with ErrCircuitOpen until the backoff
// elapses. Status changes are reported to the health change callback and
// to the nats_connected gauge when metrics are configured.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("medical-ml-registry"),
//	    natsclient.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Subscribe(ctx, "registry.services.list",
//	    func(ctx context.Context, subject string, data []byte) ([]byte, error) {
//	        return json.Marshal(store.List())
//	    })
//
// # Testing
//
// NewSharedTestClient starts a NATS container through testcontainers-go.
// Packages start one from TestMain and only when INTEGRATION_TESTS is set.
package natsclient
