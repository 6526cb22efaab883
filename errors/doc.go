// Package errors provides the error model shared by the registry, its HTTP API
// and the registration client.
//
// # Classification
//
// Errors fall into three classes:
//
//   - Transient: timeouts, lost connections, unavailable upstreams (retry is reasonable)
//   - Invalid: malformed input, unknown services, failed validation (do not retry)
//   - Fatal: bad configuration and other unrecoverable states (stop)
//
// Classification works through errors.Is/errors.As, so wrapped chains keep
// their class:
//
//	if _, err := client.Heartbeat(ctx, id); err != nil {
//	    if errors.IsNotFound(err) {
//	        // registry restarted, register again
//	    }
//	}
//
// # Wrapping Pattern
//
// All wrapping follows "component.method: action failed: %w":
//
//	errors.WrapTransient(err, "Client", "Register", "post registration")
//	errors.WrapInvalid(err, "Loader", "Load", "parse config file")
//	errors.WrapFatal(err, "Server", "Start", "listen")
//
// # Registry Semantics
//
// The store never returns errors for absent services; it returns booleans.
// The API layer is the only place that turns absence into NotFound and a
// 404 response. ValidationError carries field-level issues for 422
// responses and unwraps to ErrInvalidRecord.
package errors
