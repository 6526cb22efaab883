// Package medicalml is a service registry for medical machine learning
// prediction services.
//
// Prediction services (breast cancer, diabetes, heart disease classifiers and
// so on) register themselves on startup, send periodic heartbeats, and are
// discovered by clients through a small HTTP API. The registry keeps its
// state in memory: a restart forgets every service until it registers again.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│          cmd/registry               │  Flags, config, logging,
//	│   (process wiring and shutdown)     │  signal handling
//	└─────────────────────────────────────┘
//	           ↓ builds
//	┌─────────────────────────────────────┐
//	│              api                    │  REST endpoints, CORS,
//	│   (HTTP surface and watch stream)   │  validation, metrics
//	└─────────────────────────────────────┘
//	           ↓ calls
//	┌─────────────────────────────────────┐
//	│            registry                 │  Records, heartbeats,
//	│   (store, events, health checkers)  │  liveness, tag search
//	└─────────────────────────────────────┘
//	           ↓ emits events to
//	┌─────────────────────────────────────┐
//	│     discovery + natsclient          │  Optional NATS event
//	│   (publisher and request/reply)     │  stream and lookups
//	└─────────────────────────────────────┘
//
// # Packages
//
//   - registry: ServiceRecord, the concurrency-safe Store, change events and
//     the passive (heartbeat) and active (probe) health checkers
//   - api: the HTTP server with request validation against an embedded JSON
//     Schema and a websocket stream of registry events
//   - client: the registration client used by prediction services, with
//     retrying registration and a heartbeat loop
//   - discovery: publishes registry events to NATS and answers list and get
//     requests over request/reply
//   - natsclient: a NATS connection with a circuit breaker
//   - config: layered JSON/YAML configuration with environment overrides
//   - health, metric, errors: shared health reporting, Prometheus metrics and
//     classified errors
//   - pkg/retry, pkg/worker, pkg/timestamp: small shared utilities
//
// # Liveness
//
// A service is healthy while its last heartbeat is newer than the heartbeat
// timeout (60 seconds by default). Registration counts as a heartbeat. With
// the active strategy the aggregate health endpoint probes each service's
// own health URL instead.
package medicalml
