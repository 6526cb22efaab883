// Package discovery exposes the registry over NATS.
//
// Publisher is a registry.EventSink that publishes every store event as
// JSON on <prefix>.services.<type> (registered, unregistered, heartbeat)
// through a worker pool. Responder answers request/reply discovery on
// <prefix>.services.list and <prefix>.services.get.
package discovery
