// Package api serves the registry over HTTP.
//
// Routes, under the configured prefix (default /api/v1):
//
//	POST   /services/register             register or replace a service (201)
//	DELETE /services/{service_id}         unregister (200, 404)
//	GET    /services                      list all services
//	GET    /services/{service_id}         one service (200, 404)
//	POST   /services/{service_id}/heartbeat
//	GET    /services/search/by-tags?tags=a,b
//	GET    /services/watch                websocket stream of store events
//	GET    /health/all                    per-service health report
//
// and at the root: GET / (API info), GET /health (registry health) and
// GET /metrics when metrics are enabled.
//
// Registration bodies are validated against an embedded JSON Schema. A
// rejected body yields 422 with one entry per offending field:
//
//	{"detail":[{"loc":["body","port"],"msg":"Field required","type":"missing"}]}
//
// Every other error body is {"detail": "..."}. The handler chain adds
// panic recovery, X-Request-ID propagation, request logging and duration
// metrics, CORS, and optional token bucket rate limiting.
package api
