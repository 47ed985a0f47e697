// Package server exposes the chat, approval and Gmail automation API over
// HTTP.
//
// # Key Components
//
// Services carries the collaborators shared by all handlers: the store,
// the hybrid model router, the automation handler, the Gmail provider and
// the n8n webhook relay. Handlers depend on small interfaces so tests can
// substitute fakes.
//
// HTTPServer routes /api/* with gorilla/mux, applies a request size limit
// and request metrics, and wraps everything with rs/cors.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed for
// orchestration health checks. /api/health reports model and Gmail configuration
// for the frontend.
//
// MetricsServer serves Prometheus metrics on a separate port.
//
// # Errors
//
// Every error response has the shape
//
//	{"error": {"code": "...", "message": "...", "details": {...}, "timestamp": "..."}}
//
// Gmail failures are mapped to 401, 403, 429 or 500 and carry a
// remediation hint in details.
package server
