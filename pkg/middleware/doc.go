// Package middleware provides HTTP middleware for the statelift inspector.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus request metrics middleware
//
// Both are plain func(http.Handler) http.Handler and label requests with
// the chi route pattern rather than the raw path, so /stats/{store} is one
// series and one span name regardless of the store requested.
//
// # OpenTelemetry Middleware
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/metrics"
//	    }),
//	))
//
// The tracer comes from the global tracer provider unless WithTracer is
// given. Handlers can reach the span through trace.SpanFromContext on the
// request context.
//
// # Prometheus Metrics
//
// The Prometheus middleware collects:
//   - statelift_inspector_requests_total: requests by route and status
//   - statelift_inspector_request_duration_seconds: duration by route
//   - statelift_inspector_request_errors_total: 5xx responses by route
//
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
//
// Websocket upgrades are counted with status 101 and their duration is the
// lifetime of the connection.
package middleware
