// Package port is the HTTP surface of the web front-end: gorilla/mux
// routes, the session and route-guard middleware, and the handlers that
// render server-side pages over the platform API.
package port

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("web/port")

var (
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
)

func init() {
	m := otel.Meter("web/port")

	httpRequestsTotal, _ = m.Int64Counter("web_http_requests_total",
		metric.WithDescription("Total HTTP requests served by route, method, and status"))
	httpRequestDuration, _ = m.Float64Histogram("web_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"))
}
