// Package apiclient is the HTTP client for the platform REST API.
//
// Every call goes through Client.Do, which attaches the caller's access token
// as a bearer credential, classifies failures into NetworkError, AuthError,
// ValidationError, or APIError, and never retries. Refresh calls are marked
// with the X-RefreshToken-Request header and never carry a bearer token.
package apiclient

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("web/apiclient")

var apiRequestsTotal metric.Int64Counter

func init() {
	m := otel.Meter("web/apiclient")

	apiRequestsTotal, _ = m.Int64Counter("web_api_requests_total",
		metric.WithDescription("Total backend API requests by route and status"))
}
