// Package adapter contains implementations of interfaces defined in app:
// session stores, sign-in throttles, the platform API backend, and the
// Google identity provider.
package adapter

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("web/adapter")
