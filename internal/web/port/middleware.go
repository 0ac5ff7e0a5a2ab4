package port

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/challengehub/web/internal/apiclient"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/errmap"
	"github.com/challengehub/web/internal/guard"
	"github.com/challengehub/web/internal/observability"
)

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// observe wraps each request in a server span continuing any incoming trace,
// records request metrics, and writes one access log line.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeTemplate(r)

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		elapsed := time.Since(start)
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", rec.status),
		)
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		attrs := metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("method", r.Method),
			attribute.String("status", strconv.Itoa(rec.status)),
		)
		httpRequestsTotal.Add(ctx, 1, attrs)
		httpRequestDuration.Record(ctx, elapsed.Seconds(), attrs)

		logger := observability.WithTraceID(ctx, h.logger)
		level := logger.InfoContext
		if h.policy.Excluded(r.URL.Path) {
			level = logger.DebugContext
		}
		level(ctx, "http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

// securityHeaders sets the response headers every page carries.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		hdr.Set("Content-Security-Policy",
			"default-src 'self'; img-src 'self' data: https:; style-src 'self'; script-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'")
		next.ServeHTTP(w, r)
	})
}

// loadSession resolves the session cookie. A valid session is put in the
// request context together with its access token, so every API call made
// while serving the request carries the bearer credential. A session that
// can no longer be refreshed is signed out here.
func (h *Handler) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		id, err := h.cookies.Verify(c.Value)
		if err != nil {
			h.clearCookie(w, sessionCookieName, "/")
			next.ServeHTTP(w, r)
			return
		}

		s, err := h.sessions.Read(ctx, id)
		switch {
		case err == nil:
			ctx = withSession(ctx, id, s)
			ctx = apiclient.WithAccessToken(ctx, s.AccessToken.Value)
			next.ServeHTTP(w, r.WithContext(ctx))

		case errors.Is(err, domain.ErrSessionExpired) || errors.Is(err, domain.ErrRefreshFailed):
			h.clearCookie(w, sessionCookieName, "/")
			if h.policy.Excluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			h.setFlash(w, flashError, errmap.ToHTTPError(err).Message)
			http.Redirect(w, r, h.signoutRedirect(r), http.StatusSeeOther)

		case errmap.IsForcedSignOut(err):
			// The record is gone; carry on as a visitor.
			h.clearCookie(w, sessionCookieName, "/")
			next.ServeHTTP(w, r)

		default:
			observability.WithTraceID(ctx, h.logger).ErrorContext(ctx, "session read failed",
				"session_id", id.String(), "error", err)
			h.fail(w, r, err)
		}
	})
}

// guardRoutes applies the route guard to every non-excluded path.
func (h *Handler) guardRoutes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.policy.Excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		d := h.policy.Decide(r.URL.Path, isSignedIn(r))
		switch d.Action {
		case guard.RedirectToSignin, guard.RedirectAway:
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
