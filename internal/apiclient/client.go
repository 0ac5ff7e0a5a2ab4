package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/observability"
)

const (
	// APIPrefix is appended to the configured API URL.
	APIPrefix = "/api/v1"

	// RefreshHeader marks a token refresh call. Requests carrying it never get
	// a bearer credential.
	RefreshHeader = "X-RefreshToken-Request"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Config holds the parameters for creating a Client.
type Config struct {
	// BaseURL is the API origin, e.g. "http://localhost:8000".
	BaseURL string

	// Timeout bounds each request. Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the default client (tests use httptest clients).
	HTTPClient *http.Client
}

// Client calls the platform REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for cfg.BaseURL + APIPrefix.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: api url %q", domain.ErrConfigRequired, cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + APIPrefix,
		http:    hc,
	}, nil
}

type accessTokenKey struct{}

// WithAccessToken returns a context whose API calls authenticate as token.
func WithAccessToken(ctx context.Context, token domain.SecretString) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext returns the token set by WithAccessToken.
func AccessTokenFromContext(ctx context.Context) (domain.SecretString, bool) {
	token, ok := ctx.Value(accessTokenKey{}).(domain.SecretString)
	return token, ok && !token.IsEmpty()
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string // relative to /api/v1, e.g. "/challenge/view/hello"
	Query  url.Values
	Header http.Header
	Body   Body

	// Route is the low-cardinality span and metric label. Defaults to Path.
	Route string
}

func (r Request) route() string {
	if r.Route != "" {
		return r.Route
	}
	return r.Path
}

func (r Request) isRefresh() bool {
	return r.Header != nil && r.Header.Get(RefreshHeader) != ""
}

// Do sends req and decodes a 2xx JSON response into out (if non-nil).
// Failures are returned unchanged and never retried.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	route := req.route()
	ctx, span := tracer.Start(ctx, "apiclient."+req.Method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("http.route", route),
		),
	)
	defer span.End()

	status, err := c.do(ctx, req, out)

	statusLabel := strconv.Itoa(status)
	if status == 0 {
		statusLabel = "network_error"
	}
	apiRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("status", statusLabel),
	))

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) do(ctx context.Context, req Request, out any) (int, error) {
	op := req.Method + " " + req.route()

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	if req.Body != nil {
		var err error
		body, contentType, err = req.Body.encode()
		if err != nil {
			return 0, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return 0, fmt.Errorf("build request %s: %w", op, err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if req.isRefresh() {
		httpReq.Header.Set(RefreshHeader, "true")
		httpReq.Header.Del("Authorization")
	} else if token, ok := AccessTokenFromContext(ctx); ok {
		httpReq.Header.Set("Authorization", "Bearer "+token.Expose())
	}

	observability.InjectTraceContext(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return resp.StatusCode, &NetworkError{Op: op, Err: readErr}
		}
		return resp.StatusCode, classify(resp.StatusCode, data)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.StatusCode, nil
}
