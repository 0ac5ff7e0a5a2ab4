package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/challengehub/web/internal/domain"
)

var tracer = otel.Tracer("web/app")

var (
	sessionReadsTotal   metric.Int64Counter
	tokenRefreshTotal   metric.Int64Counter
	signinTotal         metric.Int64Counter
	forcedSignoutsTotal metric.Int64Counter
	rateLimitsTotal     metric.Int64Counter
)

func init() {
	m := otel.Meter("web/app")

	sessionReadsTotal, _ = m.Int64Counter("web_session_reads_total",
		metric.WithDescription("Total session reads by observed state"))
	tokenRefreshTotal, _ = m.Int64Counter("web_token_refresh_total",
		metric.WithDescription("Total access token refresh calls by result"))
	signinTotal, _ = m.Int64Counter("web_signin_total",
		metric.WithDescription("Total sign-in attempts by provider and result"))
	forcedSignoutsTotal, _ = m.Int64Counter("web_forced_signouts_total",
		metric.WithDescription("Total sessions ended without the user asking"))
	rateLimitsTotal, _ = m.Int64Counter("web_rate_limits_total",
		metric.WithDescription("Total sign-in attempts rejected by the throttle"))
}

// SessionStore persists session records keyed by session ID.
type SessionStore interface {
	// Save writes s, replacing any existing record. The record expires after ttl.
	Save(ctx context.Context, id domain.SessionID, s *Session, ttl time.Duration) error

	// Get returns domain.ErrNotFound for unknown or expired sessions.
	Get(ctx context.Context, id domain.SessionID) (*Session, error)

	// Delete is idempotent.
	Delete(ctx context.Context, id domain.SessionID) error
}

// Backend is the platform API as the session manager sees it.
type Backend interface {
	Login(ctx context.Context, usernameOrEmail string, password domain.SecretString) (*Grant, error)
	LoginFederated(ctx context.Context, assertion IdentityAssertion) (*Grant, error)
	Refresh(ctx context.Context, refreshToken domain.SecretString) (domain.Token, error)
	Logout(ctx context.Context, accessToken domain.SecretString) error
}

// IdentityProvider performs step one of federated sign-in.
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (IdentityAssertion, error)
}

// RateLimiter counts attempts per key in fixed windows.
type RateLimiter interface {
	// CheckAndIncrement returns false once key exceeds limit within window.
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignInLimit throttles sign-in attempts per client. A zero Limit disables it.
type SignInLimit struct {
	Limit  int
	Window time.Duration
}

// SessionManagerConfig holds the dependencies for SessionManager.
type SessionManagerConfig struct {
	Store   SessionStore
	Backend Backend
	Clock   domain.Clock
	Logger  *slog.Logger

	// MaxAge caps a session's lifetime when the backend issues no refresh token.
	MaxAge time.Duration

	// SingleFlightRefresh collapses concurrent refreshes of one session.
	SingleFlightRefresh bool

	RateLimiter RateLimiter // optional
	SignInLimit SignInLimit

	// NewID generates session IDs. Defaults to domain.GenerateSessionID.
	NewID func() domain.SessionID
}

// SessionManager owns the session/token state machine: sign-in, reads that
// refresh the access token when needed, claim updates, and sign-out.
type SessionManager struct {
	store        SessionStore
	backend      Backend
	clock        domain.Clock
	logger       *slog.Logger
	maxAge       time.Duration
	singleFlight bool
	limiter      RateLimiter
	signInLimit  SignInLimit
	newID        func() domain.SessionID

	group    singleflight.Group
	inflight sync.Map // domain.SessionID -> struct{}
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	newID := cfg.NewID
	if newID == nil {
		newID = domain.GenerateSessionID
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = domain.SessionMaxAge
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		store:        cfg.Store,
		backend:      cfg.Backend,
		clock:        cfg.Clock,
		logger:       logger,
		maxAge:       maxAge,
		singleFlight: cfg.SingleFlightRefresh,
		limiter:      cfg.RateLimiter,
		signInLimit:  cfg.SignInLimit,
		newID:        newID,
	}
}

// State reports the lifecycle state of a stored session, including
// Refreshing while a refresh for it is in flight.
func (m *SessionManager) State(ctx context.Context, id domain.SessionID) (State, error) {
	if _, busy := m.inflight.Load(id); busy {
		return Refreshing, nil
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return Unauthenticated, nil
		}
		return Unauthenticated, err
	}
	return Classify(s, m.clock.Now()), nil
}

// ttl keeps the record while either token is still usable, capped at maxAge.
func (m *SessionManager) ttl(s *Session, now time.Time) time.Duration {
	last := s.AccessToken.ExpiresAt
	if !s.RefreshToken.IsZero() && s.RefreshToken.ExpiresAt.After(last) {
		last = s.RefreshToken.ExpiresAt
	}
	ttl := min(last.Sub(now), m.maxAge)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func clone(s *Session) *Session {
	cp := *s
	return &cp
}
