package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/observability"
)

const providerCredentials = "credentials"

// SignIn authenticates with a username (or email) and password and stores
// a new session.
func (m *SessionManager) SignIn(ctx context.Context, usernameOrEmail string, password domain.SecretString) (domain.SessionID, *Session, error) {
	ctx, span := tracer.Start(ctx, "session.signin")
	defer span.End()
	span.SetAttributes(attribute.String("auth.provider", providerCredentials))

	grant, err := m.backend.Login(ctx, usernameOrEmail, password)
	if err != nil {
		signinTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", providerCredentials),
			attribute.String("result", "failure"),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.SessionID{}, nil, fmt.Errorf("sign in: %w", err)
	}

	return m.establish(ctx, providerCredentials, grant)
}

// SignInFederated completes step two of federated sign-in: the provider's
// assertion is exchanged for backend tokens in one call, then a session is
// stored exactly as for SignIn.
func (m *SessionManager) SignInFederated(ctx context.Context, assertion IdentityAssertion) (domain.SessionID, *Session, error) {
	ctx, span := tracer.Start(ctx, "session.signin")
	defer span.End()
	span.SetAttributes(attribute.String("auth.provider", assertion.Provider))

	fail := func(err error) (domain.SessionID, *Session, error) {
		signinTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", assertion.Provider),
			attribute.String("result", "failure"),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.SessionID{}, nil, err
	}

	if assertion.IDToken.IsEmpty() {
		return fail(fmt.Errorf("%s assertion has no id token: %w", assertion.Provider, domain.ErrUnauthorized))
	}

	grant, err := m.backend.LoginFederated(ctx, assertion)
	if err != nil {
		return fail(fmt.Errorf("sign in with %s: %w", assertion.Provider, err))
	}

	return m.establish(ctx, assertion.Provider, grant)
}

func (m *SessionManager) establish(ctx context.Context, provider string, grant *Grant) (domain.SessionID, *Session, error) {
	if grant == nil || grant.Access.IsZero() {
		return domain.SessionID{}, nil, fmt.Errorf("sign in: backend returned no access token: %w", domain.ErrUnauthorized)
	}

	now := m.clock.Now()
	id := m.newID()
	s := newSession(grant, now)

	if err := m.store.Save(ctx, id, s, m.ttl(s, now)); err != nil {
		return domain.SessionID{}, nil, fmt.Errorf("save session: %w", err)
	}

	signinTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("result", "success"),
	))
	observability.WithTraceID(ctx, m.logger).InfoContext(ctx, "session.signin",
		"provider", provider,
		"user_id", s.UserID,
		"session_id", id.String(),
	)

	return id, clone(s), nil
}

// AllowSignIn applies the per-client sign-in throttle. It fails closed: a
// limiter error rejects the attempt.
func (m *SessionManager) AllowSignIn(ctx context.Context, clientKey string) error {
	if m.limiter == nil || m.signInLimit.Limit <= 0 {
		return nil
	}

	allowed, err := m.limiter.CheckAndIncrement(ctx, "signin:"+clientKey, m.signInLimit.Limit, m.signInLimit.Window)
	if err != nil {
		observability.WithTraceID(ctx, m.logger).ErrorContext(ctx, "sign-in throttle unavailable", "error", err)
		return fmt.Errorf("sign-in throttle: %w: %w", domain.ErrUnavailable, err)
	}
	if !allowed {
		rateLimitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", "signin")))
		return domain.ErrRateLimited
	}
	return nil
}
