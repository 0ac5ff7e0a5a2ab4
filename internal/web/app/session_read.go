package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/observability"
)

// Read returns the session for id, refreshing the access token first when it
// is within the expiry margin. A session whose refresh token has expired, or
// whose refresh fails, is deleted and the error forces a sign-out.
func (m *SessionManager) Read(ctx context.Context, id domain.SessionID) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session.read")
	defer span.End()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			sessionReadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("state", Unauthenticated.String())))
			return nil, domain.ErrUnauthorized
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get session: %w", err)
	}

	state := Classify(s, m.clock.Now())
	span.SetAttributes(attribute.String("session.state", state.String()))
	sessionReadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state.String())))

	switch state {
	case Valid:
		return s, nil
	case NeedsRefresh:
		refreshed, err := m.refresh(ctx, id)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return refreshed, nil
	case RefreshExpired:
		m.forceSignOut(ctx, id, "refresh_expired")
		return nil, domain.ErrSessionExpired
	default:
		m.forceSignOut(ctx, id, "no_token")
		return nil, domain.ErrUnauthorized
	}
}

// refresh runs at most one backend refresh per session at a time when
// single-flight is on. Callers waiting on a shared refresh each get a copy.
func (m *SessionManager) refresh(ctx context.Context, id domain.SessionID) (*Session, error) {
	if !m.singleFlight {
		return m.doRefresh(ctx, id)
	}

	// The shared call must not die with whichever request started it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := m.group.Do(id.String(), func() (any, error) {
		return m.doRefresh(shared, id)
	})
	if err != nil {
		return nil, err
	}
	return clone(v.(*Session)), nil
}

func (m *SessionManager) doRefresh(ctx context.Context, id domain.SessionID) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session.refresh")
	defer span.End()

	logger := observability.WithTraceID(ctx, m.logger)

	m.inflight.Store(id, struct{}{})
	defer m.inflight.Delete(id)

	// Re-read: a refresh that finished just before this one started has
	// already installed a fresh token.
	current, err := m.store.Get(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrUnauthorized
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get session: %w", err)
	}

	now := m.clock.Now()
	switch Classify(current, now) {
	case Valid:
		return current, nil
	case RefreshExpired:
		m.forceSignOut(ctx, id, "refresh_expired")
		return nil, domain.ErrSessionExpired
	case Unauthenticated:
		m.forceSignOut(ctx, id, "no_token")
		return nil, domain.ErrUnauthorized
	}

	access, err := m.backend.Refresh(ctx, current.RefreshToken.Value)
	if err == nil && access.IsZero() {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failure")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "session.refresh failed",
			"session_id", id.String(),
			"user_id", current.UserID,
			"error", err,
		)
		m.forceSignOut(ctx, id, "refresh_failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshFailed, err)
	}

	current.AccessToken = access
	if err := m.store.Save(ctx, id, current, m.ttl(current, now)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("save refreshed session: %w", err)
	}

	tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
	logger.DebugContext(ctx, "session.refresh",
		"session_id", id.String(),
		"access_expires_at", access.ExpiresAt,
	)
	return current, nil
}

// forceSignOut deletes the session. Delete errors are logged; the caller's
// error already forces the user back through sign-in.
func (m *SessionManager) forceSignOut(ctx context.Context, id domain.SessionID, reason string) {
	forcedSignoutsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	if err := m.store.Delete(ctx, id); err != nil {
		observability.WithTraceID(ctx, m.logger).ErrorContext(ctx, "failed to delete session on forced sign-out",
			"session_id", id.String(), "reason", reason, "error", err)
	}
}
