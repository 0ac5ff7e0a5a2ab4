package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/observability"
)

// Update merges a partial claims change into the cached session without
// re-authenticating. Tokens are left untouched.
func (m *SessionManager) Update(ctx context.Context, id domain.SessionID, u ClaimsUpdate) (*Session, error) {
	ctx, span := tracer.Start(ctx, "session.update")
	defer span.End()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrUnauthorized
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get session: %w", err)
	}

	u.apply(s)

	if err := m.store.Save(ctx, id, s, m.ttl(s, m.clock.Now())); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("save session: %w", err)
	}
	return clone(s), nil
}

// SignOut ends the session. The backend is told on a best-effort basis;
// the local record is always deleted. Signing out twice is not an error.
func (m *SessionManager) SignOut(ctx context.Context, id domain.SessionID) error {
	ctx, span := tracer.Start(ctx, "session.signout")
	defer span.End()

	logger := observability.WithTraceID(ctx, m.logger)

	s, err := m.store.Get(ctx, id)
	switch {
	case err == nil:
		if !s.AccessToken.ExpiredAt(m.clock.Now(), 0) {
			if logoutErr := m.backend.Logout(ctx, s.AccessToken.Value); logoutErr != nil {
				logger.WarnContext(ctx, "backend logout failed", "session_id", id.String(), "error", logoutErr)
			}
		}
	case !domain.IsNotFound(err):
		logger.WarnContext(ctx, "read session before sign-out failed", "session_id", id.String(), "error", err)
	}

	if err := m.store.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete session: %w", err)
	}

	logger.InfoContext(ctx, "session.signout", "session_id", id.String())
	return nil
}
