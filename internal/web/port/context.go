package port

import (
	"context"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/web/app"
)

type sessionKey struct{}

// currentSession is the signed-in visitor resolved by the session middleware.
type currentSession struct {
	ID      domain.SessionID
	Session *app.Session
}

func withSession(ctx context.Context, id domain.SessionID, s *app.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, currentSession{ID: id, Session: s})
}

// sessionFrom returns the request's session, if the visitor is signed in.
func sessionFrom(ctx context.Context) (currentSession, bool) {
	cs, ok := ctx.Value(sessionKey{}).(currentSession)
	return cs, ok && cs.Session != nil
}
