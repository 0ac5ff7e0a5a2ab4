package app

import (
	"time"

	"github.com/challengehub/web/internal/domain"
)

// State is where a session sits in the token lifecycle.
type State int

const (
	Unauthenticated State = iota
	Valid
	NeedsRefresh
	RefreshExpired
	Refreshing
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Valid:
		return "valid"
	case NeedsRefresh:
		return "needs_refresh"
	case RefreshExpired:
		return "refresh_expired"
	case Refreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Session is the server-side session record: the user's display claims plus
// the backend token pair. It is persisted as JSON by the session store.
type Session struct {
	UserID        string      `json:"user_id"`
	DisplayName   string      `json:"display_name"`
	Username      string      `json:"username"`
	Email         string      `json:"email"`
	Role          domain.Role `json:"role"`
	EmailVerified bool        `json:"email_verified"`
	Active        bool        `json:"active"`

	AccessToken  domain.Token `json:"access"`
	RefreshToken domain.Token `json:"refresh"`

	CreatedAt time.Time `json:"created_at"`
}

// Classify returns the lifecycle state of s at now. It never returns
// Refreshing; that state belongs to the manager while a refresh is in flight.
func Classify(s *Session, now time.Time) State {
	if s == nil || s.AccessToken.IsZero() {
		return Unauthenticated
	}
	if !s.AccessToken.ExpiredAt(now, domain.AccessTokenExpiryMargin) {
		return Valid
	}
	if s.RefreshToken.IsZero() {
		return Unauthenticated
	}
	// A refresh token is unusable from its expiry instant on.
	if !now.Before(s.RefreshToken.ExpiresAt) {
		return RefreshExpired
	}
	return NeedsRefresh
}

// ClaimsUpdate is a partial change to the cached claims. Nil fields are kept.
type ClaimsUpdate struct {
	DisplayName *string
	Username    *string
}

func (u ClaimsUpdate) apply(s *Session) {
	if u.DisplayName != nil {
		s.DisplayName = *u.DisplayName
	}
	if u.Username != nil {
		s.Username = *u.Username
	}
}

// Identity is the user as reported by the backend at sign-in.
type Identity struct {
	UserID        string
	FirstName     string
	LastName      string
	Username      string
	Email         string
	Role          domain.Role
	EmailVerified bool
	Active        bool
}

// DisplayName is "first last", or just the first name when last is empty.
func (i Identity) DisplayName() string {
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}

// Grant is a successful backend sign-in.
type Grant struct {
	Identity Identity
	Access   domain.Token
	Refresh  domain.Token
}

// IdentityAssertion is the result of step one of federated sign-in: proof of
// identity from an external provider, not yet exchanged for backend tokens.
type IdentityAssertion struct {
	Provider string
	IDToken  domain.SecretString
}

func newSession(g *Grant, now time.Time) *Session {
	return &Session{
		UserID:        g.Identity.UserID,
		DisplayName:   g.Identity.DisplayName(),
		Username:      g.Identity.Username,
		Email:         g.Identity.Email,
		Role:          g.Identity.Role,
		EmailVerified: g.Identity.EmailVerified,
		Active:        g.Identity.Active,
		AccessToken:   g.Access,
		RefreshToken:  g.Refresh,
		CreatedAt:     now,
	}
}
