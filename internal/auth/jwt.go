package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/challengehub/web/internal/domain"
)

// Cookie token issuer and audience. Both are checked on verify.
const (
	Issuer   = "challenge-web"
	Audience = "challenge-web-session"
)

// SignedCookie is a signed session cookie value and its expiry.
type SignedCookie struct {
	Value     string
	ExpiresAt time.Time
}

// CookieSigner issues HS256 session cookies and verifies them.
type CookieSigner struct {
	keyStore KeyStore
	maxAge   time.Duration
	clock    domain.Clock
}

// CookieSignerConfig holds configuration for creating a CookieSigner.
type CookieSignerConfig struct {
	KeyStore KeyStore
	MaxAge   time.Duration
	Clock    domain.Clock
}

// NewCookieSigner creates a new session cookie signer.
func NewCookieSigner(cfg CookieSignerConfig) *CookieSigner {
	return &CookieSigner{
		keyStore: cfg.KeyStore,
		maxAge:   cfg.MaxAge,
		clock:    cfg.Clock,
	}
}

// MaxAge is the lifetime stamped on every cookie.
func (s *CookieSigner) MaxAge() time.Duration { return s.maxAge }

// Sign returns a cookie value binding sid until now + MaxAge.
func (s *CookieSigner) Sign(sid domain.SessionID) (SignedCookie, error) {
	if sid.IsZero() {
		return SignedCookie{}, domain.ErrEmptyID
	}

	key, keyID, err := s.keyStore.SigningKey()
	if err != nil {
		return SignedCookie{}, fmt.Errorf("get signing key: %w", err)
	}

	now := s.clock.Now().UTC()
	expiresAt := now.Add(s.maxAge)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sid.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(key)
	if err != nil {
		return SignedCookie{}, fmt.Errorf("sign session cookie: %w", err)
	}

	return SignedCookie{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify checks the signature, issuer, audience, and expiry of a cookie value
// and returns its session ID. An expired cookie yields ErrSessionExpired; any
// other failure yields ErrUnauthorized.
func (s *CookieSigner) Verify(value string) (domain.SessionID, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(value, &claims, s.keyFunc,
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return domain.SessionID{}, fmt.Errorf("session cookie: %w", domain.ErrSessionExpired)
		}
		return domain.SessionID{}, fmt.Errorf("session cookie: %v: %w", err, domain.ErrUnauthorized)
	}

	sid, err := domain.NewSessionID(claims.SessionID)
	if err != nil {
		return domain.SessionID{}, fmt.Errorf("session cookie sid: %v: %w", err, domain.ErrUnauthorized)
	}
	return sid, nil
}

func (s *CookieSigner) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("missing or invalid kid in token header")
	}

	return s.keyStore.VerificationKey(kid)
}
