package domain

import "time"

// Token is a backend-issued bearer credential. The JSON shape matches the
// platform API: {"token": ..., "expires_at": ISO-8601, "scheme": "bearer"}.
type Token struct {
	Value     SecretString `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Scheme    string       `json:"scheme"`
}

// IsZero reports whether the token carries no credential.
func (t Token) IsZero() bool {
	return t.Value.IsEmpty()
}

// ExpiredAt reports whether the token is expired at now, treating it as
// expired margin before its literal expiry.
func (t Token) ExpiredAt(now time.Time, margin time.Duration) bool {
	return ExpiredAt(t.ExpiresAt, now, margin)
}
