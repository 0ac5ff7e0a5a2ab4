package domain

import "log/slog"

// SecretString holds a credential such as an access token, refresh token, or
// signing secret. fmt and slog both print it as [REDACTED]; encoding/json
// still sees the underlying string so session records round-trip.
type SecretString string

const redacted = "[REDACTED]"

func (s SecretString) String() string { return redacted }

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Expose returns the raw value. Call it only where the credential leaves the
// process: an Authorization header, a form body, a signing key.
func (s SecretString) Expose() string {
	return string(s)
}

// IsEmpty returns true if the secret is empty.
func (s SecretString) IsEmpty() bool {
	return len(s) == 0
}

var _ slog.LogValuer = SecretString("")
