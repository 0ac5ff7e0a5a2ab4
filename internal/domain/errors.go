package domain

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// ID validation errors
	ErrEmptyID   = errors.New("ID cannot be empty")
	ErrInvalidID = errors.New("invalid ID format")

	// Resource errors
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")

	// Authentication errors. Each of these forces the user to sign in again.
	ErrUnauthorized   = errors.New("authentication required")
	ErrRefreshFailed  = errors.New("access token refresh failed")
	ErrSessionExpired = errors.New("session has expired")

	ErrForbidden = errors.New("permission denied")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")

	// Operational errors
	ErrNetwork     = errors.New("backend unreachable")
	ErrUnavailable = errors.New("service temporarily unavailable")
	ErrRateLimited = errors.New("too many attempts")

	// Federated sign-in
	ErrProviderDisabled = errors.New("identity provider not configured")
	ErrOAuthState       = errors.New("oauth state mismatch")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
)

// RequiresSignOut returns true if the error means the current session is
// unusable and the user must be sent through sign-out.
func RequiresSignOut(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrRefreshFailed) ||
		errors.Is(err, ErrSessionExpired)
}

// IsTransient returns true for failures surfaced as a transient notification.
// They are never retried automatically.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrUnavailable)
}

// clientErrors enumerates all domain errors that represent client-side issues.
var clientErrors = []error{
	ErrInvalidInput,
	ErrValidation,
	ErrNotFound,
	ErrAlreadyExists,
	ErrForbidden,
	ErrUnauthorized,
	ErrEmptyID,
	ErrInvalidID,
	ErrOAuthState,
	ErrRateLimited,
}

// IsClientError returns true if the error represents a client-side issue
// that will not succeed on retry without client-side changes.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound returns true if the error represents a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// FieldErrors carries per-field validation messages keyed by form field name.
// It matches ErrValidation via errors.Is.
type FieldErrors map[string]string

// Add records msg for field unless the field already has a message.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Err returns fe as an error, or nil when there are no field errors.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes FieldErrors match ErrValidation.
func (fe FieldErrors) Is(target error) bool {
	return target == ErrValidation
}
