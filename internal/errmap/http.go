// Package errmap translates domain errors into HTTP responses and
// user-facing notification text.
package errmap

import (
	"errors"
	"net/http"

	"github.com/challengehub/web/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// UserMessager is implemented by errors that carry text safe to show the
// user verbatim, such as a backend validation detail.
type UserMessager interface {
	UserMessage() string
}

type httpMapping struct {
	err        error
	statusCode int
	code       string
	message    string
}

// httpMappings is ordered: first match wins (via errors.Is).
var httpMappings = []httpMapping{
	// Session errors force a sign-out.
	{domain.ErrSessionExpired, http.StatusUnauthorized, "SESSION_EXPIRED", "Your session has expired. Please sign in again."},
	{domain.ErrRefreshFailed, http.StatusUnauthorized, "REFRESH_FAILED", "Your session has expired. Please sign in again."},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHENTICATED", "Please sign in to continue."},
	{domain.ErrForbidden, http.StatusForbidden, "PERMISSION_DENIED", "You don't have access to this page."},

	{domain.ErrOAuthState, http.StatusBadRequest, "OAUTH_STATE", "Sign-in request expired. Please try again."},
	{domain.ErrProviderDisabled, http.StatusNotFound, "PROVIDER_DISABLED", "This sign-in method is not available."},

	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Not found."},
	{domain.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "That already exists."},

	{domain.ErrValidation, http.StatusBadRequest, "INVALID_ARGUMENT", "Please check the highlighted fields."},
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid request."},
	{domain.ErrEmptyID, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid request."},
	{domain.ErrInvalidID, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid request."},

	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts. Please wait a minute and try again."},

	{domain.ErrNetwork, http.StatusBadGateway, "NETWORK", "Could not reach the server. Please try again."},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE", "Something went wrong on our side. Please try again."},
}

// ToHTTPError converts a domain error to an HTTP error. The message is the
// error's own UserMessage when it has one, else the mapping's default text.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return HTTPError{StatusCode: m.statusCode, Code: m.code, Message: userMessage(err, m.message)}
		}
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}

// ToHTTPStatusCode extracts just the HTTP status code for a domain error.
func ToHTTPStatusCode(err error) int {
	return ToHTTPError(err).StatusCode
}

// IsForcedSignOut reports whether err must end the session.
func IsForcedSignOut(err error) bool {
	return domain.RequiresSignOut(err)
}

func userMessage(err error, fallback string) string {
	var um UserMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
