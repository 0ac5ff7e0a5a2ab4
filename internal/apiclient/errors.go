package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/challengehub/web/internal/domain"
)

// NetworkError is a transport failure: the backend was never reached or the
// response could not be read.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{domain.ErrNetwork, e.Err} }

// AuthError is a 401 or 403 from the backend.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

func (e *AuthError) Unwrap() error {
	if e.Status == http.StatusForbidden {
		return domain.ErrForbidden
	}
	return domain.ErrUnauthorized
}

// UserMessage returns the backend detail for 403s. 401 details describe
// token internals and are not shown.
func (e *AuthError) UserMessage() string {
	if e.Status == http.StatusForbidden {
		return e.Detail
	}
	return ""
}

// ValidationError is any other 4xx. Fields maps form field names to messages
// when the backend reported per-field detail.
type ValidationError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	errs := []error{domain.ErrValidation}
	switch e.Status {
	case http.StatusNotFound:
		errs = append(errs, domain.ErrNotFound)
	case http.StatusConflict:
		errs = append(errs, domain.ErrAlreadyExists)
	}
	return errs
}

// UserMessage implements errmap.UserMessager.
func (e *ValidationError) UserMessage() string { return e.Message }

// APIError is a 5xx from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return domain.ErrUnavailable }

// fastAPIError is the error body the backend produces. Detail is either a
// string or a list of per-field entries.
type fastAPIError struct {
	Detail json.RawMessage `json:"detail"`
}

type fieldDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseDetail extracts a message and optional per-field messages from an
// error body. Unparseable bodies fall back to the status text.
func parseDetail(status int, body []byte) (string, map[string]string) {
	fallback := http.StatusText(status)

	var envelope fastAPIError
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return fallback, nil
	}

	var msg string
	if err := json.Unmarshal(envelope.Detail, &msg); err == nil {
		if msg == "" {
			return fallback, nil
		}
		return msg, nil
	}

	var details []fieldDetail
	if err := json.Unmarshal(envelope.Detail, &details); err != nil || len(details) == 0 {
		return fallback, nil
	}

	fields := make(map[string]string, len(details))
	msgs := make([]string, 0, len(details))
	for _, d := range details {
		msgs = append(msgs, d.Msg)
		if name := fieldName(d.Loc); name != "" {
			if _, seen := fields[name]; !seen {
				fields[name] = d.Msg
			}
		}
	}
	return strings.Join(msgs, "; "), fields
}

// fieldName is the last string element of a FastAPI loc path,
// e.g. ["body", "username"] -> "username".
func fieldName(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok {
			return s
		}
	}
	return ""
}

func classify(status int, body []byte) error {
	msg, fields := parseDetail(status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Status: status, Detail: msg}
	case status >= 400 && status < 500:
		return &ValidationError{Status: status, Message: msg, Fields: fields}
	default:
		return &APIError{Status: status, Message: msg}
	}
}
