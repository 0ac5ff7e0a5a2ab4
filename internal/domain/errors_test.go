package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/challengehub/web/internal/domain"
)

func TestRequiresSignOut(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ErrUnauthorized", domain.ErrUnauthorized, true},
		{"ErrRefreshFailed", domain.ErrRefreshFailed, true},
		{"ErrSessionExpired", domain.ErrSessionExpired, true},
		{"wrapped ErrRefreshFailed", fmt.Errorf("read session: %w", domain.ErrRefreshFailed), true},
		{"ErrForbidden", domain.ErrForbidden, false},
		{"ErrNetwork", domain.ErrNetwork, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.RequiresSignOut(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, domain.IsTransient(domain.ErrNetwork))
	assert.True(t, domain.IsTransient(fmt.Errorf("x: %w", domain.ErrUnavailable)))
	assert.False(t, domain.IsTransient(domain.ErrValidation))
	assert.False(t, domain.IsTransient(errors.New("other")))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, domain.IsClientError(domain.ErrValidation))
	assert.True(t, domain.IsClientError(fmt.Errorf("ctx: %w", domain.ErrNotFound)))
	assert.False(t, domain.IsClientError(domain.ErrUnavailable))
	assert.False(t, domain.IsClientError(nil))
}

func TestFieldErrors(t *testing.T) {
	t.Run("empty returns nil error", func(t *testing.T) {
		fe := domain.FieldErrors{}
		assert.NoError(t, fe.Err())
	})

	t.Run("first message per field wins", func(t *testing.T) {
		fe := domain.FieldErrors{}
		fe.Add("password", "Password is required")
		fe.Add("password", "too short")
		assert.Equal(t, "Password is required", fe["password"])
	})

	t.Run("matches ErrValidation and can be extracted", func(t *testing.T) {
		fe := domain.FieldErrors{}
		fe.Add("title", "Title is required")
		err := fmt.Errorf("contribute: %w", fe.Err())

		assert.ErrorIs(t, err, domain.ErrValidation)
		var got domain.FieldErrors
		assert.True(t, errors.As(err, &got))
		assert.Equal(t, "Title is required", got["title"])
	})

	t.Run("error string is sorted by field", func(t *testing.T) {
		fe := domain.FieldErrors{"b": "second", "a": "first"}
		assert.Equal(t, "validation failed: a: first; b: second", fe.Error())
	})
}
