package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challengehub/web/internal/domain"
)

func TestNewSessionID(t *testing.T) {
	t.Run("valid UUID", func(t *testing.T) {
		id, err := domain.NewSessionID("4b7d0f9e-2c1a-4d55-9a8e-0d6c1f3b2a10")
		require.NoError(t, err)
		assert.Equal(t, "4b7d0f9e-2c1a-4d55-9a8e-0d6c1f3b2a10", id.String())
		assert.False(t, id.IsZero())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := domain.NewSessionID("")
		assert.ErrorIs(t, err, domain.ErrEmptyID)
	})

	t.Run("not a UUID", func(t *testing.T) {
		_, err := domain.NewSessionID("not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("generated IDs are unique and parseable", func(t *testing.T) {
		a := domain.GenerateSessionID()
		b := domain.GenerateSessionID()
		assert.NotEqual(t, a, b)
		_, err := domain.NewSessionID(a.String())
		assert.NoError(t, err)
	})
}

func TestNewChallengeID(t *testing.T) {
	_, err := domain.NewChallengeID("")
	assert.ErrorIs(t, err, domain.ErrEmptyID)

	_, err = domain.NewChallengeID("foo-bar")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	id, err := domain.NewChallengeID("0b1f6f3e-6a5b-4f2e-8c8e-3d2f1a0b9c7d")
	require.NoError(t, err)
	assert.Equal(t, "0b1f6f3e-6a5b-4f2e-8c8e-3d2f1a0b9c7d", id.String())
}
