package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/domain/domaintest"
)

func TestRealClock(t *testing.T) {
	clock := domain.RealClock{}
	before := time.Now()
	got := clock.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestFakeClock(t *testing.T) {
	fixedTime := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	t.Run("returns fixed time", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		assert.True(t, clock.Now().Equal(fixedTime))
	})

	t.Run("advance moves time forward", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		clock.Advance(time.Hour)
		assert.True(t, clock.Now().Equal(fixedTime.Add(time.Hour)))
	})

	t.Run("set changes time", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		newTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
		clock.Set(newTime)
		assert.True(t, clock.Now().Equal(newTime))
	})
}

func TestExpiredAt(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	margin := domain.AccessTokenExpiryMargin

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well before margin", deadline.Add(-time.Minute), false},
		{"one nanosecond before margin", deadline.Add(-margin - time.Nanosecond), false},
		{"exactly at margin", deadline.Add(-margin), true},
		{"inside margin", deadline.Add(-5 * time.Second), true},
		{"after deadline", deadline.Add(time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ExpiredAt(deadline, tt.now, margin))
		})
	}

	t.Run("zero deadline is expired", func(t *testing.T) {
		assert.True(t, domain.ExpiredAt(time.Time{}, deadline, 0))
	})
}
