package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iredis "github.com/challengehub/web/internal/redis"
)

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client := iredis.NewClient(iredis.Config{
		Addr:    mr.Addr(),
		Timeout: time.Second,
	})
	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})

	require.NotNil(t, client.RDB)
	var _ iredis.Cmdable = client.RDB

	require.NoError(t, client.Ping(context.Background()))
}

func TestPingUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := iredis.NewClient(iredis.Config{Addr: addr, Timeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	err := client.Ping(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestIsNil(t *testing.T) {
	mr := miniredis.RunT(t)
	client := iredis.NewClient(iredis.Config{Addr: mr.Addr(), Timeout: time.Second})
	t.Cleanup(func() { _ = client.Close() })

	_, err := client.RDB.Get(context.Background(), "missing").Result()

	assert.True(t, iredis.IsNil(err))
	assert.False(t, iredis.IsNil(errors.New("other")))
	assert.False(t, iredis.IsNil(nil))
}
