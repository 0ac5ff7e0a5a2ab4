package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/web/app"
)

func TestRead_ValidSessionMakesNoBackendCall(t *testing.T) {
	h := newTestHarness(t, true)
	id := h.seed(t, time.Hour, 24*time.Hour)

	s, err := h.manager.Read(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, domain.SecretString("access-old"), s.AccessToken.Value)
	assert.Equal(t, "Ada Lovelace", s.DisplayName)
	assert.Equal(t, int32(0), h.backend.refreshCalls.Load())
}

func TestRead_NeedsRefreshRefreshesOnceAndPersists(t *testing.T) {
	h := newTestHarness(t, true)
	id := h.seed(t, 5*time.Second, 24*time.Hour)

	var gotRefresh domain.SecretString
	h.backend.refreshFn = func(_ context.Context, refresh domain.SecretString) (domain.Token, error) {
		gotRefresh = refresh
		return token("access-new", h.clock.Now().Add(30*time.Minute)), nil
	}

	s, err := h.manager.Read(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, int32(1), h.backend.refreshCalls.Load())
	assert.Equal(t, domain.SecretString("refresh-1"), gotRefresh)
	assert.Equal(t, domain.SecretString("access-new"), s.AccessToken.Value)

	stored, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.SecretString("access-new"), stored.AccessToken.Value)
	assert.Equal(t, domain.SecretString("refresh-1"), stored.RefreshToken.Value, "refresh token is kept")

	// The refreshed token is now valid, so the next read is local.
	_, err = h.manager.Read(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.backend.refreshCalls.Load())
}

func TestRead_RefreshExpiredSignsOutWithoutCallingBackend(t *testing.T) {
	h := newTestHarness(t, true)
	id := h.seed(t, -time.Minute, -time.Second)

	s, err := h.manager.Read(context.Background(), id)

	assert.Nil(t, s)
	require.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.True(t, domain.RequiresSignOut(err))
	assert.Equal(t, int32(0), h.backend.refreshCalls.Load())
	requireNoSession(t, h, id)
}

func TestRead_ValidAccessOutlivesExpiredRefresh(t *testing.T) {
	h := newTestHarness(t, true)
	id := h.seed(t, time.Hour, -time.Second)

	s, err := h.manager.Read(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, domain.SecretString("access-old"), s.AccessToken.Value)
	assert.Equal(t, int32(0), h.backend.refreshCalls.Load())
	assert.Equal(t, int32(0), h.store.deletes.Load())
	assert.True(t, h.store.has(id))
}

func TestRead_RefreshExpiringNowMakesNoRefreshCall(t *testing.T) {
	h := newTestHarness(t, true)
	id := h.seed(t, -time.Minute, 0)

	_, err := h.manager.Read(context.Background(), id)

	require.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, int32(0), h.backend.refreshCalls.Load())
	requireNoSession(t, h, id)
}

func TestRead_RefreshFailureDeletesSession(t *testing.T) {
	h := newTestHarness(t, true)
	id := h.seed(t, time.Second, time.Hour)

	backendErr := errors.New("401 from backend")
	h.backend.refreshFn = func(context.Context, domain.SecretString) (domain.Token, error) {
		return domain.Token{}, backendErr
	}

	_, err := h.manager.Read(context.Background(), id)

	require.ErrorIs(t, err, domain.ErrRefreshFailed)
	require.ErrorIs(t, err, backendErr)
	assert.True(t, domain.RequiresSignOut(err))
	requireNoSession(t, h, id)
}

func TestRead_RefreshWithEmptyTokenFails(t *testing.T) {
	h := newTestHarness(t, true)
	id := h.seed(t, time.Second, time.Hour)
	h.backend.refreshFn = func(context.Context, domain.SecretString) (domain.Token, error) {
		return domain.Token{}, nil
	}

	_, err := h.manager.Read(context.Background(), id)

	require.ErrorIs(t, err, domain.ErrRefreshFailed)
	requireNoSession(t, h, id)
}

func TestRead_UnknownSession(t *testing.T) {
	h := newTestHarness(t, true)

	_, err := h.manager.Read(context.Background(), domain.GenerateSessionID())

	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, int32(0), h.store.deletes.Load())
}

func TestRead_StoreFailureIsNotASignOut(t *testing.T) {
	h := newTestHarness(t, true)
	h.store.getErr = domain.ErrUnavailable

	_, err := h.manager.Read(context.Background(), domain.GenerateSessionID())

	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.False(t, domain.RequiresSignOut(err))
}

func TestRead_ExpiredAccessWithoutRefreshToken(t *testing.T) {
	h := newTestHarness(t, true)
	id := domain.GenerateSessionID()
	h.store.put(id, app.Session{AccessToken: token("a", h.clock.Now().Add(-time.Second))})

	_, err := h.manager.Read(context.Background(), id)

	require.ErrorIs(t, err, domain.ErrUnauthorized)
	requireNoSession(t, h, id)
}

func TestRead_ConcurrentReadsShareOneRefresh(t *testing.T) {
	h := newTestHarness(t, true)
	id := h.seed(t, time.Second, time.Hour)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.backend.refreshFn = func(context.Context, domain.SecretString) (domain.Token, error) {
		once.Do(func() { close(started) })
		<-release
		return token("access-new", h.clock.Now().Add(30*time.Minute)), nil
	}

	const readers = 8
	results := make(chan *app.Session, readers)
	errs := make(chan error, readers)
	var wg sync.WaitGroup

	read := func() {
		defer wg.Done()
		s, err := h.manager.Read(context.Background(), id)
		if err != nil {
			errs <- err
			return
		}
		results <- s
	}

	wg.Add(1)
	go read()
	<-started

	state, err := h.manager.State(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, app.Refreshing, state)

	wg.Add(readers - 1)
	for n := 0; n < readers-1; n++ {
		go read()
	}
	close(release)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Errorf("unexpected read error: %v", err)
	}
	for s := range results {
		assert.Equal(t, domain.SecretString("access-new"), s.AccessToken.Value)
	}
	assert.Equal(t, int32(1), h.backend.refreshCalls.Load())

	state, err = h.manager.State(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, app.Valid, state)
}

func TestRead_WithoutSingleFlightEachReaderRefreshes(t *testing.T) {
	h := newTestHarness(t, false)
	id := h.seed(t, time.Second, time.Hour)

	const readers = 3
	arrived := make(chan struct{}, readers)
	release := make(chan struct{})
	h.backend.refreshFn = func(context.Context, domain.SecretString) (domain.Token, error) {
		arrived <- struct{}{}
		<-release
		return token("access-new", h.clock.Now().Add(30*time.Minute)), nil
	}

	var wg sync.WaitGroup
	wg.Add(readers)
	for n := 0; n < readers; n++ {
		go func() {
			defer wg.Done()
			_, err := h.manager.Read(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	for n := 0; n < readers; n++ {
		<-arrived
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(readers), h.backend.refreshCalls.Load())
}

func TestRead_CanceledCallerDoesNotAbortSharedRefresh(t *testing.T) {
	h := newTestHarness(t, true)
	id := h.seed(t, time.Second, time.Hour)

	var refreshCtxErr error
	h.backend.refreshFn = func(ctx context.Context, _ domain.SecretString) (domain.Token, error) {
		refreshCtxErr = ctx.Err()
		return token("access-new", h.clock.Now().Add(30*time.Minute)), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.manager.Read(ctx, id)

	require.NoError(t, err)
	assert.NoError(t, refreshCtxErr)
}

func TestState(t *testing.T) {
	h := newTestHarness(t, true)

	state, err := h.manager.State(context.Background(), domain.GenerateSessionID())
	require.NoError(t, err)
	assert.Equal(t, app.Unauthenticated, state)

	id := h.seed(t, time.Second, time.Hour)
	state, err = h.manager.State(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, app.NeedsRefresh, state)

	h.clock.Advance(2 * time.Hour)
	state, err = h.manager.State(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, app.RefreshExpired, state)
}
