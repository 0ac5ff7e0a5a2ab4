package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/challengehub/web/internal/apiclient"
	"github.com/challengehub/web/internal/auth"
	"github.com/challengehub/web/internal/config"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/guard"
	"github.com/challengehub/web/internal/redis"
	"github.com/challengehub/web/internal/server"
	"github.com/challengehub/web/internal/web/adapter"
	"github.com/challengehub/web/internal/web/app"
	"github.com/challengehub/web/internal/web/port"
)

// sweepInterval is how often the in-memory session store drops expired records.
const sweepInterval = 5 * time.Minute

// setup is the web composition root. It creates the session store, the
// backend client, the cookie signer and identity providers, then registers
// every page on the router.
func setup(ctx context.Context, deps server.SetupDeps) (func(context.Context) error, error) {
	cfg := deps.Config
	logger := deps.Logger
	clock := domain.RealClock{}

	// 1. Session store and sign-in throttle.
	st, err := createStores(ctx, cfg, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("web setup: %w", err)
	}

	// 2. Backend client.
	api, err := apiclient.NewClient(apiclient.Config{
		BaseURL: cfg.API.URL,
		Timeout: cfg.API.Timeout,
	})
	if err != nil {
		_ = st.close()
		return nil, fmt.Errorf("web setup: create api client: %w", err)
	}

	// 3. Session cookie signing.
	keyStore, err := auth.NewKeyStoreFromSecret(cfg.Auth.Secret)
	if err != nil {
		_ = st.close()
		return nil, fmt.Errorf("web setup: derive cookie key: %w", err)
	}
	cookies := auth.NewCookieSigner(auth.CookieSignerConfig{
		KeyStore: keyStore,
		MaxAge:   cfg.Auth.SessionMaxAge,
		Clock:    clock,
	})

	// 4. Federated sign-in.
	providers, err := createProviders(cfg, logger)
	if err != nil {
		_ = st.close()
		return nil, fmt.Errorf("web setup: %w", err)
	}

	// 5. Session state machine.
	sessions := app.NewSessionManager(app.SessionManagerConfig{
		Store:               st.sessions,
		Backend:             adapter.NewAPIBackend(api),
		Clock:               clock,
		Logger:              logger,
		MaxAge:              cfg.Auth.SessionMaxAge,
		SingleFlightRefresh: cfg.Auth.SingleFlightRefresh,
		RateLimiter:         st.limiter,
		SignInLimit: app.SignInLimit{
			Limit:  cfg.Auth.SignInLimit,
			Window: cfg.Auth.SignInWindow,
		},
	})

	// 6. Pages.
	trusted, err := config.ParseTrustedProxies(cfg.Web.TrustedProxies)
	if err != nil {
		_ = st.close()
		return nil, fmt.Errorf("web setup: trusted proxies: %w", err)
	}
	handler, err := port.NewHandler(port.HandlerConfig{
		Sessions:       sessions,
		API:            api,
		Cookies:        cookies,
		Policy:         guard.DefaultPolicy(),
		Logger:         logger,
		Providers:      providers,
		CookieSecure:   cfg.Auth.CookieSecure,
		TrustedProxies: trusted,
	})
	if err != nil {
		_ = st.close()
		return nil, fmt.Errorf("web setup: create handler: %w", err)
	}
	handler.RegisterRoutes(deps.Router)

	logger.InfoContext(ctx, "web front-end initialized",
		slog.String("api_url", cfg.API.URL),
		slog.String("session_store", cfg.Session.Store),
		slog.Bool("single_flight_refresh", cfg.Auth.SingleFlightRefresh),
		slog.Int("identity_providers", len(providers)),
	)

	cleanup := func(_ context.Context) error {
		return st.close()
	}
	return cleanup, nil
}

// stores bundles the session store and rate limiter, which share a backend.
type stores struct {
	sessions app.SessionStore
	limiter  app.RateLimiter
	close    func() error
}

// createStores returns Redis-backed stores when configured, otherwise
// in-process ones. The in-memory session store is swept in the background
// until close is called.
func createStores(ctx context.Context, cfg *config.Config, clock domain.Clock, logger *slog.Logger) (stores, error) {
	if cfg.Session.Store == config.SessionStoreRedis {
		client := redis.NewClient(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return stores{}, fmt.Errorf("connect redis: %w", err)
		}
		return stores{
			sessions: adapter.NewRedisSessionStore(client.RDB),
			limiter:  adapter.NewRedisRateLimiter(client.RDB),
			close:    client.Close,
		}, nil
	}

	if !cfg.IsLocal() {
		logger.Warn("in-memory session store: sessions are lost on restart and not shared between replicas")
	}

	mem := adapter.NewMemorySessionStore(clock)
	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n := mem.Sweep(); n > 0 {
					logger.Debug("swept expired sessions", slog.Int("count", n))
				}
			}
		}
	}()

	return stores{
		sessions: mem,
		limiter:  adapter.NewMemoryRateLimiter(clock),
		close: func() error {
			cancel()
			wg.Wait()
			return nil
		},
	}, nil
}

// createProviders returns the enabled identity providers.
func createProviders(cfg *config.Config, logger *slog.Logger) ([]app.IdentityProvider, error) {
	google, err := adapter.NewGoogleIdentityProvider(adapter.GoogleConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	})
	switch {
	case errors.Is(err, domain.ErrProviderDisabled):
		logger.Info("google sign-in disabled: no client id configured")
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("create google provider: %w", err)
	}
	return []app.IdentityProvider{google}, nil
}
