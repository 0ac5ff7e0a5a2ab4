package adapter

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/web/app"
)

// GoogleProviderName is the provider segment of /auth/{provider}/... routes.
const GoogleProviderName = "google"

var _ app.IdentityProvider = (*GoogleIdentityProvider)(nil)

// GoogleConfig configures the Google authorization-code flow.
type GoogleConfig struct {
	ClientID     string
	ClientSecret domain.SecretString
	RedirectURL  string

	// Endpoint defaults to Google's. Tests point it at a local server.
	Endpoint oauth2.Endpoint

	// HTTPClient is used for the code exchange. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// GoogleIdentityProvider runs the authorization-code flow and yields the
// Google ID token, which the backend verifies and exchanges for its own
// token pair.
type GoogleIdentityProvider struct {
	oauth  *oauth2.Config
	client *http.Client
}

// NewGoogleIdentityProvider returns domain.ErrProviderDisabled when no
// client ID is configured.
func NewGoogleIdentityProvider(cfg GoogleConfig) (*GoogleIdentityProvider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("google client id: %w", domain.ErrProviderDisabled)
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = endpoints.Google
	}
	return &GoogleIdentityProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret.Expose(),
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		client: cfg.HTTPClient,
	}, nil
}

func (p *GoogleIdentityProvider) Name() string { return GoogleProviderName }

// AuthCodeURL is where the browser is sent to start sign-in.
func (p *GoogleIdentityProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for tokens and keeps only the ID token.
func (p *GoogleIdentityProvider) Exchange(ctx context.Context, code string) (app.IdentityAssertion, error) {
	ctx, span := tracer.Start(ctx, "oauth.google.exchange")
	defer span.End()
	span.SetAttributes(attribute.String("auth.provider", GoogleProviderName))

	if code == "" {
		return app.IdentityAssertion{}, fmt.Errorf("google callback without code: %w", domain.ErrUnauthorized)
	}

	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return app.IdentityAssertion{}, fmt.Errorf("google code exchange: %w: %w", domain.ErrUnauthorized, err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		err := fmt.Errorf("google token response has no id_token: %w", domain.ErrUnauthorized)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return app.IdentityAssertion{}, err
	}

	return app.IdentityAssertion{Provider: GoogleProviderName, IDToken: domain.SecretString(idToken)}, nil
}
