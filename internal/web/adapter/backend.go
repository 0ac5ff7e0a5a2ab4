package adapter

import (
	"context"
	"fmt"

	"github.com/challengehub/web/internal/apiclient"
	"github.com/challengehub/web/internal/domain"
	"github.com/challengehub/web/internal/web/app"
)

var _ app.Backend = (*APIBackend)(nil)

// APIBackend adapts the platform API client to app.Backend.
type APIBackend struct {
	client *apiclient.Client
}

// NewAPIBackend creates an APIBackend over client.
func NewAPIBackend(client *apiclient.Client) *APIBackend {
	return &APIBackend{client: client}
}

func (b *APIBackend) Login(ctx context.Context, usernameOrEmail string, password domain.SecretString) (*app.Grant, error) {
	resp, err := b.client.LoginToken(ctx, usernameOrEmail, password)
	if err != nil {
		return nil, err
	}
	return toGrant(resp), nil
}

// LoginFederated supports the providers the backend accepts ID tokens from.
func (b *APIBackend) LoginFederated(ctx context.Context, assertion app.IdentityAssertion) (*app.Grant, error) {
	if assertion.Provider != GoogleProviderName {
		return nil, fmt.Errorf("provider %q: %w", assertion.Provider, domain.ErrProviderDisabled)
	}
	resp, err := b.client.GoogleLogin(ctx, assertion.IDToken)
	if err != nil {
		return nil, err
	}
	return toGrant(resp), nil
}

func (b *APIBackend) Refresh(ctx context.Context, refreshToken domain.SecretString) (domain.Token, error) {
	resp, err := b.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return domain.Token{}, err
	}
	return resp.Access, nil
}

// Logout sends the sign-out call with accessToken as the bearer credential.
func (b *APIBackend) Logout(ctx context.Context, accessToken domain.SecretString) error {
	return b.client.Logout(apiclient.WithAccessToken(ctx, accessToken))
}

func toGrant(resp *apiclient.AuthResponse) *app.Grant {
	u := resp.User
	return &app.Grant{
		Identity: app.Identity{
			UserID:        u.ID,
			FirstName:     u.FirstName,
			LastName:      u.LastName,
			Username:      u.Username,
			Email:         u.Email,
			Role:          u.Role,
			EmailVerified: u.IsEmailVerified,
			Active:        u.IsActive,
		},
		Access:  resp.Access,
		Refresh: resp.Refresh,
	}
}
