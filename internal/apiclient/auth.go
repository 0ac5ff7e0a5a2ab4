package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/challengehub/web/internal/domain"
)

// AuthResponse is returned by password and federated sign-in.
type AuthResponse struct {
	User    User         `json:"user"`
	Access  domain.Token `json:"access"`
	Refresh domain.Token `json:"refresh"`
}

// RefreshResponse is returned by the refresh endpoint.
type RefreshResponse struct {
	Access domain.Token `json:"access"`
}

// SignupInput is the account registration form.
type SignupInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  domain.SecretString
}

// LoginToken exchanges a username (or email) and password for a token pair.
func (c *Client) LoginToken(ctx context.Context, username string, password domain.SecretString) (*AuthResponse, error) {
	var out AuthResponse
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/login/token",
		Body: Multipart(url.Values{
			"username": {username},
			"password": {password.Expose()},
		}),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken trades a refresh token for a new access token. The request is
// marked with RefreshHeader so no bearer credential is attached.
func (c *Client) RefreshToken(ctx context.Context, refresh domain.SecretString) (*RefreshResponse, error) {
	var out RefreshResponse
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh-token",
		Header: http.Header{RefreshHeader: {"true"}},
		Body:   Form(url.Values{"refresh_token": {refresh.Expose()}}),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleLogin exchanges a Google ID token for a backend token pair.
func (c *Client) GoogleLogin(ctx context.Context, idToken domain.SecretString) (*AuthResponse, error) {
	var out AuthResponse
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/google/login",
		Body:   Form(url.Values{"id_token": {idToken.Expose()}}),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup registers a new account. The user signs in separately afterwards.
func (c *Client) Signup(ctx context.Context, in SignupInput) error {
	return c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/signup",
		Body: Form(url.Values{
			"first_name": {in.FirstName},
			"last_name":  {in.LastName},
			"username":   {in.Username},
			"email":      {in.Email},
			"password":   {in.Password.Expose()},
		}),
	}, nil)
}

// Logout tells the backend the session is over.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/logout"}, nil)
}
