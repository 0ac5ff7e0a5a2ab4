package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/challengehub/web/internal/domain"
)

// User is the backend user payload.
type User struct {
	ID              string       `json:"id"`
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	Username        string       `json:"username"`
	Email           string       `json:"email"`
	Role            domain.Role  `json:"role"`
	IsEmailVerified bool         `json:"is_email_verified"`
	IsActive        bool         `json:"is_active"`
	Profile         *UserProfile `json:"profile,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// UserProfile holds optional profile details.
type UserProfile struct {
	About    string `json:"about"`
	ImageURL string `json:"image_url"`
}

// DisplayName is "first last", trimmed when the last name is empty.
func (u User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserInfoUpdate is the editable part of a profile.
type UserInfoUpdate struct {
	FirstName string
	LastName  string
	Username  string
}

// UserByUsername fetches a public profile.
func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	var out User
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/user/" + url.PathEscape(username),
		Route:  "/user/{username}",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches the signed-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/user/me"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUserInfo changes the signed-in user's names and username.
func (c *Client) UpdateUserInfo(ctx context.Context, in UserInfoUpdate) (*User, error) {
	var out User
	err := c.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   "/user/update-user-info",
		Body: Form(url.Values{
			"first_name": {in.FirstName},
			"last_name":  {in.LastName},
			"username":   {in.Username},
		}),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckUsernameAvailability reports whether username is free.
func (c *Client) CheckUsernameAvailability(ctx context.Context, username string) (bool, error) {
	var out struct {
		IsAvailable bool `json:"isAvailable"`
	}
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/user/check-username-availability/" + url.PathEscape(username),
		Route:  "/user/check-username-availability/{username}",
	}, &out)
	if err != nil {
		return false, err
	}
	return out.IsAvailable, nil
}
