package api

import (
	"context"
	"errors"

	"localmart/internal/app/user"
)

// API paths of the auth endpoints.
const (
	PathLogin       = "/auth/login/"
	PathRegister    = "/auth/register/"
	PathLogout      = "/auth/logout/"
	PathVerifyToken = "/users/verify-token/"
	PathProfile     = "/users/profile/"
)

// LoginRequest is the credential exchange body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by login and, on servers that sign the user in, by register.
type LoginResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	User         *user.User `json:"user"`
}

// Validate requires both the token and a user with an id.
func (r *LoginResponse) Validate() error {
	if r.AccessToken == "" {
		return errors.New("access_token is missing")
	}
	if r.User == nil {
		return errors.New("user is missing")
	}
	return r.User.Validate()
}

// RegisterRequest is the registration body.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Location    string `json:"location"`
}

// RegisterResponse carries the created account. The token fields are present only
// when the server signs the new user in.
type RegisterResponse struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
}

// Validate requires the created user.
func (r *RegisterResponse) Validate() error {
	if r.User == nil {
		return errors.New("user is missing")
	}
	return r.User.Validate()
}

// VerifyTokenResponse is returned while the presented token is valid.
type VerifyTokenResponse struct {
	Status string     `json:"status"`
	User   *user.User `json:"user,omitempty"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.Post(ctx, PathLogin, LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.Post(ctx, PathRegister, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.Post(ctx, PathLogout, nil, nil)
}

// VerifyToken checks that the current token is still accepted.
func (c *Client) VerifyToken(ctx context.Context) (*VerifyTokenResponse, error) {
	var out VerifyTokenResponse
	if err := c.Get(ctx, PathVerifyToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile applies a partial profile change and returns the updated record.
// An image makes the request multipart, with the picture under "profile_image".
func (c *Client) UpdateProfile(ctx context.Context, update user.ProfileUpdate) (*user.User, error) {
	var out user.User
	var err error

	if update.Image != nil {
		err = c.PatchMultipart(ctx, PathProfile, &Multipart{
			Fields: update.Fields(),
			Files: []File{{
				Field:    "profile_image",
				Filename: update.Image.Filename,
				Content:  update.Image.Content,
			}},
		}, &out)
	} else {
		err = c.Patch(ctx, PathProfile, update.Fields(), &out)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
