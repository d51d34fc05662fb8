package baas

import (
	"context"
	"net/http"
	"net/url"
)

type User struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	UserMetadata     map[string]interface{} `json:"user_metadata"`
	EmailConfirmedAt *string                `json:"email_confirmed_at,omitempty"`
}

// AuthSession is a signed-in session. A sign-up answered without an access
// token is waiting for email confirmation.
type AuthSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         *User  `json:"user"`
}

func (s *AuthSession) PendingConfirmation() bool {
	return s.AccessToken == ""
}

type signUpRequest struct {
	Email    string                 `json:"email"`
	Password string                 `json:"password"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*AuthSession, error) {
	// The answer is either a session or, when confirmation is required, the
	// bare user object.
	var raw struct {
		AuthSession
		User
	}
	err := c.do(ctx, requestOptions{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   signUpRequest{Email: email, Password: password, Data: metadata},
	}, &raw)
	if err != nil {
		return nil, err
	}

	session := raw.AuthSession
	if session.User == nil && raw.User.ID != "" {
		user := raw.User
		session.User = &user
	}
	return &session, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error) {
	query := url.Values{}
	query.Set("grant_type", "password")

	var session AuthSession
	err := c.do(ctx, requestOptions{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  query,
		body:   passwordGrantRequest{Email: email, Password: password},
	}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, requestOptions{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		bearer: accessToken,
	}, nil)
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	err := c.do(ctx, requestOptions{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		bearer: accessToken,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
