// internal/api/auth.go
package api

import (
	"context"
	"net/http"

	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/domain/user"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    user.User `json:"user"`
}

// Login exchanges credentials for a bearer token and the account record.
func (c *Client) Login(ctx context.Context, email, password string) (string, user.User, error) {
	if email == "" || password == "" {
		return "", user.User{}, apierr.New(apierr.KindInvalidInput, "Email and password are required.")
	}

	resp, err := c.do(ctx, http.MethodPost, c.url(c.eps.Login), "", loginRequest{Email: email, Password: password})
	if err != nil {
		return "", user.User{}, err
	}

	var parsed loginResponse
	if err := resp.DecodeJSON(&parsed); err != nil {
		return "", user.User{}, err
	}
	if parsed.Token == "" {
		return "", user.User{}, apierr.New(apierr.KindMalformedResponse, apierr.GenericMessage)
	}

	c.logger.Info("signed in", "user_id", parsed.User.ID)
	return parsed.Token, parsed.User, nil
}

type meResponse struct {
	Message string    `json:"message"`
	User    user.User `json:"user"`
}

// Me fetches the account record for the given token.
func (c *Client) Me(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, apierr.New(apierr.KindUnauthenticated, "Please sign in first.")
	}

	resp, err := c.do(ctx, http.MethodGet, c.url(c.eps.Me), token, nil)
	if err != nil {
		return user.User{}, err
	}

	var parsed meResponse
	if err := resp.DecodeJSON(&parsed); err != nil {
		return user.User{}, err
	}
	return parsed.User, nil
}
