// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/infrastructure/config"
	"github.com/quizlens/client/internal/transport"
)

// Doer issues one HTTP request. Satisfied by *transport.Client.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// Client wraps the non-extraction REST endpoints: auth, question banks,
// and question saving. One parse-and-map discipline everywhere: decode
// JSON, translate non-2xx into a typed error carrying the server's own
// message when there is one.
type Client struct {
	http    Doer
	baseURL string
	eps     config.Endpoints
	logger  *slog.Logger
}

// NewClient creates a Client for the API at baseURL.
func NewClient(httpClient Doer, baseURL string, eps config.Endpoints, logger *slog.Logger) *Client {
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		eps:     eps,
		logger:  logger,
	}
}

// url joins the base URL with an endpoint path.
func (c *Client) url(path string) string {
	return c.baseURL + path
}

// do runs one JSON request. A nil body sends no payload; a non-empty token
// becomes a bearer header.
func (c *Client) do(ctx context.Context, method, url, token string, body any) (*transport.Response, error) {
	req := transport.Request{
		Method: method,
		URL:    url,
		Header: http.Header{},
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindInvalidInput, apierr.GenericMessage, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Body = bytes.NewReader(payload)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, c.mapStatus(resp)
	}
	return resp, nil
}

// mapStatus turns a non-2xx response into the matching typed error.
func (c *Client) mapStatus(resp *transport.Response) error {
	msg := resp.ServerMessage()
	switch resp.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = "Your session has expired. Please sign in again."
		}
		return &apierr.Error{Kind: apierr.KindUnauthenticated, Message: msg, Status: resp.Status}
	default:
		return apierr.Remote(resp.Status, msg)
	}
}
