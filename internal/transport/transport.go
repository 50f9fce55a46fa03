// internal/transport/transport.go
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quizlens/client/internal/apierr"
)

// DefaultTimeout applies when a Request does not set its own.
const DefaultTimeout = 30 * time.Second

// Request describes one HTTP call. Body may be nil.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    io.Reader
	Timeout time.Duration
}

// Response is the raw outcome of a request. Callers parse the body and map
// non-2xx statuses to domain errors themselves.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// DecodeJSON unmarshals the body into v, mapping bad bodies to a
// MalformedResponse error.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apierr.Wrap(apierr.KindMalformedResponse, apierr.GenericMessage, err)
	}
	return nil
}

// LooksLikeHTML reports whether the response body is an HTML error page
// rather than the JSON the API normally returns. Some gateway errors come
// back as full HTML documents.
func (r *Response) LooksLikeHTML() bool {
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(r.Body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// ServerMessage extracts the "message" field from a JSON error body. HTML
// pages and unparseable bodies yield "" so callers fall back to a generic
// message.
func (r *Response) ServerMessage() string {
	if r.LooksLikeHTML() {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return ""
	}
	return body.Message
}

// Client wraps a reusable http.Client and translates transport failures
// into typed errors.
type Client struct {
	httpClient *http.Client
}

// New creates a Client. The underlying http.Client is reused across calls;
// per-request deadlines come from Request.Timeout, not the client itself.
func New() *Client {
	return &Client{
		httpClient: &http.Client{},
	}
}

// Do issues the request and races it against Request.Timeout. On expiry the
// in-flight request is aborted and a Timeout error is returned. Network
// failures map to NetworkUnavailable. Any response, whatever its status, is
// returned as a Response.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInvalidInput, apierr.GenericMessage, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	return &Response{
		Status: resp.StatusCode,
		Body:   body,
		Header: resp.Header,
	}, nil
}

// classifyTransportError decides whether a failed call was our own abort
// (timeout / cancellation) or the network going away.
func classifyTransportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apierr.Wrap(apierr.KindTimeout, "The request took too long. Please try again.", err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return apierr.Wrap(apierr.KindCancelled, "", err)
	default:
		return apierr.Wrap(apierr.KindNetworkUnavailable, "Could not reach the server. Check your connection.", err)
	}
}
