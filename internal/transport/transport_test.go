package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/transport"
)

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected auth header to be forwarded, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	client := transport.New()
	resp, err := client.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		URL:    srv.URL,
		Header: http.Header{"Authorization": []string{"Bearer tok"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.OK() {
		t.Errorf("expected 2xx, got %d", resp.Status)
	}
	if resp.ServerMessage() != "ok" {
		t.Errorf("expected server message %q, got %q", "ok", resp.ServerMessage())
	}
}

func TestDo_NonOKStillReturnsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"no such job"}`))
	}))
	defer srv.Close()

	client := transport.New()
	resp, err := client.Do(context.Background(), transport.Request{Method: http.MethodGet, URL: srv.URL})
	if err != nil {
		t.Fatalf("non-2xx must not be a transport error, got %v", err)
	}
	if resp.Status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.Status)
	}
}

func TestDo_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := transport.New()
	_, err := client.Do(context.Background(), transport.Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Timeout: 20 * time.Millisecond,
	})
	if apierr.KindOf(err) != apierr.KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestDo_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := transport.New()
	_, err := client.Do(ctx, transport.Request{Method: http.MethodGet, URL: srv.URL})
	if apierr.KindOf(err) != apierr.KindCancelled {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}

func TestDo_NetworkUnavailable(t *testing.T) {
	// Port 1 is essentially never listening.
	client := transport.New()
	_, err := client.Do(context.Background(), transport.Request{
		Method:  http.MethodGet,
		URL:     "http://127.0.0.1:1/",
		Timeout: 2 * time.Second,
	})
	if apierr.KindOf(err) != apierr.KindNetworkUnavailable {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestResponse_LooksLikeHTML(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        bool
	}{
		{"json body", "application/json", `{"message":"x"}`, false},
		{"html content type", "text/html; charset=utf-8", "<html>502</html>", true},
		{"html body without header", "", "  <!DOCTYPE html><html></html>", true},
		{"plain text", "text/plain", "nope", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &transport.Response{
				Body:   []byte(tt.body),
				Header: http.Header{},
			}
			if tt.contentType != "" {
				resp.Header.Set("Content-Type", tt.contentType)
			}
			if got := resp.LooksLikeHTML(); got != tt.want {
				t.Errorf("LooksLikeHTML() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponse_ServerMessage_HTMLYieldsEmpty(t *testing.T) {
	resp := &transport.Response{
		Body:   []byte("<html><body>Bad Gateway</body></html>"),
		Header: http.Header{},
	}
	if msg := resp.ServerMessage(); msg != "" {
		t.Errorf("HTML page must not yield a server message, got %q", msg)
	}
}

func TestDo_PostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := transport.New()
	_, err := client.Do(context.Background(), transport.Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   strings.NewReader(`{"a":1}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
