package extract_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/extract"
	"github.com/quizlens/client/internal/transport"
)

// fakeDoer answers poll queries from a script instead of the network.
type fakeDoer struct {
	calls int32
	fn    func(call int, req transport.Request) (*transport.Response, error)
}

func (f *fakeDoer) Do(_ context.Context, req transport.Request) (*transport.Response, error) {
	call := int(atomic.AddInt32(&f.calls, 1))
	return f.fn(call, req)
}

// fastPollConfig keeps loop intervals tiny so tests finish in milliseconds.
func fastPollConfig(maxAttempts int) extract.PollerConfig {
	return extract.PollerConfig{
		MaxAttempts:    maxAttempts,
		AttemptTimeout: time.Second,
		Backoff: extract.Backoff{Steps: []extract.BackoffStep{
			{UpToAttempt: 0, Interval: 100 * time.Microsecond},
		}},
	}
}

func notFound() (*transport.Response, error) {
	return &transport.Response{Status: http.StatusNotFound, Body: []byte(`{"message":"not found"}`), Header: http.Header{}}, nil
}

func readyPayload(jobID string) (*transport.Response, error) {
	body := `{"message":"done","data":{"job_id":"` + jobID + `","items_count":1,"items":[` +
		`{"text":"Q1","options":[{"label":"A","text":"yes","is_correct":true},{"label":"B","text":"no","is_correct":false}],"topic":"algebra","difficulty":"easy"}]}}`
	return &transport.Response{Status: http.StatusOK, Body: []byte(body), Header: http.Header{}}, nil
}

func TestPoll_ReadyImmediately(t *testing.T) {
	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		return readyPayload("job-1")
	}}
	p := extract.NewPoller(doer, "http://api/result/%s", fastPollConfig(120), discardLogger())

	result, err := p.Poll(context.Background(), "job-1", "tok", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&doer.calls); got != 1 {
		t.Errorf("expected exactly 1 query for an already-finished job, got %d", got)
	}
	if result.ID != "job-1" || len(result.Items) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

// 404s are "keep waiting", never failures: k of them followed by a ready
// payload must succeed after exactly k+1 queries.
func TestPoll_404IsNotFailure(t *testing.T) {
	const k = 7
	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		if call <= k {
			return notFound()
		}
		return readyPayload("job-2")
	}}
	p := extract.NewPoller(doer, "http://api/result/%s", fastPollConfig(120), discardLogger())

	result, err := p.Poll(context.Background(), "job-2", "tok", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&doer.calls); got != k+1 {
		t.Errorf("expected exactly %d queries, got %d", k+1, got)
	}
	if result.ID != "job-2" {
		t.Errorf("job identifier changed across queries: %q", result.ID)
	}
}

// A job that never becomes ready exhausts the budget after exactly
// MaxAttempts queries and surfaces a timeout-class error.
func TestPoll_BudgetExhaustion(t *testing.T) {
	const maxAttempts = 25
	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		return notFound()
	}}
	p := extract.NewPoller(doer, "http://api/result/%s", fastPollConfig(maxAttempts), discardLogger())

	_, err := p.Poll(context.Background(), "job-3", "tok", nil)
	if apierr.KindOf(err) != apierr.KindTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if got := atomic.LoadInt32(&doer.calls); got != maxAttempts {
		t.Errorf("expected exactly %d queries, got %d", maxAttempts, got)
	}
}

// Cancellation wins even when the terminal success response was already
// received.
func TestPoll_CancellationBeatsReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		cancel() // cancel while the "response" is in flight
		return readyPayload("job-4")
	}}
	p := extract.NewPoller(doer, "http://api/result/%s", fastPollConfig(120), discardLogger())

	_, err := p.Poll(ctx, "job-4", "tok", nil)
	if apierr.KindOf(err) != apierr.KindCancelled {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestPoll_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		t.Error("no query should run after cancellation")
		return notFound()
	}}
	p := extract.NewPoller(doer, "http://api/result/%s", fastPollConfig(120), discardLogger())

	_, err := p.Poll(ctx, "job-5", "tok", nil)
	if apierr.KindOf(err) != apierr.KindCancelled {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

// Non-retryable errors are tolerated up to the extra allowance, then the
// last error surfaces.
func TestPoll_ErrorAllowance(t *testing.T) {
	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		return &transport.Response{Status: http.StatusInternalServerError, Body: []byte(`{"message":"boom"}`), Header: http.Header{}}, nil
	}}
	cfg := fastPollConfig(120)
	cfg.ErrorAllowance = 5
	p := extract.NewPoller(doer, "http://api/result/%s", cfg, discardLogger())

	_, err := p.Poll(context.Background(), "job-6", "tok", nil)
	if apierr.KindOf(err) != apierr.KindRemoteRejected {
		t.Fatalf("expected the server error to surface, got %v", err)
	}
	if got := atomic.LoadInt32(&doer.calls); got != 5 {
		t.Errorf("expected exactly 5 queries (the allowance), got %d", got)
	}
}

// Network errors do not consume the error allowance.
func TestPoll_NetworkErrorsDontBurnAllowance(t *testing.T) {
	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		if call <= 10 {
			return nil, apierr.New(apierr.KindNetworkUnavailable, "offline")
		}
		return readyPayload("job-7")
	}}
	cfg := fastPollConfig(120)
	cfg.ErrorAllowance = 5
	p := extract.NewPoller(doer, "http://api/result/%s", cfg, discardLogger())

	result, err := p.Poll(context.Background(), "job-7", "tok", nil)
	if err != nil {
		t.Fatalf("10 network errors must not fail with allowance 5: %v", err)
	}
	if result == nil || result.ID != "job-7" {
		t.Errorf("unexpected result: %+v", result)
	}
}

// A 200 with an empty item list is still "not ready".
func TestPoll_EmptyItemsMeansNotReady(t *testing.T) {
	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		if call == 1 {
			return &transport.Response{
				Status: http.StatusOK,
				Body:   []byte(`{"message":"pending","data":{"job_id":"job-8","items":[],"items_count":0}}`),
				Header: http.Header{},
			}, nil
		}
		return readyPayload("job-8")
	}}
	p := extract.NewPoller(doer, "http://api/result/%s", fastPollConfig(120), discardLogger())

	_, err := p.Poll(context.Background(), "job-8", "tok", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&doer.calls); got != 2 {
		t.Errorf("expected 2 queries, got %d", got)
	}
}

func TestPoll_EmitsLifecycleEvents(t *testing.T) {
	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		if call == 1 {
			return notFound()
		}
		return readyPayload("job-9")
	}}
	p := extract.NewPoller(doer, "http://api/result/%s", fastPollConfig(120), discardLogger())

	var events []extract.EventType
	_, err := p.Poll(context.Background(), "job-9", "tok", func(ev extract.Event) {
		events = append(events, ev.Type)
		if ev.MaxAttempts != 120 {
			t.Errorf("expected max attempts 120 in event, got %d", ev.MaxAttempts)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []extract.EventType{extract.EventAttempt, extract.EventNotReady, extract.EventAttempt, extract.EventReady}
	if len(events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], events[i])
		}
	}
}

func TestPoll_QueryCarriesTokenAndJobID(t *testing.T) {
	doer := &fakeDoer{fn: func(call int, req transport.Request) (*transport.Response, error) {
		if req.URL != "http://api/result/job-10" {
			t.Errorf("unexpected URL %q", req.URL)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", got)
		}
		return readyPayload("job-10")
	}}
	p := extract.NewPoller(doer, "http://api/result/%s", fastPollConfig(120), discardLogger())

	if _, err := p.Poll(context.Background(), "job-10", "tok", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
