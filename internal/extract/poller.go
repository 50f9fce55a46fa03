// internal/extract/poller.go
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/transport"
)

// EventType identifies a poller lifecycle event.
type EventType string

const (
	EventAttempt   EventType = "attempt"   // one status query is about to run
	EventNotReady  EventType = "not_ready" // job exists (or not yet visible) but has no result
	EventReady     EventType = "ready"     // result payload received
	EventFailed    EventType = "failed"    // terminal failure
	EventCancelled EventType = "cancelled" // caller aborted
)

// Event is one discrete poller lifecycle notification. The poller never
// computes progress percentages itself; presentation is someone else's job.
type Event struct {
	Type        EventType
	Attempt     int
	MaxAttempts int
	Err         error // set for failed events
}

// EventFunc receives lifecycle events. A nil EventFunc is allowed.
type EventFunc func(Event)

// PollerConfig tunes the polling loop. Zero values fall back to defaults.
type PollerConfig struct {
	// MaxAttempts is the total query budget, first immediate query included.
	MaxAttempts int
	// AttemptTimeout bounds each individual status query.
	AttemptTimeout time.Duration
	// ErrorAllowance is how many non-retryable errors are tolerated before
	// giving up. 404s and network-class errors never consume it.
	ErrorAllowance int
	// NetworkDelayFactor stretches the nominal interval after a
	// network-class error.
	NetworkDelayFactor float64
	// Backoff is the inter-attempt wait policy.
	Backoff Backoff
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 120
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 15 * time.Second
	}
	if c.ErrorAllowance <= 0 {
		c.ErrorAllowance = 5
	}
	if c.NetworkDelayFactor <= 0 {
		c.NetworkDelayFactor = 1.5
	}
	if len(c.Backoff.Steps) == 0 {
		c.Backoff = DefaultBackoff()
	}
	return c
}

// Poller queries the job-result endpoint until the job is ready, the
// attempt budget runs out, or the context is cancelled.
type Poller struct {
	client    Doer
	resultURL string // format string, one %s arg: job_id
	cfg       PollerConfig
	logger    *slog.Logger

	// sleep is swapped out in tests so the loop runs instantly.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller. resultURL must contain one %s verb for the
// job identifier.
func NewPoller(client Doer, resultURL string, cfg PollerConfig, logger *slog.Logger) *Poller {
	return &Poller{
		client:    client,
		resultURL: resultURL,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Poll runs the polling loop for one job and returns it once ready. The
// first query fires immediately, covering jobs that finished before
// polling started. Exactly cfg.MaxAttempts queries run when the job never
// becomes ready. Cancellation always wins: once ctx is done, Poll reports
// Cancelled even if a ready payload was just received.
func (p *Poller) Poll(ctx context.Context, jobID, token string, onEvent EventFunc) (*Job, error) {
	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	errBudget := p.cfg.ErrorAllowance

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			emit(Event{Type: EventCancelled, Attempt: attempt, MaxAttempts: p.cfg.MaxAttempts})
			return nil, cancelled(err)
		}

		emit(Event{Type: EventAttempt, Attempt: attempt, MaxAttempts: p.cfg.MaxAttempts})

		job, err := p.query(ctx, jobID, token)

		// A success read after cancellation must still report Cancelled.
		if cerr := ctx.Err(); cerr != nil {
			emit(Event{Type: EventCancelled, Attempt: attempt, MaxAttempts: p.cfg.MaxAttempts})
			return nil, cancelled(cerr)
		}

		if err == nil {
			p.logger.Info("extraction result ready", "job_id", jobID, "attempts", attempt, "items", len(job.Items))
			emit(Event{Type: EventReady, Attempt: attempt, MaxAttempts: p.cfg.MaxAttempts})
			return job, nil
		}

		interval := p.cfg.Backoff.Interval(attempt)

		switch apierr.KindOf(err) {
		case apierr.KindCancelled:
			emit(Event{Type: EventCancelled, Attempt: attempt, MaxAttempts: p.cfg.MaxAttempts})
			return nil, err
		case apierr.KindNotReadyYet:
			emit(Event{Type: EventNotReady, Attempt: attempt, MaxAttempts: p.cfg.MaxAttempts})
		case apierr.KindNetworkUnavailable, apierr.KindTimeout:
			// Transient transport trouble. Hold off a little longer, but
			// do not burn the error allowance.
			interval = time.Duration(float64(interval) * p.cfg.NetworkDelayFactor)
			p.logger.Warn("poll attempt hit transport error", "job_id", jobID, "attempt", attempt, "error", err)
		default:
			errBudget--
			p.logger.Warn("poll attempt failed", "job_id", jobID, "attempt", attempt, "remaining_allowance", errBudget, "error", err)
			if errBudget <= 0 {
				emit(Event{Type: EventFailed, Attempt: attempt, MaxAttempts: p.cfg.MaxAttempts, Err: err})
				return nil, err
			}
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, interval); err != nil {
			emit(Event{Type: EventCancelled, Attempt: attempt, MaxAttempts: p.cfg.MaxAttempts})
			return nil, cancelled(err)
		}
	}

	err := apierr.New(apierr.KindTimeout, "Extraction is taking longer than expected. Please try again.")
	emit(Event{Type: EventFailed, Attempt: p.cfg.MaxAttempts, MaxAttempts: p.cfg.MaxAttempts, Err: err})
	return nil, err
}

// query performs one status check. 404 means the job is not visible yet
// and maps to NotReadyYet; so does a 200 whose item list is still empty.
func (p *Poller) query(ctx context.Context, jobID, token string) (*Job, error) {
	resp, err := p.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf(p.resultURL, jobID),
		Header: http.Header{
			"Authorization": []string{"Bearer " + token},
		},
		Timeout: p.cfg.AttemptTimeout,
	})
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusNotFound {
		return nil, apierr.New(apierr.KindNotReadyYet, "result not ready")
	}
	if !resp.OK() {
		return nil, apierr.Remote(resp.Status, resp.ServerMessage())
	}

	var parsed resultResponse
	if err := resp.DecodeJSON(&parsed); err != nil {
		return nil, err
	}

	if len(parsed.Data.Items) == 0 && parsed.Data.ItemsCount <= 0 {
		return nil, apierr.New(apierr.KindNotReadyYet, "result not ready")
	}

	return &Job{ID: parsed.Data.JobID, State: JobReady, Items: parsed.Data.Items}, nil
}

func cancelled(cause error) error {
	return apierr.Wrap(apierr.KindCancelled, "", cause)
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
