// internal/extract/backoff.go
package extract

import "time"

// BackoffStep is one row of the step table: the wait to apply up to and
// including UpToAttempt. A zero UpToAttempt matches all remaining attempts.
type BackoffStep struct {
	UpToAttempt int
	Interval    time.Duration
}

// Backoff is a step-table backoff policy. Early attempts poll quickly to
// catch fast jobs; later attempts stretch out and stabilize.
type Backoff struct {
	Steps []BackoffStep
}

// DefaultBackoff returns the step table tuned for image extraction jobs,
// which usually finish within a few seconds.
func DefaultBackoff() Backoff {
	return Backoff{Steps: []BackoffStep{
		{UpToAttempt: 10, Interval: 300 * time.Millisecond},
		{UpToAttempt: 30, Interval: 500 * time.Millisecond},
		{UpToAttempt: 60, Interval: 800 * time.Millisecond},
		{UpToAttempt: 0, Interval: time.Second},
	}}
}

// Interval returns the wait after the given 1-based attempt.
func (b Backoff) Interval(attempt int) time.Duration {
	var last time.Duration
	for _, step := range b.Steps {
		last = step.Interval
		if step.UpToAttempt == 0 || attempt <= step.UpToAttempt {
			return step.Interval
		}
	}
	return last
}
