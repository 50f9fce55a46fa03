// internal/progress/estimator.go
package progress

import (
	"context"
	"sync"
	"time"
)

// Phase pacing. Completion time is unknown, so the bar is driven by
// wall-clock estimates: the upload phase fills the first half, the poll
// phase crawls toward 95%, and the last 5% is reserved for the real result.
const (
	uploadDuration = 14 * time.Second // maps to 0–50%
	pollTarget     = 4 * time.Second  // optimistic poll estimate, 50–95%
	minTotal       = 18 * time.Second // floor so fast jobs don't "finish instantly"

	uploadCeiling = 50.0
	pollCeiling   = 95.0

	rampToCeiling = 800 * time.Millisecond // current → 95 once the result exists
	finishPause   = 250 * time.Millisecond
	rampToFull    = 500 * time.Millisecond // 95 → 100
)

// Estimator produces a monotonically non-decreasing progress percentage
// for one upload session. It is pure UX pacing: it never observes poll
// outcomes and never blocks completion detection.
type Estimator struct {
	now func() time.Time

	mu          sync.Mutex
	start       time.Time
	pollStart   time.Time
	finishStart time.Time
	last        float64
}

// NewEstimator creates an Estimator using the real clock.
func NewEstimator() *Estimator {
	return &Estimator{now: time.Now}
}

// NewEstimatorWithClock creates an Estimator with an injected clock.
func NewEstimatorWithClock(now func() time.Time) *Estimator {
	return &Estimator{now: now}
}

// StartSession resets the estimator for a new upload session. This is the
// only operation allowed to move progress backward (to zero).
func (e *Estimator) StartSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.start = e.now()
	e.pollStart = time.Time{}
	e.finishStart = time.Time{}
	e.last = 0
}

// EnterPoll marks the transition from the upload phase to the poll phase.
func (e *Estimator) EnterPoll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pollStart.IsZero() {
		e.pollStart = e.now()
	}
}

// Finish marks the real result as available; the value then ramps to 95%,
// pauses, and ramps to 100%.
func (e *Estimator) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finishStart.IsZero() {
		e.finishStart = e.now()
	}
}

// Done reports whether the bar has reached 100%.
func (e *Estimator) Done() bool {
	return e.Value() >= 100
}

// Value returns the current progress in [0,100]. Successive calls within a
// session never decrease.
func (e *Estimator) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := e.rawValue()
	if v < e.last {
		v = e.last
	}
	if v > 100 {
		v = 100
	}
	e.last = v
	return v
}

func (e *Estimator) rawValue() float64 {
	if e.start.IsZero() {
		return 0
	}
	now := e.now()

	if !e.finishStart.IsZero() {
		return e.finishValue(now.Sub(e.finishStart))
	}

	if e.pollStart.IsZero() {
		frac := float64(now.Sub(e.start)) / float64(uploadDuration)
		return clamp(frac*uploadCeiling, 0, uploadCeiling)
	}

	// Poll phase: take the more pessimistic of the two linear estimates so
	// the bar neither jumps to done on a fast backend nor stalls on a slow
	// one. Clamped below the ceiling until the real result arrives.
	optimistic := float64(now.Sub(e.pollStart)) / float64(pollTarget)
	floor := float64(now.Sub(e.start)) / float64(minTotal)
	frac := optimistic
	if floor < frac {
		frac = floor
	}
	return clamp(uploadCeiling+frac*(pollCeiling-uploadCeiling), uploadCeiling, pollCeiling)
}

// finishValue animates from the last pre-finish value to 95, pauses, then
// climbs to 100.
func (e *Estimator) finishValue(since time.Duration) float64 {
	base := e.last
	if base > pollCeiling {
		base = pollCeiling
	}

	if since < rampToCeiling {
		frac := float64(since) / float64(rampToCeiling)
		return base + (pollCeiling-base)*frac
	}
	since -= rampToCeiling

	if since < finishPause {
		return pollCeiling
	}
	since -= finishPause

	if since < rampToFull {
		frac := float64(since) / float64(rampToFull)
		return pollCeiling + (100-pollCeiling)*frac
	}
	return 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Run ticks the estimator until the bar completes or ctx is cancelled,
// calling onUpdate with each value. Meant to run in its own goroutine next
// to the actual pipeline.
func (e *Estimator) Run(ctx context.Context, tick time.Duration, onUpdate func(float64)) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v := e.Value()
			onUpdate(v)
			if v >= 100 {
				return
			}
		}
	}
}
