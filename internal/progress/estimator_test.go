package progress_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/quizlens/client/internal/progress"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestValue_ZeroBeforeSession(t *testing.T) {
	e := progress.NewEstimatorWithClock(newFakeClock().now)
	if got := e.Value(); got != 0 {
		t.Errorf("expected 0 before a session starts, got %v", got)
	}
}

func TestUploadPhase_LinearToHalf(t *testing.T) {
	clock := newFakeClock()
	e := progress.NewEstimatorWithClock(clock.now)
	e.StartSession()

	clock.advance(7 * time.Second) // half the 14s upload window
	v := e.Value()
	if v < 24 || v > 26 {
		t.Errorf("expected ~25%% at half of the upload phase, got %v", v)
	}

	clock.advance(30 * time.Second) // way past the window
	if v := e.Value(); v != 50 {
		t.Errorf("upload phase must cap at 50%%, got %v", v)
	}
}

func TestPollPhase_FastBackendDoesNotFinishInstantly(t *testing.T) {
	clock := newFakeClock()
	e := progress.NewEstimatorWithClock(clock.now)
	e.StartSession()

	clock.advance(time.Second)
	e.EnterPoll()

	// Poll phase has run its full optimistic 4s target, but the session is
	// only 5s old against an 18s minimum — the floor estimate must win.
	clock.advance(4 * time.Second)
	v := e.Value()
	if v >= 95 {
		t.Errorf("fast backend should not pin the bar at the ceiling, got %v", v)
	}
	// floor = 5s/18s of the 45-point poll band above 50.
	want := 50 + (5.0/18.0)*45
	if v < want-1 || v > want+1 {
		t.Errorf("expected ~%.1f, got %v", want, v)
	}
}

func TestPollPhase_SlowBackendClampsAtCeiling(t *testing.T) {
	clock := newFakeClock()
	e := progress.NewEstimatorWithClock(clock.now)
	e.StartSession()
	e.EnterPoll()

	clock.advance(5 * time.Minute)
	if v := e.Value(); v != 95 {
		t.Errorf("poll phase must clamp at 95%% until the result arrives, got %v", v)
	}
}

func TestFinish_RampsThenCompletes(t *testing.T) {
	clock := newFakeClock()
	e := progress.NewEstimatorWithClock(clock.now)
	e.StartSession()
	e.EnterPoll()

	clock.advance(2 * time.Second)
	before := e.Value()
	e.Finish()

	clock.advance(400 * time.Millisecond) // mid-ramp
	mid := e.Value()
	if mid <= before || mid >= 95 {
		t.Errorf("expected mid-ramp value between %v and 95, got %v", before, mid)
	}

	clock.advance(400 * time.Millisecond) // ramp done
	if v := e.Value(); v != 95 {
		t.Errorf("expected 95 right after the ramp, got %v", v)
	}

	clock.advance(250 * time.Millisecond) // pause over
	clock.advance(500 * time.Millisecond) // final ramp over
	if v := e.Value(); v != 100 {
		t.Errorf("expected 100 after the final ramp, got %v", v)
	}
	if !e.Done() {
		t.Error("Done() should report true at 100")
	}
}

// Property: progress never decreases within a session, whatever the phase
// transitions and clock steps.
func TestMonotonicity(t *testing.T) {
	clock := newFakeClock()
	e := progress.NewEstimatorWithClock(clock.now)
	e.StartSession()

	rng := rand.New(rand.NewSource(42))
	prev := e.Value()

	for i := 0; i < 500; i++ {
		clock.advance(time.Duration(rng.Intn(200)) * time.Millisecond)
		switch i {
		case 100:
			e.EnterPoll()
		case 300:
			e.Finish()
		}
		v := e.Value()
		if v < prev {
			t.Fatalf("progress decreased at step %d: %v -> %v", i, prev, v)
		}
		if v < 0 || v > 100 {
			t.Fatalf("progress out of range at step %d: %v", i, v)
		}
		prev = v
	}
}

func TestStartSession_ResetsToZero(t *testing.T) {
	clock := newFakeClock()
	e := progress.NewEstimatorWithClock(clock.now)
	e.StartSession()
	clock.advance(10 * time.Second)
	if e.Value() == 0 {
		t.Fatal("expected some progress before reset")
	}

	e.StartSession()
	if v := e.Value(); v != 0 {
		t.Errorf("new session must reset progress to 0, got %v", v)
	}
}

func TestFinish_BeforePollPhase(t *testing.T) {
	// A job that completes during the upload phase still animates cleanly.
	clock := newFakeClock()
	e := progress.NewEstimatorWithClock(clock.now)
	e.StartSession()

	clock.advance(3 * time.Second)
	e.Finish()
	clock.advance(2 * time.Second)

	if v := e.Value(); v != 100 {
		t.Errorf("expected 100 after finish animation, got %v", v)
	}
}
