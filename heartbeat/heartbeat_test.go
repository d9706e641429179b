package heartbeat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var errExpired = errors.New("session expired")
var errTransient = errors.New("store unavailable")

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRunner(t *testing.T, touch TouchFunc, cfg Config) (*Runner, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cfg.Clock = clock
	r, err := New(touch, cfg)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r, clock
}

func TestNewRejectsNilTouch(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatal("expected nil touch func to be rejected")
	}
}

func TestDefaults(t *testing.T) {
	r, _ := newTestRunner(t, func(context.Context) error { return nil }, Config{})

	if r.cfg.Interval != DefaultInterval || r.cfg.RetryInterval != DefaultRetryInterval {
		t.Fatalf("interval defaults: %+v", r.cfg)
	}
	if r.cfg.FailureWindow != DefaultFailureWindow || r.cfg.FailureThreshold != DefaultFailureThreshold {
		t.Fatalf("failure defaults: %+v", r.cfg)
	}
	if r.State() != Idle {
		t.Fatalf("new runner must be idle, got %v", r.State())
	}
}

func TestSuccessfulBeatStaysActive(t *testing.T) {
	r, _ := newTestRunner(t, func(context.Context) error { return nil }, Config{})
	r.state = Active

	if next := r.beat(context.Background()); next != r.cfg.Interval {
		t.Fatalf("success must schedule the normal interval, got %v", next)
	}
	if r.State() != Active {
		t.Fatalf("expected Active, got %v", r.State())
	}
}

func TestExpiredErrorDegradesImmediately(t *testing.T) {
	var expiredCalls atomic.Int32

	r, _ := newTestRunner(t, func(context.Context) error { return errExpired }, Config{
		ExpiredFn:        func(err error) bool { return errors.Is(err, errExpired) },
		OnSessionExpired: func() { expiredCalls.Add(1) },
	})
	r.state = Active

	r.beat(context.Background())
	if r.State() != Degraded {
		t.Fatalf("expected Degraded, got %v", r.State())
	}
	if expiredCalls.Load() != 1 {
		t.Fatalf("OnSessionExpired must fire once, got %d", expiredCalls.Load())
	}

	// Further expired beats must not re-fire the callback.
	r.beat(context.Background())
	r.beat(context.Background())
	if expiredCalls.Load() != 1 {
		t.Fatalf("OnSessionExpired fired again without recovery: %d", expiredCalls.Load())
	}
}

func TestTransientFailuresDegradeAtThreshold(t *testing.T) {
	var errCalls atomic.Int32

	r, clock := newTestRunner(t, func(context.Context) error { return errTransient }, Config{
		OnError: func(error) { errCalls.Add(1) },
	})
	r.state = Active

	// Two failures inside the window: still Active.
	r.beat(context.Background())
	clock.Advance(10 * time.Second)
	if next := r.beat(context.Background()); next != r.cfg.RetryInterval {
		t.Fatalf("failures must schedule the retry interval, got %v", next)
	}
	if r.State() != Active {
		t.Fatalf("below threshold must stay Active, got %v", r.State())
	}
	if errCalls.Load() != 0 {
		t.Fatal("OnError must not fire below threshold")
	}

	// Third failure crosses the threshold.
	clock.Advance(10 * time.Second)
	r.beat(context.Background())
	if r.State() != Degraded {
		t.Fatalf("expected Degraded at threshold, got %v", r.State())
	}
	if errCalls.Load() != 1 {
		t.Fatalf("OnError must fire exactly once, got %d", errCalls.Load())
	}

	// Staying degraded does not re-fire.
	clock.Advance(10 * time.Second)
	r.beat(context.Background())
	if errCalls.Load() != 1 {
		t.Fatalf("OnError fired again without recovery: %d", errCalls.Load())
	}
}

func TestOldFailuresFallOutOfWindow(t *testing.T) {
	var errCalls atomic.Int32

	r, clock := newTestRunner(t, func(context.Context) error { return errTransient }, Config{
		OnError: func(error) { errCalls.Add(1) },
	})
	r.state = Active

	// Spread three failures wider than the 30s window.
	r.beat(context.Background())
	clock.Advance(25 * time.Second)
	r.beat(context.Background())
	clock.Advance(25 * time.Second)
	r.beat(context.Background())

	if r.State() != Active {
		t.Fatalf("stale failures must not count, got %v", r.State())
	}
	if errCalls.Load() != 0 {
		t.Fatal("OnError must not fire when failures fall out of the window")
	}
}

func TestRecoveryRearmsCallbacks(t *testing.T) {
	var fail atomic.Bool
	var errCalls atomic.Int32

	fail.Store(true)
	r, _ := newTestRunner(t, func(context.Context) error {
		if fail.Load() {
			return errTransient
		}
		return nil
	}, Config{OnError: func(error) { errCalls.Add(1) }})
	r.state = Active

	for i := 0; i < 3; i++ {
		r.beat(context.Background())
	}
	if r.State() != Degraded || errCalls.Load() != 1 {
		t.Fatalf("expected one degradation, got state %v calls %d", r.State(), errCalls.Load())
	}

	// One success returns to Active and re-arms.
	fail.Store(false)
	r.beat(context.Background())
	if r.State() != Active {
		t.Fatalf("success must recover to Active, got %v", r.State())
	}

	fail.Store(true)
	for i := 0; i < 3; i++ {
		r.beat(context.Background())
	}
	if errCalls.Load() != 2 {
		t.Fatalf("a fresh degradation must fire again, got %d", errCalls.Load())
	}
}

func TestStartStopLifecycle(t *testing.T) {
	var beats atomic.Int32
	r, _ := newTestRunner(t, func(context.Context) error {
		beats.Add(1)
		return nil
	}, Config{Interval: 5 * time.Millisecond})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("second start must be rejected")
	}

	deadline := time.After(2 * time.Second)
	for beats.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("loop never beat")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	r.Stop()
	if r.State() != Stopped {
		t.Fatalf("expected Stopped, got %v", r.State())
	}
	// Idempotent.
	r.Stop()

	if err := r.Start(context.Background()); err == nil {
		t.Fatal("a stopped runner must not restart")
	}
}

func TestStopIdleRunner(t *testing.T) {
	r, _ := newTestRunner(t, func(context.Context) error { return nil }, Config{})
	r.Stop()
	if r.State() != Stopped {
		t.Fatalf("expected Stopped, got %v", r.State())
	}
}

func TestLastError(t *testing.T) {
	r, _ := newTestRunner(t, func(context.Context) error { return errTransient }, Config{})
	r.state = Active

	r.beat(context.Background())
	if !errors.Is(r.LastError(), errTransient) {
		t.Fatalf("expected last error to be recorded, got %v", r.LastError())
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{Idle: "idle", Active: "active", Degraded: "degraded", Stopped: "stopped", State(99): "unknown"} {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
