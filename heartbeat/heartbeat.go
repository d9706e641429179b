package heartbeat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the runner's lifecycle position.
type State uint8

const (
	// Idle: constructed, not started.
	Idle State = iota
	// Active: beating normally.
	Active
	// Degraded: the session expired or failures crossed the threshold.
	Degraded
	// Stopped: terminal.
	Stopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Degraded:
		return "degraded"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TouchFunc performs one keep-alive call against the session backend.
type TouchFunc func(ctx context.Context) error

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Defaults applied by New.
const (
	DefaultInterval         = 2 * time.Minute
	DefaultRetryInterval    = 10 * time.Second
	DefaultFailureWindow    = 30 * time.Second
	DefaultFailureThreshold = 3
	DefaultTouchTimeout     = 5 * time.Second
)

// Config tunes a [Runner].
type Config struct {
	// Interval between successful beats. Default 2m.
	Interval time.Duration
	// RetryInterval between beats after a failure. Default 10s.
	RetryInterval time.Duration
	// FailureWindow is the rolling window in which consecutive failures
	// count toward the threshold. Default 30s.
	FailureWindow time.Duration
	// FailureThreshold is how many failures inside the window degrade the
	// runner. Default 3.
	FailureThreshold int
	// TouchTimeout bounds each touch call. Default 5s.
	TouchTimeout time.Duration

	// OnSessionExpired fires exactly once per degradation caused by an
	// expired-classified error.
	OnSessionExpired func()
	// OnError fires exactly once per degradation caused by transient
	// failures, with the last error seen.
	OnError func(error)
	// ExpiredFn classifies a touch error as session-expired. Nil means no
	// error is ever classified as expired.
	ExpiredFn func(error) bool

	// Clock defaults to the system clock.
	Clock Clock
}

// Runner drives the heartbeat loop. Create with [New]; all exported
// methods are safe for concurrent use.
type Runner struct {
	touch TouchFunc
	cfg   Config

	mu       sync.Mutex
	state    State
	failures []time.Time
	lastErr  error
	cancel   context.CancelFunc
	done     chan struct{}

	stopOnce sync.Once
}

// New validates cfg, applies defaults, and returns an [Idle] runner.
func New(touch TouchFunc, cfg Config) (*Runner, error) {
	if touch == nil {
		return nil, errors.New("heartbeat: nil touch func")
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.FailureWindow == 0 {
		cfg.FailureWindow = DefaultFailureWindow
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.TouchTimeout == 0 {
		cfg.TouchTimeout = DefaultTouchTimeout
	}
	if cfg.Interval < 0 || cfg.RetryInterval < 0 || cfg.FailureWindow < 0 || cfg.FailureThreshold < 0 {
		return nil, errors.New("heartbeat: negative configuration value")
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}

	return &Runner{touch: touch, cfg: cfg, state: Idle}, nil
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastError returns the most recent touch error, if any.
func (r *Runner) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Start moves Idle→Active and launches the loop. Starting twice, or
// starting a stopped runner, is an error.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Idle {
		return errors.New("heartbeat: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = Active

	go r.loop(ctx)
	return nil
}

// Stop terminates the loop and waits for it to exit. Idempotent; stopping
// an Idle runner just marks it Stopped.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		cancel := r.cancel
		done := r.done
		r.state = Stopped
		r.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}
	})
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := r.beat(ctx)
		timer.Reset(next)
	}
}

// beat runs one touch and advances the state machine, returning the delay
// until the next beat. Split out so tests can drive it directly with a
// fake clock.
func (r *Runner) beat(ctx context.Context) time.Duration {
	touchCtx, cancel := context.WithTimeout(ctx, r.cfg.TouchTimeout)
	err := r.touch(touchCtx)
	cancel()

	r.mu.Lock()
	if r.state == Stopped {
		r.mu.Unlock()
		return r.cfg.Interval
	}

	if err == nil {
		r.failures = r.failures[:0]
		r.lastErr = nil
		// A success in Degraded re-arms the callbacks.
		r.state = Active
		r.mu.Unlock()
		return r.cfg.Interval
	}

	r.lastErr = err

	if r.cfg.ExpiredFn != nil && r.cfg.ExpiredFn(err) {
		fire := r.state != Degraded
		r.state = Degraded
		r.failures = r.failures[:0]
		cb := r.cfg.OnSessionExpired
		r.mu.Unlock()

		if fire && cb != nil {
			cb()
		}
		return r.cfg.RetryInterval
	}

	now := r.cfg.Clock.Now()
	r.failures = append(r.failures, now)
	r.failures = pruneBefore(r.failures, now.Add(-r.cfg.FailureWindow))

	if len(r.failures) >= r.cfg.FailureThreshold && r.state != Degraded {
		r.state = Degraded
		cb := r.cfg.OnError
		r.mu.Unlock()

		if cb != nil {
			cb(err)
		}
		return r.cfg.RetryInterval
	}

	r.mu.Unlock()
	return r.cfg.RetryInterval
}

func pruneBefore(failures []time.Time, cutoff time.Time) []time.Time {
	kept := failures[:0]
	for _, t := range failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
