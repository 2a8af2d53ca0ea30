package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// attempting any I/O.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// Threshold is the number of consecutive failures that trips the breaker
	Threshold int
	// ResetTimeout is the period of the open state until a probe is admitted
	ResetTimeout time.Duration
	// ErrorThresholdPercentage trips the breaker when the sliding-window
	// error rate exceeds it, independent of consecutive failures
	ErrorThresholdPercentage int
	// Window is the span of the sliding window used for the error rate
	Window time.Duration
	// Buckets is the number of buckets the window is divided into
	Buckets int
	// MinRequests is the minimum number of window samples before the
	// error rate can trip the breaker
	MinRequests uint64
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

func (s Settings) withDefaults() Settings {
	if s.Threshold <= 0 {
		s.Threshold = 3
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 30 * time.Second
	}
	if s.ErrorThresholdPercentage <= 0 {
		s.ErrorThresholdPercentage = 50
	}
	if s.Window <= 0 {
		s.Window = 10 * time.Second
	}
	if s.Buckets <= 0 {
		s.Buckets = 10
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	return s
}

// Stats is a read-only snapshot of a breaker, exposed for introspection.
type Stats struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Successes           uint64    `json:"successes"`
	Failures            uint64    `json:"failures"`
	TotalRequests       uint64    `json:"total_requests"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
	OpenedAt            time.Time `json:"opened_at,omitzero"`
}

// Breaker implements the circuit breaker pattern for a single dependency.
// All state transitions are serialized by a single mutex.
type Breaker struct {
	name     string
	settings Settings

	mu                  sync.Mutex
	state               State
	generation          uint64
	consecutiveFailures int
	lastFailure         time.Time
	openedAt            time.Time
	probing             bool
	window              *window

	successes     uint64
	failures      uint64
	totalRequests uint64
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	settings = settings.withDefaults()
	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		window:   newWindow(settings.Window, settings.Buckets),
	}
}

// Name returns the name of the dependency this breaker guards
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call may proceed, the state the decision was
// made in, and a generation token. The token must be passed back to
// RecordSuccess, RecordFailure, or CancelProbe; an outcome reported
// against an older generation is discarded because the state machine has
// moved on since that call was admitted. A true result in StateHalfOpen
// means the caller holds the single probe slot and must resolve it with
// exactly one of those three calls.
func (b *Breaker) Allow() (bool, State, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true, StateClosed, b.generation
	case StateOpen:
		if time.Since(b.openedAt) >= b.settings.ResetTimeout {
			b.setState(StateHalfOpen, time.Now())
			b.probing = true
			return true, StateHalfOpen, b.generation
		}
		return false, StateOpen, b.generation
	case StateHalfOpen:
		// A probe is already in flight; reject as if still open.
		if b.probing {
			return false, StateOpen, b.generation
		}
		b.probing = true
		return true, StateHalfOpen, b.generation
	default:
		return true, b.state, b.generation
	}
}

// RecordSuccess records a successful call outcome for the generation
// returned by Allow
func (b *Breaker) RecordSuccess(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return
	}

	now := time.Now()
	b.totalRequests++
	b.successes++

	switch b.state {
	case StateClosed:
		b.consecutiveFailures = 0
		b.window.add(now, true)
	case StateHalfOpen:
		b.probing = false
		b.setState(StateClosed, now)
	case StateOpen:
	}
}

// RecordFailure records a failed call outcome for the generation
// returned by Allow
func (b *Breaker) RecordFailure(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return
	}

	now := time.Now()
	b.totalRequests++
	b.failures++
	b.lastFailure = now

	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		b.window.add(now, false)
		if b.readyToTrip(now) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.probing = false
		b.setState(StateOpen, now)
	case StateOpen:
	}
}

// CancelProbe releases the half-open probe slot when the admitted probe
// was abandoned before producing an outcome, e.g. its caller cancelled
// mid-flight. No failure is counted and the cooldown is not restarted;
// the breaker stays half-open so the next arrival is admitted as a fresh
// probe immediately.
func (b *Breaker) CancelProbe(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation || b.state != StateHalfOpen {
		return
	}
	b.probing = false
}

// Status returns a read-only snapshot for observability
func (b *Breaker) Status() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := Stats{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		Successes:           b.successes,
		Failures:            b.failures,
		TotalRequests:       b.totalRequests,
		LastFailure:         b.lastFailure,
	}
	if b.state == StateOpen {
		stats.OpenedAt = b.openedAt
	}
	return stats
}

// Reset is an administrative override forcing the breaker closed and
// zeroing all counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.setState(StateClosed, now)
	// Sever any in-flight calls admitted before the reset.
	b.generation++
	b.probing = false
	b.consecutiveFailures = 0
	b.openedAt = time.Time{}
	b.window.reset(now)
	b.successes = 0
	b.failures = 0
	b.totalRequests = 0
	b.lastFailure = time.Time{}
}

// readyToTrip is called with the mutex held while Closed.
func (b *Breaker) readyToTrip(now time.Time) bool {
	if b.consecutiveFailures >= b.settings.Threshold {
		return true
	}
	rate, total := b.window.errorPercent(now)
	return total >= b.settings.MinRequests && rate > float64(b.settings.ErrorThresholdPercentage)
}

// setState changes the state of the breaker; mutex must be held.
func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.generation++

	switch state {
	case StateClosed:
		b.consecutiveFailures = 0
		b.openedAt = time.Time{}
		b.window.reset(now)
	case StateOpen:
		b.openedAt = now
	case StateHalfOpen:
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
