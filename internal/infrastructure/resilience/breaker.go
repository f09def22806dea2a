package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

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

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration
	// Probes is the number of successful half-open calls needed to close
	Probes int
	// IsFailure decides whether an error counts against the backend.
	// Nil counts every non-nil error except context cancellation.
	IsFailure func(err error) bool
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from, to State)
	// Now is the clock; nil means time.Now
	Now func() time.Time
}

// DefaultSettings returns settings suited to a remote project store
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		Probes:           1,
	}
}

// Breaker fails calls fast while a backend keeps failing
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	failures int       // Consecutive failures while closed
	inflight int       // Half-open calls not yet finished
	passed   int       // Half-open successes
	openedAt time.Time // Set on entering StateOpen
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	defaults := DefaultSettings()
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = defaults.FailureThreshold
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = defaults.Cooldown
	}
	if settings.Probes <= 0 {
		settings.Probes = defaults.Probes
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Breaker{name: name, settings: settings}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Do runs fn if the breaker admits it and records the outcome
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := b.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.record(state, true)
			panic(r)
		}
	}()

	err = fn(ctx)
	b.record(state, b.settings.IsFailure(err))
	return err
}

func (b *Breaker) admit() (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.current()
	switch state {
	case StateOpen:
		return state, ErrCircuitOpen
	case StateHalfOpen:
		if b.inflight+b.passed >= b.settings.Probes {
			return state, ErrTooManyRequests
		}
		b.inflight++
	}
	return state, nil
}

func (b *Breaker) record(admittedIn State, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if admittedIn == StateHalfOpen && b.state == StateHalfOpen {
		b.inflight--
	}
	// Outcomes of calls admitted under an earlier state are ignored
	if admittedIn != b.state {
		return
	}

	switch b.state {
	case StateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			b.transition(StateOpen)
			return
		}
		b.passed++
		if b.passed >= b.settings.Probes {
			b.transition(StateClosed)
		}
	}
}

// current moves an expired open breaker to half-open. Callers hold mu.
func (b *Breaker) current() State {
	if b.state == StateOpen && !b.settings.Now().Before(b.openedAt.Add(b.settings.Cooldown)) {
		b.transition(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.failures, b.inflight, b.passed = 0, 0, 0
	if to == StateOpen {
		b.openedAt = b.settings.Now()
	}
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
