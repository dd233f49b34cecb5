package breaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen is returned without invoking the operation when the breaker
// is open, or half-open with a trial already in flight.
var ErrOpen = errors.New("circuit breaker is open")

type Options struct {
	// FailureThreshold is the number of consecutive failures that
	// trips the breaker open.
	FailureThreshold int
	// OpenTimeout is how long the breaker stays open before allowing
	// a half-open trial call.
	OpenTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 5
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 5 * time.Minute
	}
}

// Breaker guards calls to one provider. A single breaker covers all
// operation classes of that provider, so a quote outage also shields
// asset catalog refreshes.
type Breaker struct {
	name string
	opts Options

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	lastSuccess   time.Time
	trialInFlight bool

	now           func() time.Time
	onStateChange func(name string, from, to State)
}

func New(name string, opts Options) *Breaker {
	opts.withDefaults()
	return &Breaker{
		name: name,
		opts: opts,
		now:  time.Now,
	}
}

func (b *Breaker) Name() string { return b.name }

// SetOnStateChange registers a hook invoked (outside the lock) on
// every state transition.
func (b *Breaker) SetOnStateChange(fn func(name string, from, to State)) {
	b.mu.Lock()
	b.onStateChange = fn
	b.mu.Unlock()
}

// Execute runs op through the breaker. When the breaker refuses the
// call it returns ErrOpen and op is never invoked.
func (b *Breaker) Execute(op func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := op()
	b.record(err)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.opts.OpenTimeout {
			b.mu.Unlock()
			return ErrOpen
		}
		transition := b.transitionLocked(StateHalfOpen)
		b.trialInFlight = true
		b.mu.Unlock()
		transition()
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			b.mu.Unlock()
			return ErrOpen
		}
		b.trialInFlight = true
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()

	var transition func()
	if err == nil {
		b.failures = 0
		b.lastSuccess = b.now()
		if b.state != StateClosed {
			transition = b.transitionLocked(StateClosed)
		}
		b.trialInFlight = false
	} else {
		switch b.state {
		case StateHalfOpen:
			transition = b.transitionLocked(StateOpen)
			b.openedAt = b.now()
			b.trialInFlight = false
		case StateClosed:
			b.failures++
			if b.failures >= b.opts.FailureThreshold {
				transition = b.transitionLocked(StateOpen)
				b.openedAt = b.now()
			}
		}
	}

	b.mu.Unlock()
	if transition != nil {
		transition()
	}
}

// transitionLocked flips the state and returns a closure that fires
// the hook; the caller invokes it after releasing the lock.
func (b *Breaker) transitionLocked(to State) func() {
	from := b.state
	b.state = to
	hook := b.onStateChange
	if hook == nil || from == to {
		return func() {}
	}
	name := b.name
	return func() { hook(name, from, to) }
}

// Status is a point-in-time snapshot for the status surface.
type Status struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Failures    int       `json:"consecutive_failures"`
	OpenedAt    time.Time `json:"opened_at,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
}

func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		Name:        b.name,
		State:       b.state.String(),
		Failures:    b.failures,
		LastSuccess: b.lastSuccess,
	}
	if b.state != StateClosed {
		st.OpenedAt = b.openedAt
	}
	return st
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
