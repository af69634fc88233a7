package monitor

import (
	"math"
	"time"
)

const (
	// StaleThreshold is how many whole seconds may pass without a ping
	// before the connection is considered stale.
	StaleThreshold = 6

	// SuppressionWindow is how many whole seconds after a disconnect the
	// monitor holds back from reopening.
	SuppressionWindow = 6

	// backoffScale multiplies ln(attempts+1) in the interval formula.
	backoffScale = 5.0
)

// Default option values.
const (
	DefaultReconnectionDelay       = 3 * time.Second
	DefaultReconnectionDelayMax    = 30 * time.Second
	DefaultReconnectionMaxAttempts = 30
)

// Reopener is the owning connection. Reopen re-establishes the underlying
// session and must not block the caller for long.
type Reopener interface {
	Reopen()
}

// ReopenerFunc is a function adapter for Reopener.
type ReopenerFunc func()

func (f ReopenerFunc) Reopen() {
	f()
}

// Options configures reconnect behavior.
type Options struct {
	Reconnection            bool          // Whether the monitor may reopen at all
	ReconnectionDelay       time.Duration // Minimum poll interval
	ReconnectionDelayMax    time.Duration // Maximum poll interval
	ReconnectionMaxAttempts int           // Attempts allowed per disconnect episode
}

// DefaultOptions returns the defaults used by ActionCable clients.
// Reconnection is off unless explicitly enabled.
func DefaultOptions() Options {
	return Options{
		Reconnection:            false,
		ReconnectionDelay:       DefaultReconnectionDelay,
		ReconnectionDelayMax:    DefaultReconnectionDelayMax,
		ReconnectionMaxAttempts: DefaultReconnectionMaxAttempts,
	}
}

// Interval returns the poll interval after the given number of attempts:
// max(delay, min(delayMax, floor(5*ln(attempts+1)) seconds)).
func Interval(opts Options, attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	backoff := time.Duration(math.Floor(backoffScale*math.Log(float64(attempts+1)))) * time.Second
	return max(opts.ReconnectionDelay, min(opts.ReconnectionDelayMax, backoff))
}

// Outcome is the result of one reconnect check.
type Outcome int

const (
	OutcomeDisabled   Outcome = iota // Reconnection option is off
	OutcomeFresh                     // Connection is not stale
	OutcomeExhausted                 // Attempt cap reached
	OutcomeSuppressed                // Attempt counted, but disconnected recently
	OutcomeReopened                  // Attempt counted and Reopen called
	OutcomeSkipped                   // Monitor stopped or epoch superseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDisabled:
		return "disabled"
	case OutcomeFresh:
		return "fresh"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeReopened:
		return "reopened"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Observer receives the outcome of every check cycle.
type Observer interface {
	ObserveCheck(outcome Outcome, attempts int)
}

// State is a point-in-time copy of the monitor's fields.
// Timestamps are Unix milliseconds; zero means unset.
type State struct {
	PingedAt          int64 `json:"pinged_at"`
	DisconnectedAt    int64 `json:"disconnected_at"`
	StartedAt         int64 `json:"started_at"`
	StoppedAt         int64 `json:"stopped_at"`
	ReconnectAttempts int   `json:"reconnect_attempts"`
	Running           bool  `json:"running"`
}
