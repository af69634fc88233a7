package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Monitor watches a connection for staleness and asks it to reopen.
type Monitor struct {
	conn     Reopener
	opts     Options
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer

	mu                sync.Mutex
	pingedAt          int64
	disconnectedAt    int64
	startedAt         int64
	stoppedAt         int64
	reconnectAttempts int

	// done belongs to the current polling epoch; nil when no loop runs.
	done chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithObserver sets a receiver for check outcomes.
func WithObserver(o Observer) Option {
	return func(m *Monitor) {
		m.observer = o
	}
}

// New creates a Monitor for conn.
func New(conn Reopener, opts Options, options ...Option) *Monitor {
	m := &Monitor{
		conn:   conn,
		opts:   opts,
		clock:  clock.New(),
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	if m.opts.ReconnectionDelay <= 0 {
		m.logger.Warn("non-positive reconnection delay, using default",
			"delay", m.opts.ReconnectionDelay,
			"default", DefaultReconnectionDelay,
		)
		m.opts.ReconnectionDelay = DefaultReconnectionDelay
	}

	return m
}

// Options returns the options the monitor runs with.
func (m *Monitor) Options() Options {
	return m.opts
}

// RecordConnect marks a successful connection.
func (m *Monitor) RecordConnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reconnectAttempts = 0
	m.pingedAt = m.now()
	m.disconnectedAt = 0
}

// RecordDisconnect marks a dropped connection. The last ping time and the
// attempt count are left alone.
func (m *Monitor) RecordDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectedAt = m.now()
}

// RecordPing marks an inbound liveness signal.
func (m *Monitor) RecordPing() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pingedAt = m.now()
}

// Start begins a new monitoring epoch, retiring any previous polling loop.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.done != nil {
		close(m.done)
	}
	done := make(chan struct{})
	m.done = done

	m.reconnectAttempts = 0
	m.stoppedAt = 0
	m.startedAt = m.now()

	// Arm the first timer before returning so time starts counting now.
	wait := Interval(m.opts, m.reconnectAttempts)
	timer := m.clock.Timer(wait)
	m.mu.Unlock()

	m.logger.Debug("connection monitor started", "interval", wait)

	go m.poll(done, timer)
}

// Stop ends the current epoch. Once it returns no further check runs, so
// the only Reopen that can still land is one already decided before Stop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stoppedAt = m.now()
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		PingedAt:          m.pingedAt,
		DisconnectedAt:    m.disconnectedAt,
		StartedAt:         m.startedAt,
		StoppedAt:         m.stoppedAt,
		ReconnectAttempts: m.reconnectAttempts,
		Running:           m.startedAt != 0 && m.stoppedAt == 0,
	}
}

// poll is the reconnect-check loop for one epoch.
func (m *Monitor) poll(done <-chan struct{}, timer *clock.Timer) {
	for {
		select {
		case <-done:
			timer.Stop()
			return
		case <-timer.C:
		}

		outcome, attempts, next := m.check(done)
		if outcome == OutcomeSkipped {
			return
		}

		// Arm the next wait before reporting so observers see a settled loop.
		timer = m.clock.Timer(next)
		m.report(outcome, attempts)
	}
}

// check evaluates the policy for one cycle and returns the next wait.
func (m *Monitor) check(done <-chan struct{}) (Outcome, int, time.Duration) {
	m.mu.Lock()

	select {
	case <-done:
		m.mu.Unlock()
		return OutcomeSkipped, 0, 0
	default:
	}
	if m.stoppedAt != 0 {
		m.mu.Unlock()
		return OutcomeSkipped, 0, 0
	}

	outcome := m.decide()
	attempts := m.reconnectAttempts
	next := Interval(m.opts, attempts)
	m.mu.Unlock()

	if outcome == OutcomeReopened {
		m.conn.Reopen()
	}

	return outcome, attempts, next
}

// decide applies the reconnect policy. Caller holds m.mu.
func (m *Monitor) decide() Outcome {
	if !m.opts.Reconnection {
		return OutcomeDisabled
	}
	if !m.isStale() {
		return OutcomeFresh
	}
	if m.reconnectAttempts >= m.opts.ReconnectionMaxAttempts {
		return OutcomeExhausted
	}

	m.reconnectAttempts++
	if m.disconnectedRecently() {
		return OutcomeSuppressed
	}
	return OutcomeReopened
}

// isStale reports whether too long has passed since the last ping, or since
// start when no ping was ever recorded. Caller holds m.mu.
func (m *Monitor) isStale() bool {
	ref := m.startedAt
	if m.pingedAt > 0 {
		ref = m.pingedAt
	}
	return m.secondsSince(ref) > StaleThreshold
}

// disconnectedRecently reports whether a disconnect falls inside the
// suppression window. Caller holds m.mu.
func (m *Monitor) disconnectedRecently() bool {
	return m.disconnectedAt != 0 && m.secondsSince(m.disconnectedAt) < SuppressionWindow
}

func (m *Monitor) report(outcome Outcome, attempts int) {
	switch outcome {
	case OutcomeReopened:
		m.logger.Info("connection stale, reopening",
			"attempt", attempts,
			"max_attempts", m.opts.ReconnectionMaxAttempts,
		)
	case OutcomeSuppressed:
		m.logger.Debug("connection stale, disconnected recently",
			"attempt", attempts,
		)
	case OutcomeExhausted:
		m.logger.Debug("connection stale, reconnect attempts exhausted",
			"max_attempts", m.opts.ReconnectionMaxAttempts,
		)
	}

	if m.observer != nil {
		m.observer.ObserveCheck(outcome, attempts)
	}
}

// secondsSince returns whole seconds elapsed since ts (Unix ms).
func (m *Monitor) secondsSince(ts int64) int64 {
	return (m.now() - ts) / 1000
}

func (m *Monitor) now() int64 {
	return m.clock.Now().UnixMilli()
}
