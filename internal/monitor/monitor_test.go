package monitor

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingObserver collects check outcomes and signals each finished cycle.
type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
	cycles   chan struct{}
}

func (o *recordingObserver) ObserveCheck(outcome Outcome, attempts int) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, outcome)
	o.mu.Unlock()

	o.cycles <- struct{}{}
}

func (o *recordingObserver) list() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.outcomes...)
}

// harness drives a Monitor with a mock clock and counts reopens.
type harness struct {
	t        *testing.T
	clock    *clock.Mock
	mon      *Monitor
	observer *recordingObserver
	reopens  atomic.Int32
	cycles   chan struct{}
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(epoch)

	cycles := make(chan struct{}, 100)
	h := &harness{
		t:        t,
		clock:    mock,
		observer: &recordingObserver{cycles: cycles},
		cycles:   cycles,
	}
	h.mon = New(ReopenerFunc(func() { h.reopens.Add(1) }), opts,
		WithClock(mock),
		WithLogger(discardLogger()),
		WithObserver(h.observer),
	)

	t.Cleanup(h.mon.Stop)
	return h
}

// tick advances the clock by d and waits for the poll cycle it triggers.
func (h *harness) tick(d time.Duration) {
	h.t.Helper()
	h.clock.Add(d)
	h.expectCycle()
}

// ticks advances the clock one second at a time, n times.
func (h *harness) ticks(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.tick(time.Second)
	}
}

func (h *harness) expectCycle() {
	h.t.Helper()
	select {
	case <-h.cycles:
	case <-time.After(2 * time.Second):
		h.t.Fatal("poll cycle did not fire")
	}
}

func (h *harness) expectNoCycle() {
	h.t.Helper()
	select {
	case <-h.cycles:
		h.t.Fatal("unexpected poll cycle")
	case <-time.After(50 * time.Millisecond):
	}
}

// flatOptions keeps the poll interval at one second regardless of attempts.
func flatOptions(maxAttempts int) Options {
	return Options{
		Reconnection:            true,
		ReconnectionDelay:       time.Second,
		ReconnectionDelayMax:    time.Second,
		ReconnectionMaxAttempts: maxAttempts,
	}
}

func TestInterval(t *testing.T) {
	opts := Options{
		ReconnectionDelay:    3 * time.Second,
		ReconnectionDelayMax: 30 * time.Second,
	}

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 3 * time.Second},
		{1, 3 * time.Second},  // floor(5*ln 2) = 3
		{2, 5 * time.Second},  // floor(5*ln 3) = 5
		{4, 8 * time.Second},  // floor(5*ln 5) = 8
		{9, 11 * time.Second}, // floor(5*ln 10) = 11
		{99, 23 * time.Second},
		{1000, 30 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Interval(opts, tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestInterval_ZeroAttemptsIsMinDelay(t *testing.T) {
	for _, delay := range []time.Duration{time.Second, 3 * time.Second, 17 * time.Second} {
		opts := Options{ReconnectionDelay: delay, ReconnectionDelayMax: time.Minute}
		assert.Equal(t, delay, Interval(opts, 0))
	}
}

func TestInterval_MonotonicAndBounded(t *testing.T) {
	opts := Options{
		ReconnectionDelay:    2 * time.Second,
		ReconnectionDelayMax: 20 * time.Second,
	}

	prev := Interval(opts, 0)
	for n := 0; n <= 5000; n++ {
		got := Interval(opts, n)
		require.GreaterOrEqual(t, got, prev, "attempts=%d", n)
		require.GreaterOrEqual(t, got, opts.ReconnectionDelay)
		require.LessOrEqual(t, got, opts.ReconnectionDelayMax)
		prev = got
	}
}

func TestInterval_MinAboveMaxWins(t *testing.T) {
	opts := Options{
		ReconnectionDelay:    10 * time.Second,
		ReconnectionDelayMax: 5 * time.Second,
	}
	assert.Equal(t, 10*time.Second, Interval(opts, 50))
}

func TestMonitor_RecordConnectResets(t *testing.T) {
	h := newHarness(t, flatOptions(10))
	h.mon.Start()
	h.ticks(8) // stale at 7s and 8s: two attempts

	h.mon.RecordDisconnect()
	state := h.mon.Snapshot()
	require.Equal(t, 2, state.ReconnectAttempts)
	require.NotZero(t, state.DisconnectedAt)

	h.mon.RecordConnect()
	state = h.mon.Snapshot()
	assert.Equal(t, 0, state.ReconnectAttempts)
	assert.Zero(t, state.DisconnectedAt)
	assert.Equal(t, h.clock.Now().UnixMilli(), state.PingedAt)
}

func TestMonitor_RecordDisconnectKeepsPingAndAttempts(t *testing.T) {
	h := newHarness(t, flatOptions(10))
	h.mon.RecordPing()
	pingedAt := h.mon.Snapshot().PingedAt

	h.clock.Add(2 * time.Second)
	h.mon.RecordDisconnect()

	state := h.mon.Snapshot()
	assert.Equal(t, pingedAt, state.PingedAt)
	assert.Equal(t, h.clock.Now().UnixMilli(), state.DisconnectedAt)
	assert.Equal(t, 0, state.ReconnectAttempts)
}

func TestMonitor_StartResetsState(t *testing.T) {
	h := newHarness(t, flatOptions(10))
	h.mon.Start()
	h.ticks(9)
	h.mon.Stop()
	require.NotZero(t, h.mon.Snapshot().StoppedAt)
	require.False(t, h.mon.Snapshot().Running)

	h.clock.Add(time.Second)
	h.mon.Start()

	state := h.mon.Snapshot()
	assert.Equal(t, 0, state.ReconnectAttempts)
	assert.Zero(t, state.StoppedAt)
	assert.Equal(t, h.clock.Now().UnixMilli(), state.StartedAt)
	assert.True(t, state.Running)

	// First cycle fires after interval(0).
	h.tick(time.Second)
}

func TestMonitor_NeverStartedIsNotRunning(t *testing.T) {
	h := newHarness(t, flatOptions(10))
	assert.False(t, h.mon.Snapshot().Running)
}

func TestMonitor_StaleBoundary(t *testing.T) {
	h := newHarness(t, flatOptions(10))
	h.mon.RecordPing()

	stale := func() bool {
		h.mon.mu.Lock()
		defer h.mon.mu.Unlock()
		return h.mon.isStale()
	}

	h.clock.Add(6 * time.Second)
	assert.False(t, stale(), "6s elapsed")

	h.clock.Add(999 * time.Millisecond)
	assert.False(t, stale(), "6.999s elapsed floors to 6")

	h.clock.Add(time.Millisecond)
	assert.True(t, stale(), "7s elapsed")
}

func TestMonitor_StaleFallsBackToStartedAt(t *testing.T) {
	h := newHarness(t, flatOptions(10))
	h.mon.Start()

	h.ticks(6)
	assert.Equal(t, []Outcome{
		OutcomeFresh, OutcomeFresh, OutcomeFresh,
		OutcomeFresh, OutcomeFresh, OutcomeFresh,
	}, h.observer.list())

	h.tick(time.Second)
	assert.Equal(t, OutcomeReopened, h.observer.list()[6])
}

// Idle connection: one reopen per stale cycle until the cap.
func TestMonitor_ReopensUntilAttemptsExhausted(t *testing.T) {
	h := newHarness(t, flatOptions(5))
	h.mon.Start()

	h.ticks(6)
	assert.Equal(t, int32(0), h.reopens.Load())

	h.ticks(5)
	assert.Equal(t, int32(5), h.reopens.Load())
	assert.Equal(t, 5, h.mon.Snapshot().ReconnectAttempts)

	h.ticks(10)
	assert.Equal(t, int32(5), h.reopens.Load())
	assert.Equal(t, 5, h.mon.Snapshot().ReconnectAttempts)

	outcomes := h.observer.list()
	assert.Equal(t, OutcomeExhausted, outcomes[len(outcomes)-1])
}

func TestMonitor_SuppressesReopenAfterRecentDisconnect(t *testing.T) {
	h := newHarness(t, flatOptions(5))
	h.mon.Start()

	h.ticks(4)
	h.mon.RecordDisconnect()
	h.ticks(3) // 7s since start, 3s since disconnect

	assert.Equal(t, int32(0), h.reopens.Load())
	assert.Equal(t, 1, h.mon.Snapshot().ReconnectAttempts)

	outcomes := h.observer.list()
	assert.Equal(t, OutcomeSuppressed, outcomes[len(outcomes)-1])
}

func TestMonitor_ReopensOnceSuppressionWindowPasses(t *testing.T) {
	h := newHarness(t, flatOptions(5))
	h.mon.Start()
	h.mon.RecordDisconnect()

	h.ticks(7) // 7s since the disconnect

	assert.Equal(t, int32(1), h.reopens.Load())
	assert.Equal(t, 1, h.mon.Snapshot().ReconnectAttempts)
}

func TestMonitor_SuppressedAttemptsStillReachCap(t *testing.T) {
	h := newHarness(t, flatOptions(2))
	h.mon.Start()

	h.ticks(6)
	h.mon.RecordDisconnect()
	h.ticks(4) // stale at 7s and 8s, both suppressed; then exhausted

	assert.Equal(t, int32(0), h.reopens.Load())
	assert.Equal(t, 2, h.mon.Snapshot().ReconnectAttempts)

	h.ticks(6) // disconnect is now old, but the cap holds
	assert.Equal(t, int32(0), h.reopens.Load())
}

func TestMonitor_ReconnectionDisabled(t *testing.T) {
	opts := flatOptions(5)
	opts.Reconnection = false

	h := newHarness(t, opts)
	h.mon.Start()
	h.ticks(30)

	assert.Equal(t, int32(0), h.reopens.Load())
	assert.Equal(t, 0, h.mon.Snapshot().ReconnectAttempts)
	for _, o := range h.observer.list() {
		assert.Equal(t, OutcomeDisabled, o)
	}
}

func TestMonitor_StopHaltsReopens(t *testing.T) {
	h := newHarness(t, flatOptions(10))
	h.mon.Start()
	h.ticks(7)
	require.Equal(t, int32(1), h.reopens.Load())

	h.mon.Stop()
	h.clock.Add(30 * time.Second)
	h.expectNoCycle()

	assert.Never(t, func() bool { return h.reopens.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestMonitor_PingKeepsConnectionFresh(t *testing.T) {
	h := newHarness(t, flatOptions(10))
	h.mon.Start()

	for i := 0; i < 20; i++ {
		h.mon.RecordPing()
		h.tick(time.Second)
	}

	assert.Equal(t, int32(0), h.reopens.Load())
	assert.Equal(t, 0, h.mon.Snapshot().ReconnectAttempts)
}

func TestMonitor_RestartSupersedesPreviousLoop(t *testing.T) {
	h := newHarness(t, flatOptions(10))
	h.mon.Start()
	h.mon.Start()

	h.tick(time.Second)
	h.expectNoCycle()

	h.ticks(6) // 7s since the second start
	assert.Equal(t, int32(1), h.reopens.Load())
}

func TestMonitor_IntervalWidensWithAttempts(t *testing.T) {
	h := newHarness(t, Options{
		Reconnection:            true,
		ReconnectionDelay:       time.Second,
		ReconnectionDelayMax:    30 * time.Second,
		ReconnectionMaxAttempts: 10,
	})
	h.mon.Start()

	h.ticks(7)
	require.Equal(t, int32(1), h.reopens.Load())

	// interval(1) = floor(5*ln 2) = 3s
	h.clock.Add(2 * time.Second)
	h.expectNoCycle()
	h.tick(time.Second)
	assert.Equal(t, int32(2), h.reopens.Load())

	// interval(2) = floor(5*ln 3) = 5s
	h.clock.Add(4 * time.Second)
	h.expectNoCycle()
	h.tick(time.Second)
	assert.Equal(t, int32(3), h.reopens.Load())
}

func TestNew_NonPositiveDelayFallsBackToDefault(t *testing.T) {
	m := New(ReopenerFunc(func() {}), Options{}, WithLogger(discardLogger()))
	assert.Equal(t, DefaultReconnectionDelay, m.Options().ReconnectionDelay)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "reopened", OutcomeReopened.String())
	assert.Equal(t, "suppressed", OutcomeSuppressed.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
