package schedule

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chime/internal/launcher"
	"chime/internal/power"
)

// fakeLease counts releases to catch double-release bugs.
type fakeLease struct {
	inh      *fakeInhibitor
	released int32
}

func (l *fakeLease) Release() error {
	if atomic.AddInt32(&l.released, 1) == 1 {
		atomic.AddInt32(&l.inh.outstanding, -1)
	}
	return nil
}

// fakeInhibitor tracks how many leases are live at any moment.
type fakeInhibitor struct {
	acquired    int32
	outstanding int32
}

func (f *fakeInhibitor) Acquire(ctx context.Context) (power.Lease, error) {
	atomic.AddInt32(&f.acquired, 1)
	atomic.AddInt32(&f.outstanding, 1)
	return &fakeLease{inh: f}, nil
}

type fakeLauncher struct {
	id    string
	err   error
	calls int32
}

func (f *fakeLauncher) Launch(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.id, f.err
}

// fakeInjector mirrors the real injector's timer behavior.
type fakeInjector struct {
	mu        sync.Mutex
	err       error
	scheduled []string
	payloads  []string
	fired     int32
}

func (f *fakeInjector) Schedule(sessionID, payload string, delay time.Duration, done func(error)) func() {
	f.mu.Lock()
	f.scheduled = append(f.scheduled, sessionID)
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()

	timer := time.AfterFunc(delay, func() {
		atomic.AddInt32(&f.fired, 1)
		done(f.err)
	})
	return func() { timer.Stop() }
}

type harness struct {
	inh      *fakeInhibitor
	launcher *fakeLauncher
	injector *fakeInjector
	events   chan Event
	sched    *Scheduler
}

func newHarness(t *testing.T, now time.Time, injectDelay time.Duration) *harness {
	t.Helper()
	h := &harness{
		inh:      &fakeInhibitor{},
		launcher: &fakeLauncher{id: "claude-session"},
		injector: &fakeInjector{},
		events:   make(chan Event, 1024),
	}
	h.sched = New(
		h.inh,
		h.launcher,
		h.injector,
		func() (string, time.Duration) { return "hi", injectDelay },
		zerolog.Nop(),
		Options{
			Notify: func(e Event) { h.events <- e },
			Now:    func() time.Time { return now },
		},
	)
	return h
}

func (h *harness) waitEvent(t *testing.T, want EventType) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-h.events:
			if e.Type == want {
				return e
			}
		case <-deadline:
			t.Fatalf("event %s not observed", want)
		}
	}
}

func TestScheduleArmsAndHoldsLease(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	h := newHarness(t, now, time.Millisecond)

	target, err := h.sched.Schedule("08:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 10, 8, 5, 0, 0, time.Local), target)

	st := h.sched.Status()
	assert.Equal(t, StateArmed, st.State)
	assert.Equal(t, target, st.Target)
	assert.NotEmpty(t, st.TaskID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.inh.outstanding))

	h.waitEvent(t, EventArmed)
}

func TestScheduleInvalidInputLeavesStateAlone(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	h := newHarness(t, now, time.Millisecond)

	_, err := h.sched.Schedule("25:00")
	assert.ErrorIs(t, err, ErrInvalidTime)
	assert.Equal(t, StateIdle, h.sched.Status().State)
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.inh.acquired))

	// Invalid input while armed does not disturb the armed task either.
	_, err = h.sched.Schedule("09:00")
	require.NoError(t, err)
	_, err = h.sched.Schedule("abc")
	assert.ErrorIs(t, err, ErrInvalidTime)
	assert.Equal(t, StateArmed, h.sched.Status().State)
}

func TestSchedulePastTimeGuard(t *testing.T) {
	// Exactly the current minute with zero seconds resolves to now itself;
	// the zero delay trips the defensive guard.
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	h := newHarness(t, now, time.Millisecond)

	_, err := h.sched.Schedule("08:00")
	assert.ErrorIs(t, err, ErrPastTime)
	assert.Equal(t, StateIdle, h.sched.Status().State)
}

func TestCancelFromArmed(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	h := newHarness(t, now, time.Millisecond)

	_, err := h.sched.Schedule("08:05")
	require.NoError(t, err)

	h.sched.Cancel()
	assert.Equal(t, StateCancelled, h.sched.Status().State)
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.inh.outstanding))
	h.waitEvent(t, EventCancelled)

	// No launch ever happens for a cancelled armed task.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.launcher.calls))
}

func TestCancelIdempotent(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	h := newHarness(t, now, time.Millisecond)

	_, err := h.sched.Schedule("08:05")
	require.NoError(t, err)

	h.sched.Cancel()
	h.sched.Cancel()
	h.sched.Cancel()

	assert.Equal(t, StateCancelled, h.sched.Status().State)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.inh.acquired))
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.inh.outstanding))
}

func TestCancelOnIdleIsNoop(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	h := newHarness(t, now, time.Millisecond)

	h.sched.Cancel()
	assert.Equal(t, StateIdle, h.sched.Status().State)
}

func TestRescheduleSupersedes(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	h := newHarness(t, now, time.Millisecond)

	_, err := h.sched.Schedule("09:00")
	require.NoError(t, err)
	target, err := h.sched.Schedule("10:00")
	require.NoError(t, err)

	st := h.sched.Status()
	assert.Equal(t, StateArmed, st.State)
	assert.Equal(t, time.Date(2026, time.March, 10, 10, 0, 0, 0, time.Local), target)
	assert.Equal(t, target, st.Target)

	// Exactly one live lease and one live timer: the old task settled
	// fully before the new one armed.
	assert.Equal(t, int32(2), atomic.LoadInt32(&h.inh.acquired))
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.inh.outstanding))

	h.waitEvent(t, EventCancelled)
}

func TestFullPipeline(t *testing.T) {
	// Trigger 30ms out, injection 20ms after launch.
	now := time.Date(2026, time.March, 10, 8, 4, 59, int(time.Second-30*time.Millisecond), time.Local)
	h := newHarness(t, now, 20*time.Millisecond)

	_, err := h.sched.Schedule("08:05")
	require.NoError(t, err)

	h.waitEvent(t, EventTriggered)
	done := h.waitEvent(t, EventCompleted)

	assert.NoError(t, done.Err)
	assert.Equal(t, "claude-session", done.SessionID)

	st := h.sched.Status()
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, "claude-session", st.SessionID)
	assert.NoError(t, st.Err)

	// Lease released at fire time, launch ran once, payload delivered.
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.inh.outstanding))
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.launcher.calls))
	assert.Equal(t, []string{"claude-session"}, h.injector.scheduled)
	assert.Equal(t, []string{"hi"}, h.injector.payloads)
}

func TestLaunchSessionCreateFailure(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 4, 59, int(time.Second-20*time.Millisecond), time.Local)
	h := newHarness(t, now, time.Millisecond)
	h.launcher.id = ""
	h.launcher.err = &launcher.SessionCreateError{Cause: errors.New("tmux not installed")}

	_, err := h.sched.Schedule("08:05")
	require.NoError(t, err)

	done := h.waitEvent(t, EventCompleted)
	assert.ErrorIs(t, done.Err, launcher.ErrSessionCreate)

	st := h.sched.Status()
	assert.Equal(t, StateCompleted, st.State)
	assert.ErrorIs(t, st.Err, launcher.ErrSessionCreate)

	// No session means the injector is never scheduled.
	assert.Empty(t, h.injector.scheduled)
}

func TestLaunchTerminalSpawnDegraded(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 4, 59, int(time.Second-20*time.Millisecond), time.Local)
	h := newHarness(t, now, time.Millisecond)
	h.launcher.err = &launcher.TerminalSpawnError{Cause: errors.New("no display")}

	_, err := h.sched.Schedule("08:05")
	require.NoError(t, err)

	done := h.waitEvent(t, EventCompleted)

	// The session exists, so injection still ran; the spawn failure is
	// reported through the completion.
	assert.Equal(t, []string{"claude-session"}, h.injector.scheduled)
	assert.ErrorIs(t, done.Err, launcher.ErrTerminalSpawn)
	assert.Equal(t, StateCompleted, h.sched.Status().State)
}

func TestInjectionFailureStillCompletes(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 4, 59, int(time.Second-20*time.Millisecond), time.Local)
	h := newHarness(t, now, time.Millisecond)
	h.injector.err = errors.New("session vanished")

	_, err := h.sched.Schedule("08:05")
	require.NoError(t, err)

	done := h.waitEvent(t, EventCompleted)
	assert.Error(t, done.Err)
	assert.Equal(t, StateCompleted, h.sched.Status().State)
}

func TestCancelWhileRunning(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 4, 59, int(time.Second-20*time.Millisecond), time.Local)
	h := newHarness(t, now, time.Hour) // injection far in the future

	_, err := h.sched.Schedule("08:05")
	require.NoError(t, err)

	h.waitEvent(t, EventTriggered)

	// Wait for the injection to be armed, then cancel.
	require.Eventually(t, func() bool {
		h.injector.mu.Lock()
		defer h.injector.mu.Unlock()
		return len(h.injector.scheduled) == 1
	}, 2*time.Second, 5*time.Millisecond)

	h.sched.Cancel()
	assert.Equal(t, StateCancelled, h.sched.Status().State)

	// The pending injection never fires and the task never completes.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&h.injector.fired))
}

func TestLeaseHeldIffArmedProperty(t *testing.T) {
	// Random schedule/cancel sequences: at every observable point the
	// sleep lease is outstanding exactly when the task is armed.
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.Local)
	h := newHarness(t, now, time.Millisecond)
	rng := rand.New(rand.NewSource(1))

	times := []string{"09:00", "10:30", "23:59", "0815"}
	for i := 0; i < 100; i++ {
		if rng.Intn(2) == 0 {
			_, err := h.sched.Schedule(times[rng.Intn(len(times))])
			require.NoError(t, err)
		} else {
			h.sched.Cancel()
		}

		want := int32(0)
		if h.sched.Status().State == StateArmed {
			want = 1
		}
		require.Equal(t, want, atomic.LoadInt32(&h.inh.outstanding), "op %d", i)
	}
}
