package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chime/internal/power"
)

// Launcher performs the trigger-time OS side effects and returns the
// launched session's identity. An empty session ID means nothing exists to
// inject into.
type Launcher interface {
	Launch(ctx context.Context) (sessionID string, err error)
}

// Injector arms a delayed payload injection. done runs exactly once unless
// the returned cancel function stops the timer first.
type Injector interface {
	Schedule(sessionID, payload string, delay time.Duration, done func(error)) (cancel func())
}

// InjectSettings supplies the payload and delay at trigger time, so config
// edits made while armed take effect.
type InjectSettings func() (payload string, delay time.Duration)

// Event describes a state transition, surfaced to the embedding shell.
type Event struct {
	Type      EventType
	Target    time.Time
	SessionID string
	Err       error
}

// EventType enumerates scheduler notifications.
type EventType string

const (
	// EventArmed fires when a schedule is accepted.
	EventArmed EventType = "armed"
	// EventTriggered fires at the scheduled instant, before launch.
	EventTriggered EventType = "triggered"
	// EventCompleted fires when the pipeline is done; Err carries any
	// best-effort launch or injection failure.
	EventCompleted EventType = "completed"
	// EventCancelled fires when a task is cancelled, including implicit
	// cancellation by a superseding schedule.
	EventCancelled EventType = "cancelled"
)

// Scheduler owns the single pending schedule. It holds the sleep lease for
// exactly the armed window and guarantees that after Cancel returns no
// side effects from the cancelled task's timers occur: every timer callback
// re-checks the task generation under the lock before acting.
type Scheduler struct {
	inhibitor power.Inhibitor
	launcher  Launcher
	injector  Injector
	inject    InjectSettings
	notify    func(Event)
	now       func() time.Time
	log       zerolog.Logger

	mu      sync.Mutex
	task    *task
	nextGen uint64
}

// Options configures optional scheduler collaborators.
type Options struct {
	// Notify receives lifecycle events; nil disables notifications. It is
	// called without the scheduler lock held.
	Notify func(Event)
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// New creates a scheduler.
func New(inhibitor power.Inhibitor, launcher Launcher, injector Injector, inject InjectSettings, log zerolog.Logger, opts Options) *Scheduler {
	s := &Scheduler{
		inhibitor: inhibitor,
		launcher:  launcher,
		injector:  injector,
		inject:    inject,
		notify:    opts.Notify,
		now:       opts.Now,
		log:       log,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.notify == nil {
		s.notify = func(Event) {}
	}
	return s
}

// Schedule parses text and arms a one-shot trigger for its next occurrence.
// A live task is fully cancelled first, so at most one timer and one sleep
// lease are ever outstanding. Parse failures leave the current state
// untouched. Returns the resolved trigger instant.
func (s *Scheduler) Schedule(text string) (time.Time, error) {
	now := s.now()
	target, err := ParseWallClock(text, now)
	if err != nil {
		return time.Time{}, err
	}

	delay := target.Sub(now)
	if delay <= 0 {
		return time.Time{}, ErrPastTime
	}

	s.mu.Lock()
	cancelled := s.cancelLocked()

	s.nextGen++
	t := &task{
		id:     uuid.NewString(),
		gen:    s.nextGen,
		target: target,
		state:  StateArmed,
	}

	lease, err := s.inhibitor.Acquire(context.Background())
	if err != nil {
		// Best-effort: the schedule still runs, the machine just isn't
		// protected from sleeping.
		s.log.Warn().Err(err).Msg("sleep inhibition unavailable")
	} else {
		t.lease = lease
	}

	gen := t.gen
	t.timer = time.AfterFunc(delay, func() { s.fire(gen) })
	s.task = t
	s.mu.Unlock()

	if cancelled {
		s.notify(Event{Type: EventCancelled})
	}
	s.log.Info().
		Str("task", t.id).
		Time("target", target).
		Dur("delay", delay).
		Msg("schedule armed")
	s.notify(Event{Type: EventArmed, Target: target})

	return target, nil
}

// Cancel stops the pending task. From Armed it kills the trigger timer and
// releases the sleep lease; from Running it cancels the pending injection
// (the launch itself is not undone). Idempotent: cancelling an idle or
// finished scheduler is a no-op.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	cancelled := s.cancelLocked()
	s.mu.Unlock()

	if cancelled {
		s.notify(Event{Type: EventCancelled})
	}
}

// Status returns a snapshot of the current task.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task == nil {
		return Status{State: StateIdle}
	}
	return Status{
		State:     s.task.state,
		TaskID:    s.task.id,
		Target:    s.task.target,
		SessionID: s.task.sessionID,
		Err:       s.task.lastErr,
	}
}

// cancelLocked settles the live task. Caller holds s.mu. Reports whether a
// task actually transitioned to Cancelled.
func (s *Scheduler) cancelLocked() bool {
	t := s.task
	if t == nil || t.state.Terminal() {
		return false
	}

	switch t.state {
	case StateArmed:
		t.timer.Stop()
		s.releaseLeaseLocked(t)
	case StateRunning:
		if t.cancelInject != nil {
			t.cancelInject()
		}
	}
	t.state = StateCancelled
	s.log.Info().Str("task", t.id).Msg("schedule cancelled")
	return true
}

// releaseLeaseLocked releases the task's sleep lease if held. Release is
// idempotent at the lease level; clearing the handle keeps the invariant
// that a lease exists iff the task is armed.
func (s *Scheduler) releaseLeaseLocked(t *task) {
	if t.lease == nil {
		return
	}
	if err := t.lease.Release(); err != nil {
		s.log.Warn().Err(err).Msg("sleep lease release failed")
	}
	t.lease = nil
}

// fire runs at the trigger instant. The generation check makes stale timer
// callbacks from superseded or cancelled tasks harmless regardless of how
// time.Timer.Stop raced.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	t := s.task
	if t == nil || t.gen != gen || t.state != StateArmed {
		s.mu.Unlock()
		return
	}
	s.releaseLeaseLocked(t)
	t.state = StateRunning
	target := t.target
	s.mu.Unlock()

	s.log.Info().Str("task", t.id).Time("target", target).Msg("trigger fired")
	s.notify(Event{Type: EventTriggered, Target: target})

	// Launch happens outside the lock; Cancel calls during it are honored
	// by the state re-check below.
	sessionID, launchErr := s.launcher.Launch(context.Background())

	s.mu.Lock()
	if s.task != t || t.state != StateRunning {
		s.mu.Unlock()
		return
	}

	t.sessionID = sessionID
	if launchErr != nil {
		t.lastErr = launchErr
	}

	if sessionID == "" {
		// Nothing to inject into. Best-effort automation: the task still
		// completes, the failure travels through Status and the event.
		t.state = StateCompleted
		s.mu.Unlock()

		s.log.Error().Err(launchErr).Str("task", t.id).Msg("launch failed, no session")
		s.notify(Event{Type: EventCompleted, Err: launchErr})
		return
	}

	if launchErr != nil {
		s.log.Warn().Err(launchErr).Str("task", t.id).Str("session", sessionID).
			Msg("launch degraded, continuing with injection")
	}

	payload, delay := s.inject()
	t.cancelInject = s.injector.Schedule(sessionID, payload, delay, func(err error) {
		s.injectionDone(t, err)
	})
	s.mu.Unlock()
}

// injectionDone is the injector's completion callback; it finishes the task.
func (s *Scheduler) injectionDone(t *task, err error) {
	s.mu.Lock()
	if s.task != t || t.state != StateRunning {
		s.mu.Unlock()
		return
	}
	if err != nil {
		t.lastErr = err
	}
	t.state = StateCompleted
	sessionID := t.sessionID
	finalErr := t.lastErr
	s.mu.Unlock()

	s.log.Info().Str("task", t.id).Str("session", sessionID).Err(err).Msg("task completed")
	s.notify(Event{Type: EventCompleted, SessionID: sessionID, Err: finalErr})
}
