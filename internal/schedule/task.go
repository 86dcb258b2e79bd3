package schedule

import (
	"time"

	"chime/internal/power"
)

// State is a scheduled task's lifecycle state.
type State string

const (
	// StateIdle means no task has been scheduled yet.
	StateIdle State = "idle"
	// StateArmed means the trigger timer is set and the sleep lease held.
	StateArmed State = "armed"
	// StateRunning means the trigger fired and the launch/injection
	// pipeline is in flight.
	StateRunning State = "running"
	// StateCompleted means the pipeline finished, successfully or not.
	StateCompleted State = "completed"
	// StateCancelled means the task was cancelled before completion.
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state accepts a new schedule without an
// implicit cancel first.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateCompleted || s == StateCancelled
}

// task is the single owned schedule instance. All mutation happens inside
// the Scheduler's lock; the generation tag lets timer callbacks detect that
// they belong to a superseded task.
type task struct {
	id           string
	gen          uint64
	target       time.Time
	state        State
	lease        power.Lease
	timer        *time.Timer
	sessionID    string
	cancelInject func()
	lastErr      error
}

// Status is an externally visible snapshot of the scheduler.
type Status struct {
	State State
	// TaskID identifies the task the rest of the fields describe.
	TaskID string
	// Target is the trigger instant; meaningful from Armed onward.
	Target time.Time
	// SessionID is set once the session has launched.
	SessionID string
	// Err carries the most recent best-effort failure (launch or
	// injection); the task still completes.
	Err error
}
