// Package inject delivers a canned input line into a running session after
// a fixed delay.
package inject

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chime/internal/tmux"
)

// sendTimeout bounds the injection side effect itself; the deliberate wait
// is the timer, not the send.
const sendTimeout = 15 * time.Second

// SessionNotFoundError indicates the target session no longer exists, e.g.
// the user closed it between launch and injection.
type SessionNotFoundError struct {
	Session string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("inject: session %q not found", e.Session)
}

// Is implements errors.Is for SessionNotFoundError.
func (e *SessionNotFoundError) Is(target error) bool {
	_, ok := target.(*SessionNotFoundError)
	return ok
}

// ErrSessionNotFound is a sentinel for errors.Is matching.
var ErrSessionNotFound = &SessionNotFoundError{}

// Sender writes input into a named session.
type Sender interface {
	HasSession(ctx context.Context, name string) (bool, error)
	SendLine(ctx context.Context, name, text string) error
}

// Injector schedules one-shot delayed payload injections.
type Injector struct {
	sender Sender
	log    zerolog.Logger
}

// New creates an injector backed by the given sender.
func New(sender Sender, log zerolog.Logger) *Injector {
	return &Injector{sender: sender, log: log}
}

// Schedule arms a single-fire timer. On fire the payload is written into
// sessionID's input stream followed by a line submit, and done is invoked
// exactly once with the outcome. The returned cancel function is idempotent
// and a no-op once the timer has fired; a cancelled injection never calls
// done. Failures are reported, never retried.
func (i *Injector) Schedule(sessionID, payload string, delay time.Duration, done func(error)) (cancel func()) {
	i.log.Info().
		Str("session", sessionID).
		Dur("delay", delay).
		Msg("injection scheduled")

	timer := time.AfterFunc(delay, func() {
		err := i.send(sessionID, payload)
		if err != nil {
			i.log.Error().Err(err).Str("session", sessionID).Msg("injection failed")
		} else {
			i.log.Info().Str("session", sessionID).Str("payload", payload).Msg("injection delivered")
		}
		done(err)
	})

	return func() {
		if timer.Stop() {
			i.log.Info().Str("session", sessionID).Msg("injection cancelled")
		}
	}
}

func (i *Injector) send(sessionID, payload string) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	ok, err := i.sender.HasSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("inject: probe session: %w", err)
	}
	if !ok {
		return &SessionNotFoundError{Session: sessionID}
	}

	if err := i.sender.SendLine(ctx, sessionID, payload); err != nil {
		// The session can die between the probe and the send.
		if errors.Is(err, tmux.ErrSessionNotFound) || errors.Is(err, tmux.ErrNoServer) {
			return &SessionNotFoundError{Session: sessionID}
		}
		return fmt.Errorf("inject: send payload: %w", err)
	}
	return nil
}
