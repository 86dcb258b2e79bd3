package launcher

import "fmt"

// SessionCreateError indicates the multiplexing layer could not be reached
// or refused to create the session. Nothing was launched; there is no
// session to inject into.
type SessionCreateError struct {
	Cause error
}

func (e *SessionCreateError) Error() string {
	return fmt.Sprintf("launcher: create session: %v", e.Cause)
}

func (e *SessionCreateError) Unwrap() error { return e.Cause }

// Is implements errors.Is for SessionCreateError.
func (e *SessionCreateError) Is(target error) bool {
	_, ok := target.(*SessionCreateError)
	return ok
}

// ErrSessionCreate is a sentinel for errors.Is matching.
var ErrSessionCreate = &SessionCreateError{}

// TerminalSpawnError indicates the terminal window could not be opened. The
// detached session may still exist and remain injectable.
type TerminalSpawnError struct {
	Cause error
}

func (e *TerminalSpawnError) Error() string {
	return fmt.Sprintf("launcher: spawn terminal: %v", e.Cause)
}

func (e *TerminalSpawnError) Unwrap() error { return e.Cause }

// Is implements errors.Is for TerminalSpawnError.
func (e *TerminalSpawnError) Is(target error) bool {
	_, ok := target.(*TerminalSpawnError)
	return ok
}

// ErrTerminalSpawn is a sentinel for errors.Is matching.
var ErrTerminalSpawn = &TerminalSpawnError{}
