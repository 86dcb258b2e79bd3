// Package launcher orchestrates the OS side effects of a triggered
// schedule: a fresh persistent tmux session running the target command, and
// a terminal window attached to it.
package launcher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"chime/internal/tmux"
)

// Settings is the launch-time session configuration. It is read through a
// provider function so config edits made while a schedule is armed apply.
type Settings struct {
	Name    string
	Command string
	WorkDir string
}

// Sessions is the subset of the tmux client the launcher needs.
type Sessions interface {
	IsAvailable(ctx context.Context) bool
	KillSession(ctx context.Context, name string) error
	NewSession(ctx context.Context, name, workDir, command string) error
}

// Launcher creates the session and opens the attached terminal window.
type Launcher struct {
	sessions Sessions
	term     TerminalOpener
	settings func() Settings
	log      zerolog.Logger
}

// New creates a launcher.
func New(sessions Sessions, term TerminalOpener, settings func() Settings, log zerolog.Logger) *Launcher {
	return &Launcher{sessions: sessions, term: term, settings: settings, log: log}
}

// Launch kills any stale session of the well-known name, creates a fresh
// detached session running the target command, then opens a terminal window
// attached to it.
//
// On SessionCreateError the returned session ID is empty: nothing exists to
// inject into. On TerminalSpawnError the ID is returned alongside the error,
// since the detached session is alive and injection still makes sense.
func (l *Launcher) Launch(ctx context.Context) (string, error) {
	s := l.settings()

	if !l.sessions.IsAvailable(ctx) {
		return "", &SessionCreateError{Cause: tmux.ErrNotInstalled}
	}

	// The well-known name is reused across runs; clear any leftover first.
	if err := l.sessions.KillSession(ctx, s.Name); err != nil {
		l.log.Warn().Err(err).Str("session", s.Name).Msg("could not clear stale session")
	}

	if err := l.sessions.NewSession(ctx, s.Name, s.WorkDir, s.Command); err != nil {
		return "", &SessionCreateError{Cause: err}
	}
	l.log.Info().Str("session", s.Name).Str("command", s.Command).Msg("session created")

	attach := fmt.Sprintf("tmux attach -t %s", s.Name)
	if err := l.term.Open(ctx, attach); err != nil {
		return s.Name, &TerminalSpawnError{Cause: err}
	}
	l.log.Info().Str("session", s.Name).Msg("terminal window opened")

	return s.Name, nil
}
