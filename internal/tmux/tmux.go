// Package tmux wraps the tmux command line for session control and input
// injection. Input goes through send-keys against the session's input
// stream, so it works with the window unfocused or the screen locked.
package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors classified from tmux stderr.
var (
	// ErrNotInstalled indicates the tmux binary is not on PATH.
	ErrNotInstalled = errors.New("tmux: not installed")

	// ErrNoServer indicates no tmux server is running.
	ErrNoServer = errors.New("tmux: no server running")

	// ErrSessionNotFound indicates the target session does not exist.
	ErrSessionNotFound = errors.New("tmux: session not found")

	// ErrSessionExists indicates a session with that name already exists.
	ErrSessionExists = errors.New("tmux: session already exists")

	// ErrBadSessionName indicates a name tmux would mangle or reject.
	ErrBadSessionName = errors.New("tmux: invalid session name")
)

var validSessionName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// enterDebounce is the pause between pasting a line and pressing Enter, so
// the paste is fully processed before submit.
const enterDebounce = 100 * time.Millisecond

// Client runs tmux commands.
type Client struct {
	// cmdBuilder is swappable in tests.
	cmdBuilder func(ctx context.Context, name string, args ...string) *exec.Cmd
	debounce   time.Duration
}

// New creates a tmux client.
func New() *Client {
	return &Client{
		cmdBuilder: exec.CommandContext,
		debounce:   enterDebounce,
	}
}

// SetCmdBuilder replaces the command constructor (used in tests).
func (c *Client) SetCmdBuilder(builder func(ctx context.Context, name string, args ...string) *exec.Cmd) {
	c.cmdBuilder = builder
}

// run executes a tmux command and returns trimmed stdout. The -u flag forces
// UTF-8 regardless of locale.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	allArgs := append([]string{"-u"}, args...)
	cmd := c.cmdBuilder(ctx, "tmux", allArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrNotInstalled
		}
		return "", wrapError(err, stderr.String(), args)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// wrapError classifies tmux stderr into sentinel errors.
func wrapError(err error, stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)

	switch {
	case strings.Contains(stderr, "no server running"),
		strings.Contains(stderr, "error connecting to"),
		strings.Contains(stderr, "server exited unexpectedly"):
		return ErrNoServer
	case strings.Contains(stderr, "duplicate session"):
		return ErrSessionExists
	case strings.Contains(stderr, "session not found"),
		strings.Contains(stderr, "can't find session"),
		strings.Contains(stderr, "no such session"):
		return ErrSessionNotFound
	}

	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: %w", args[0], err)
}

func validateName(name string) error {
	if !validSessionName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrBadSessionName, name)
	}
	return nil
}

// IsAvailable reports whether tmux can be invoked.
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.run(ctx, "-V")
	return err == nil
}

// ServerVersion returns the tmux version string, e.g. "3.4" or "3.3a".
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "-V")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(out, "tmux")), nil
}

// HasSession checks for an exactly matching session. The "=" prefix disables
// tmux's prefix matching, so "claude-session-2" never matches "claude-session".
func (c *Client) HasSession(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	_, err := c.run(ctx, "has-session", "-t", "="+name)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewSession creates a detached session whose pane runs command as its
// initial process. Running the command directly avoids the race where keys
// arrive before the shell prompt exists.
func (c *Client) NewSession(ctx context.Context, name, workDir, command string) error {
	if err := validateName(name); err != nil {
		return err
	}
	args := []string{"new-session", "-d", "-s", name}
	if workDir != "" {
		args = append(args, "-c", workDir)
	}
	if command != "" {
		args = append(args, command)
	}
	_, err := c.run(ctx, args...)
	return err
}

// KillSession terminates a session. Missing session or server is not an
// error here, so callers can use it to clear stale sessions unconditionally.
func (c *Client) KillSession(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	_, err := c.run(ctx, "kill-session", "-t", "="+name)
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
		return nil
	}
	return err
}

// SendLine writes text into the session followed by a separate Enter
// keystroke. Literal mode (-l) keeps special characters intact, and the
// debounce between paste and Enter prevents the submit from racing the paste.
func (c *Client) SendLine(ctx context.Context, name, text string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, err := c.run(ctx, "send-keys", "-t", "="+name, "-l", text); err != nil {
		return err
	}
	if c.debounce > 0 {
		time.Sleep(c.debounce)
	}
	_, err := c.run(ctx, "send-keys", "-t", "="+name, "Enter")
	return err
}
