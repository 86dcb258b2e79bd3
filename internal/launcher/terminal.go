package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// TerminalOpener opens a visible terminal window running a shell command.
type TerminalOpener interface {
	Open(ctx context.Context, command string) error
}

// NewTerminalOpener returns the opener for the current platform. app
// overrides the default terminal application; empty means autodetect.
func NewTerminalOpener(app string) TerminalOpener {
	if runtime.GOOS == "darwin" {
		if app == "" {
			app = "Terminal"
		}
		return &macTerminal{app: app, cmdBuilder: exec.CommandContext}
	}
	return &unixTerminal{app: app, cmdBuilder: exec.CommandContext}
}

// macTerminal drives Terminal.app through osascript, the same mechanism
// Apple automation uses for Notes and Messages.
type macTerminal struct {
	app        string
	cmdBuilder func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func (t *macTerminal) Open(ctx context.Context, command string) error {
	script := fmt.Sprintf(`tell application %q
	activate
	do script %q
end tell`, t.app, command)

	cmd := t.cmdBuilder(ctx, "osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// emulatorCandidates are tried in order when neither the config nor
// $TERMINAL names an emulator.
var emulatorCandidates = []string{
	"x-terminal-emulator",
	"gnome-terminal",
	"konsole",
	"xfce4-terminal",
	"alacritty",
	"kitty",
	"xterm",
}

// unixTerminal spawns an X/Wayland terminal emulator running the command.
type unixTerminal struct {
	app        string
	cmdBuilder func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// emulator resolves which terminal emulator binary to use.
func (t *unixTerminal) emulator() (string, error) {
	if t.app != "" {
		return t.app, nil
	}
	if env := os.Getenv("TERMINAL"); env != "" {
		return env, nil
	}
	for _, name := range emulatorCandidates {
		if _, err := exec.LookPath(name); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no terminal emulator found (tried %s)", strings.Join(emulatorCandidates, ", "))
}

// emulatorArgs builds the argument form the emulator expects.
// gnome-terminal dropped -e in favor of a "--" separator.
func emulatorArgs(emulator, command string) []string {
	if filepath.Base(emulator) == "gnome-terminal" {
		return []string{"--", "sh", "-c", command}
	}
	return []string{"-e", "sh", "-c", command}
}

func (t *unixTerminal) Open(ctx context.Context, command string) error {
	emu, err := t.emulator()
	if err != nil {
		return err
	}

	cmd := t.cmdBuilder(ctx, emu, emulatorArgs(emu, command)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", emu, err)
	}
	// The window is long-lived; reap it in the background.
	go func() { _ = cmd.Wait() }()
	return nil
}
