package cli

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"chime/internal/tmux"
)

// minTmuxVersion is the oldest tmux whose send-keys -l (literal mode)
// behaves the way injection needs.
var minTmuxVersion = semver.MustParse("1.8")

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the environment",
		Long: `Run diagnostic checks on the chime environment.

This command checks:
- Configuration file validity
- tmux availability and version
- Terminal spawn mechanism
- Sleep inhibition mechanism`,
		RunE: runDoctor,
	}
	return cmd
}

type checkResult struct {
	name    string
	status  string // ok, warning, error
	message string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Chime Doctor")
	fmt.Println("============")
	fmt.Println()

	results := []checkResult{
		checkSystemInfo(),
		checkConfigFile(cmd),
		checkTmux(cmd),
		checkTerminal(),
		checkSleepInhibition(),
	}

	hasErrors := false
	hasWarnings := false
	for _, r := range results {
		icon := "✓"
		if r.status == "warning" {
			icon = "⚠"
			hasWarnings = true
		} else if r.status == "error" {
			icon = "✗"
			hasErrors = true
		}
		fmt.Printf("%s %s: %s\n", icon, r.name, r.message)
	}

	fmt.Println()
	if hasErrors {
		fmt.Println("Some checks failed. Scheduling will degrade or not work.")
	} else if hasWarnings {
		fmt.Println("Warnings detected. Scheduling should work but may degrade.")
	} else {
		fmt.Println("All checks passed.")
	}
	return nil
}

func checkSystemInfo() checkResult {
	return checkResult{
		name:    "System",
		status:  "ok",
		message: fmt.Sprintf("Go %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

func checkConfigFile(cmd *cobra.Command) checkResult {
	cliCtx := GetCLIContext(cmd)

	path := cliCtx.ConfigPath
	if _, err := os.Stat(path); err != nil {
		return checkResult{
			name:    "Config",
			status:  "warning",
			message: fmt.Sprintf("no file at %s, using defaults (run: chime init)", path),
		}
	}
	if err := cliCtx.Manager.Get().Validate(); err != nil {
		return checkResult{name: "Config", status: "error", message: err.Error()}
	}
	return checkResult{name: "Config", status: "ok", message: path}
}

func checkTmux(cmd *cobra.Command) checkResult {
	tm := tmux.New()
	ctx := cmd.Context()

	if !tm.IsAvailable(ctx) {
		return checkResult{name: "tmux", status: "error", message: "not installed or not on PATH"}
	}

	raw, err := tm.ServerVersion(ctx)
	if err != nil {
		return checkResult{name: "tmux", status: "warning", message: fmt.Sprintf("version check failed: %v", err)}
	}

	v, err := parseTmuxVersion(raw)
	if err != nil {
		// Development builds report things like "next-3.5"; treat as fine.
		return checkResult{name: "tmux", status: "ok", message: raw}
	}
	if v.LessThan(minTmuxVersion) {
		return checkResult{
			name:    "tmux",
			status:  "error",
			message: fmt.Sprintf("version %s too old, need >= %s for literal key injection", raw, minTmuxVersion),
		}
	}
	return checkResult{name: "tmux", status: "ok", message: raw}
}

var tmuxVersionRe = regexp.MustCompile(`[0-9]+(\.[0-9]+)*`)

// parseTmuxVersion turns tmux version strings like "3.4" or "3.3a" into a
// comparable semver version.
func parseTmuxVersion(raw string) (*semver.Version, error) {
	m := tmuxVersionRe.FindString(raw)
	if m == "" {
		return nil, fmt.Errorf("unrecognized tmux version %q", raw)
	}
	return semver.NewVersion(m)
}

func checkTerminal() checkResult {
	if runtime.GOOS == "darwin" {
		if _, err := exec.LookPath("osascript"); err != nil {
			return checkResult{name: "Terminal", status: "error", message: "osascript not found"}
		}
		return checkResult{name: "Terminal", status: "ok", message: "Terminal.app via osascript"}
	}

	if env := os.Getenv("TERMINAL"); env != "" {
		return checkResult{name: "Terminal", status: "ok", message: "$TERMINAL=" + env}
	}
	for _, name := range []string{"x-terminal-emulator", "gnome-terminal", "konsole", "xfce4-terminal", "alacritty", "kitty", "xterm"} {
		if _, err := exec.LookPath(name); err == nil {
			return checkResult{name: "Terminal", status: "ok", message: name}
		}
	}
	return checkResult{name: "Terminal", status: "error", message: "no terminal emulator found"}
}

func checkSleepInhibition() checkResult {
	switch runtime.GOOS {
	case "darwin":
		if _, err := exec.LookPath("caffeinate"); err != nil {
			return checkResult{name: "Sleep inhibition", status: "warning", message: "caffeinate not found"}
		}
		return checkResult{name: "Sleep inhibition", status: "ok", message: "caffeinate"}
	case "linux":
		if _, err := os.Stat("/run/systemd/system"); err != nil {
			return checkResult{name: "Sleep inhibition", status: "warning", message: "systemd-logind not detected"}
		}
		return checkResult{name: "Sleep inhibition", status: "ok", message: "systemd-logind"}
	default:
		return checkResult{name: "Sleep inhibition", status: "warning", message: "unsupported platform, machine may sleep while waiting"}
	}
}
