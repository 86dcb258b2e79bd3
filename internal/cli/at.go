package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"chime/internal/inject"
	"chime/internal/launcher"
	"chime/internal/power"
	"chime/internal/schedule"
	"chime/internal/tmux"
	"chime/pkg/logger"
)

// NewAtCmd creates the at command.
func NewAtCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "at [HH:MM]",
		Short: "Schedule the claude session launch for a wall-clock time",
		Long: `Arm a one-shot schedule. At the given 24-hour time (HH:MM or compact
HHMM; times already past today mean tomorrow) chime opens a terminal
attached to the configured tmux session running claude, then injects the
configured greeting shortly after.

The process stays in the foreground until the task finishes. Ctrl-C
cancels the schedule, releasing the sleep inhibition.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAt,
	}
	return cmd
}

func runAt(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	mgr := cliCtx.Manager

	text, err := timeArg(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Config stays live while we wait: payload, delay and session command
	// edits apply at trigger time.
	if err := mgr.Watch(ctx); err != nil {
		logger.Get().Warn().Err(err).Msg("config watching unavailable")
	}

	tm := tmux.New()
	events := make(chan schedule.Event, 16)

	sched := schedule.New(
		power.New(logger.With("power")),
		launcher.New(
			tm,
			launcher.NewTerminalOpener(mgr.Get().Terminal.App),
			func() launcher.Settings {
				c := mgr.Get()
				return launcher.Settings{
					Name:    c.Session.Name,
					Command: c.Session.Command,
					WorkDir: c.Session.WorkDir,
				}
			},
			logger.With("launcher"),
		),
		inject.New(tm, logger.With("inject")),
		func() (string, time.Duration) {
			c := mgr.Get()
			return c.Inject.Payload, c.Inject.Delay
		},
		logger.With("scheduler"),
		schedule.Options{Notify: func(e schedule.Event) { events <- e }},
	)

	target, err := sched.Schedule(text)
	if err != nil {
		return err
	}
	fmt.Printf("Scheduled for %s (in %s)\n",
		target.Format("Mon 15:04"),
		time.Until(target).Round(time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			sched.Cancel()
			fmt.Println("Cancelled")
			return nil
		case e := <-events:
			switch e.Type {
			case schedule.EventTriggered:
				fmt.Println("Launching session...")
			case schedule.EventCompleted:
				if e.Err != nil {
					// Best-effort automation: the schedule ran, the side
					// effect degraded. Report and exit cleanly.
					fmt.Printf("Done with errors: %v\n", e.Err)
				} else {
					fmt.Printf("Done: session %s is running\n", e.SessionID)
				}
				return nil
			}
		}
	}
}

// timeArg returns the schedule time from args, or prompts for it when
// attached to a terminal. The suggested default is one minute past the next
// full hour.
func timeArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("time argument required (HH:MM, 24-hour)")
	}

	suggestion := schedule.SuggestTime(time.Now())
	fmt.Printf("Time (HH:MM, 24-hour) [%s]: ", suggestion)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read time: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return suggestion, nil
	}
	return line, nil
}
