// Package power acquires system sleep inhibition leases for the window
// between scheduling and trigger time.
package power

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"syscall"

	"github.com/coreos/go-systemd/v22/login1"
	"github.com/rs/zerolog"
)

// Lease is an outstanding sleep inhibition. Release is idempotent: releasing
// twice, or a lease that already lapsed, is a no-op.
type Lease interface {
	Release() error
}

// Inhibitor acquires sleep inhibition leases.
type Inhibitor interface {
	Acquire(ctx context.Context) (Lease, error)
}

// New returns the inhibitor for the current platform. Platforms without a
// known mechanism get a no-op inhibitor; scheduling still works, the machine
// just isn't kept awake.
func New(log zerolog.Logger) Inhibitor {
	switch runtime.GOOS {
	case "darwin":
		return &caffeinateInhibitor{
			cmdBuilder: exec.CommandContext,
			log:        log,
		}
	case "linux":
		return &logindInhibitor{log: log}
	default:
		log.Warn().Str("os", runtime.GOOS).Msg("no sleep inhibition mechanism, using no-op")
		return noopInhibitor{}
	}
}

// caffeinateInhibitor keeps a `caffeinate -i` child alive for the lease
// duration; terminating it ends the inhibition.
type caffeinateInhibitor struct {
	cmdBuilder func(ctx context.Context, name string, args ...string) *exec.Cmd
	log        zerolog.Logger
}

func (i *caffeinateInhibitor) Acquire(ctx context.Context) (Lease, error) {
	cmd := i.cmdBuilder(ctx, "caffeinate", "-i")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("power: start caffeinate: %w", err)
	}
	i.log.Debug().Int("pid", cmd.Process.Pid).Msg("caffeinate started")
	return &processLease{cmd: cmd, log: i.log}, nil
}

type processLease struct {
	cmd  *exec.Cmd
	log  zerolog.Logger
	once sync.Once
}

func (l *processLease) Release() error {
	var err error
	l.once.Do(func() {
		if l.cmd.Process == nil {
			return
		}
		err = l.cmd.Process.Signal(syscall.SIGTERM)
		// Reap the child regardless of signal outcome.
		go func() { _ = l.cmd.Wait() }()
		l.log.Debug().Int("pid", l.cmd.Process.Pid).Msg("caffeinate released")
	})
	return err
}

// logindInhibitor takes a systemd-logind block inhibitor. The lease is a
// file descriptor; closing it ends the inhibition, even across screen lock.
type logindInhibitor struct {
	log zerolog.Logger
}

func (i *logindInhibitor) Acquire(ctx context.Context) (Lease, error) {
	conn, err := login1.New()
	if err != nil {
		return nil, fmt.Errorf("power: connect logind: %w", err)
	}
	fd, err := conn.Inhibit("sleep:idle", "chime", "scheduled session pending", "block")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("power: logind inhibit: %w", err)
	}
	i.log.Debug().Msg("logind sleep inhibitor taken")
	return &fdLease{release: func() error {
		defer conn.Close()
		return fd.Close()
	}}, nil
}

type fdLease struct {
	release func() error
	once    sync.Once
}

func (l *fdLease) Release() error {
	var err error
	l.once.Do(func() { err = l.release() })
	return err
}

type noopInhibitor struct{}

func (noopInhibitor) Acquire(ctx context.Context) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Release() error { return nil }
