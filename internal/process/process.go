package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/ngenohkevin/hftp/internal/log"
)

// pollInterval is how often Terminate re-checks a signalled process
const pollInterval = 50 * time.Millisecond

// Get returns information about a specific process. Only the name is
// required; the other fields are filled in when the OS allows it.
func Get(ctx context.Context, pid int32) (*ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("process not found: %w", err)
	}

	name, err := p.NameWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read process name: %w", err)
	}

	username, _ := p.UsernameWithContext(ctx)
	cmdline, _ := p.CmdlineWithContext(ctx)

	return &ProcessInfo{
		PID:      pid,
		Name:     name,
		Username: username,
		Cmdline:  cmdline,
	}, nil
}

// Terminate sends SIGTERM to pid and waits up to wait for it to exit,
// escalating to SIGKILL if it is still alive. It reports whether the
// process is gone afterwards and never returns an error.
func Terminate(ctx context.Context, pid int32, wait time.Duration) bool {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		// Already gone
		return true
	}

	if err := p.SendSignalWithContext(ctx, syscall.SIGTERM); err != nil {
		if gone(err) {
			return true
		}
		log.Debug("SIGTERM to PID %d failed: %v", pid, err)
		if errors.Is(err, syscall.EPERM) {
			return false
		}
	}

	if waitGone(ctx, p, wait) {
		return true
	}

	log.Debug("PID %d still alive after %s, sending SIGKILL", pid, wait)
	if err := p.KillWithContext(ctx); err != nil && !gone(err) {
		log.Warn("Failed to kill PID %d: %v", pid, err)
		return false
	}

	return waitGone(ctx, p, wait)
}

// waitGone polls until p has exited or wait elapses
func waitGone(ctx context.Context, p *process.Process, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if !alive(ctx, p) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return !alive(context.Background(), p)
		case <-time.After(pollInterval):
		}
	}
}

func gone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
}

// alive treats zombies as exited; they no longer hold sockets
func alive(ctx context.Context, p *process.Process) bool {
	running, err := p.IsRunningWithContext(ctx)
	if err != nil || !running {
		return false
	}
	status, err := p.StatusWithContext(ctx)
	if err != nil {
		return true
	}
	return !slices.Contains(status, process.Zombie)
}
