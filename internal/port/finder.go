package port

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/ngenohkevin/hftp/internal/log"
	"github.com/ngenohkevin/hftp/internal/process"
)

// Finder looks up the process listening on a TCP port. A nil result with a
// nil error means nothing was found.
type Finder interface {
	Find(ctx context.Context, port int) (*process.ProcessInfo, error)
}

// FinderFunc adapts a function to the Finder interface
type FinderFunc func(ctx context.Context, port int) (*process.ProcessInfo, error)

func (f FinderFunc) Find(ctx context.Context, port int) (*process.ProcessInfo, error) {
	return f(ctx, port)
}

// PsutilFinder reads the kernel socket table through gopsutil
type PsutilFinder struct{}

func (PsutilFinder) Find(ctx context.Context, port int) (*process.ProcessInfo, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to read socket table: %w", err)
	}

	for _, conn := range conns {
		if conn.Status != "LISTEN" || int(conn.Laddr.Port) != port {
			continue
		}
		// Sockets owned by other users report PID 0 without privileges
		if conn.Pid == 0 {
			continue
		}
		info, err := process.Get(ctx, conn.Pid)
		if err != nil {
			return &process.ProcessInfo{PID: conn.Pid}, nil
		}
		return info, nil
	}
	return nil, nil
}

// LsofFinder shells out to lsof, which sees more sockets when it runs setuid
type LsofFinder struct{}

func (LsofFinder) Find(ctx context.Context, port int) (*process.ProcessInfo, error) {
	path, err := exec.LookPath("lsof")
	if err != nil {
		return nil, fmt.Errorf("lsof not available: %w", err)
	}

	out, err := exec.CommandContext(ctx, path, "-t", "-i", fmt.Sprintf("tcp:%d", port), "-sTCP:LISTEN").Output()
	if err != nil {
		// lsof exits 1 when nothing matches
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(bytes.TrimSpace(out)) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("lsof failed: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		pid, err := strconv.ParseInt(strings.TrimSpace(scanner.Text()), 10, 32)
		if err != nil || pid <= 0 {
			continue
		}
		info, err := process.Get(ctx, int32(pid))
		if err != nil {
			return &process.ProcessInfo{PID: int32(pid)}, nil
		}
		return info, nil
	}
	return nil, nil
}

// Chain tries each finder in order and returns the first hit
type Chain []Finder

func (c Chain) Find(ctx context.Context, port int) (*process.ProcessInfo, error) {
	var errs []error
	for _, f := range c {
		info, err := f.Find(ctx, port)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info != nil {
			return info, nil
		}
	}
	return nil, errors.Join(errs...)
}

// DefaultFinder returns the lookup chain used at startup
func DefaultFinder() Finder {
	return Chain{PsutilFinder{}, LsofFinder{}}
}

// FindOccupyingProcess returns the process listening on port, or nil if it
// cannot be determined. Lookup failures are logged, never returned.
func FindOccupyingProcess(ctx context.Context, f Finder, port int) *process.ProcessInfo {
	if f == nil {
		f = DefaultFinder()
	}
	info, err := f.Find(ctx, port)
	if err != nil {
		log.Debug("Process lookup for port %d: %v", port, err)
	}
	return info
}
