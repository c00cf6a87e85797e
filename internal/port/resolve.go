package port

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ngenohkevin/hftp/internal/log"
	"github.com/ngenohkevin/hftp/internal/process"
)

var (
	// ErrStartupAborted is returned when the operator declines every remedy
	ErrStartupAborted = errors.New("server startup cancelled")
	// ErrNoFreePort is returned when no alternate port is available
	ErrNoFreePort = errors.New("no free port available")
)

const (
	// DefaultFallbackRange is how many ports after the configured one are tried
	DefaultFallbackRange = 10
	// DefaultReleaseWait is the first delay before re-checking a freed port
	DefaultReleaseWait = time.Second
	// DefaultTerminateWait is how long a SIGTERM is given before SIGKILL
	DefaultTerminateWait = time.Second
)

// Prompter asks the operator a yes/no question
type Prompter interface {
	Confirm(question string) bool
}

// LinePrompter reads answers line by line from an input stream
type LinePrompter struct {
	out    io.Writer
	reader *bufio.Reader
}

// NewLinePrompter creates a prompter reading from in and writing to out
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{out: out, reader: bufio.NewReader(in)}
}

// Confirm accepts "y" or "yes" in any case; anything else, including EOF, is no
func (p *LinePrompter) Confirm(question string) bool {
	fmt.Fprintf(p.out, "%s (y/n): ", question)
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// BatchPrompter auto-confirms every question
type BatchPrompter struct {
	Out io.Writer
}

func (p BatchPrompter) Confirm(question string) bool {
	if p.Out != nil {
		fmt.Fprintf(p.Out, "%s (y/n): y [batch mode]\n", question)
	}
	return true
}

// Resolver claims a port before the server starts. All dependencies are
// fields so tests can swap them out.
type Resolver struct {
	Prompter      Prompter
	Finder        Finder
	Terminate     func(ctx context.Context, pid int32) bool
	IsFree        func(port int) bool
	FallbackRange int
	ReleaseWait   time.Duration
	Out           io.Writer
}

// NewResolver creates a resolver using the OS lookups
func NewResolver(prompter Prompter, out io.Writer, fallbackRange int) *Resolver {
	if fallbackRange <= 0 {
		fallbackRange = DefaultFallbackRange
	}
	return &Resolver{
		Prompter: prompter,
		Finder:   DefaultFinder(),
		Terminate: func(ctx context.Context, pid int32) bool {
			return process.Terminate(ctx, pid, DefaultTerminateWait)
		},
		IsFree:        IsFree,
		FallbackRange: fallbackRange,
		ReleaseWait:   DefaultReleaseWait,
		Out:           out,
	}
}

// Resolve returns the port the server should bind. If port is taken it
// offers to terminate the occupant, then offers the next free port. It
// returns ErrStartupAborted if the operator declines the alternate port.
func (r *Resolver) Resolve(ctx context.Context, port int) (int, error) {
	if r.isFree(port) {
		return port, nil
	}

	r.printf("Error: Port %d is already in use!\n", port)

	if info := FindOccupyingProcess(ctx, r.Finder, port); info != nil {
		r.printf("Occupying process: %s\n", info)
		if r.Prompter.Confirm("Force close the process occupying this port?") {
			if r.kill(ctx, info, port) {
				return port, nil
			}
		} else {
			r.printf("Leaving process %d running\n", info.PID)
		}
	} else {
		r.printf("Unable to determine process occupying the port\n")
	}

	alt, ok := NextFree(port, r.FallbackRange, r.isFree)
	if !ok {
		return 0, fmt.Errorf("%w in %d..%d", ErrNoFreePort, port+1, port+r.FallbackRange)
	}

	r.printf("Suggest using port %d instead\n", alt)
	if !r.Prompter.Confirm("Would you like to use the suggested port?") {
		return 0, ErrStartupAborted
	}

	log.Info("Using alternate port %d", alt)
	return alt, nil
}

// kill terminates the occupant and reports whether port became free
func (r *Resolver) kill(ctx context.Context, info *process.ProcessInfo, port int) bool {
	r.printf("Attempting to close process...\n")
	if !r.Terminate(ctx, info.PID) {
		r.printf("Unable to close process %d, may lack permissions\n", info.PID)
		return false
	}
	r.printf("Process %d successfully closed\n", info.PID)

	for i, wait := range []time.Duration{r.ReleaseWait, 2 * r.ReleaseWait} {
		if !sleep(ctx, wait) {
			return false
		}
		if r.isFree(port) {
			r.printf("Port %d is now available\n", port)
			return true
		}
		if i == 0 {
			r.printf("Port still occupied, may need more time to release\n")
		}
	}

	r.printf("Port release failed, will suggest using alternative port\n")
	return false
}

func (r *Resolver) isFree(port int) bool {
	if r.IsFree == nil {
		return IsFree(port)
	}
	return r.IsFree(port)
}

func (r *Resolver) printf(format string, args ...any) {
	if r.Out != nil {
		fmt.Fprintf(r.Out, format, args...)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
