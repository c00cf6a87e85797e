package server

import (
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// pollingListener wakes its Accept at least once per interval to check the
// running flag, so a cleared flag stops the accept loop without waiting for
// the next client.
type pollingListener struct {
	ln       *net.TCPListener
	running  *atomic.Bool
	interval time.Duration

	closeOnce sync.Once
	closeErr  error
}

func newPollingListener(ln *net.TCPListener, running *atomic.Bool, interval time.Duration) *pollingListener {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &pollingListener{
		ln:       ln,
		running:  running,
		interval: interval,
	}
}

// Accept returns net.ErrClosed once the running flag is cleared
func (l *pollingListener) Accept() (net.Conn, error) {
	for {
		if !l.running.Load() {
			return nil, net.ErrClosed
		}

		if err := l.ln.SetDeadline(time.Now().Add(l.interval)); err != nil {
			return nil, err
		}

		conn, err := l.ln.Accept()
		if err == nil {
			return conn, nil
		}
		if isTimeout(err) {
			continue
		}
		return nil, err
	}
}

// Close releases the socket once; later calls return the first result
func (l *pollingListener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}

func (l *pollingListener) Addr() net.Addr {
	return l.ln.Addr()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
