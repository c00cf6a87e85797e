// Package port decides which TCP port the server binds, resolving
// conflicts with processes that already hold the configured one.
package port

import (
	"fmt"
	"net"
)

// MaxPort is the highest valid TCP port
const MaxPort = 65535

// IsFree reports whether port can be bound on all interfaces. The test
// listener is closed again before returning.
func IsFree(port int) bool {
	if port < 1 || port > MaxPort {
		return false
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// NextFree returns the first port in port+1..port+count for which isFree
// reports true.
func NextFree(port, count int, isFree func(int) bool) (int, bool) {
	if isFree == nil {
		isFree = IsFree
	}
	for candidate := port + 1; candidate <= port+count && candidate <= MaxPort; candidate++ {
		if isFree(candidate) {
			return candidate, true
		}
	}
	return 0, false
}
