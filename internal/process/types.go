package process

import "fmt"

// ProcessInfo identifies a process found holding a resource hftp needs
type ProcessInfo struct {
	PID      int32
	Name     string
	Username string
	Cmdline  string
}

// String describes the process for the port conflict prompt, e.g.
// "PID 42 - nginx (user www-data): nginx -g daemon off;"
func (p ProcessInfo) String() string {
	s := fmt.Sprintf("PID %d", p.PID)
	if p.Name != "" {
		s += " - " + p.Name
	}
	if p.Username != "" {
		s += fmt.Sprintf(" (user %s)", p.Username)
	}
	if p.Cmdline != "" && p.Cmdline != p.Name {
		s += ": " + p.Cmdline
	}
	return s
}
