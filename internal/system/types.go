package system

// HostInfo identifies the machine in the startup banner
type HostInfo struct {
	Hostname    string
	Platform    string
	Uptime      uint64
	UptimeHuman string
}

// DiskUsage describes the filesystem holding the served directory
type DiskUsage struct {
	Path        string
	Total       uint64
	Used        uint64
	Free        uint64
	UsedPercent float64
}
