package system

import (
	"context"
	"fmt"
	"net"
	"slices"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// LocalIPv4 returns the IPv4 addresses of all interfaces that are up,
// excluding loopback, in interface order without duplicates.
func LocalIPv4(ctx context.Context) ([]string, error) {
	interfaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var ips []string
	for _, iface := range interfaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := parseIPv4(addr.Addr)
			if ip == "" || slices.Contains(ips, ip) {
				continue
			}
			ips = append(ips, ip)
		}
	}
	return ips, nil
}

// parseIPv4 accepts "a.b.c.d/nn" or a bare address
func parseIPv4(addr string) string {
	ip, _, err := net.ParseCIDR(addr)
	if err != nil {
		ip = net.ParseIP(addr)
	}
	if ip == nil || ip.IsLoopback() {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ""
}
