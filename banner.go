package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mdp/qrterminal/v3"

	"github.com/ngenohkevin/hftp/config"
	"github.com/ngenohkevin/hftp/internal/files"
	"github.com/ngenohkevin/hftp/internal/log"
	"github.com/ngenohkevin/hftp/internal/system"
)

const bannerWidth = 60

// Half-block glyphs for a compact QR code
const (
	qrBlackBlack = " "
	qrWhiteBlack = "▀"
	qrWhiteWhite = "█"
	qrBlackWhite = "▄"
)

// accessURLs lists one URL per non-loopback IPv4 address, then localhost
func accessURLs(ctx context.Context, cfg *config.Config) []string {
	var urls []string
	switch cfg.Host {
	case "", "0.0.0.0", "::":
		ips, err := system.LocalIPv4(ctx)
		if err != nil {
			log.Debug("Failed to list interfaces: %v", err)
		}
		for _, ip := range ips {
			urls = append(urls, fmt.Sprintf("http://%s:%d", ip, cfg.Port))
		}
		urls = append(urls, fmt.Sprintf("http://localhost:%d", cfg.Port))
	default:
		urls = append(urls, fmt.Sprintf("http://%s", cfg.Addr()))
	}
	return urls
}

// hostLine names the machine with its platform and uptime when known
func hostLine(ctx context.Context) string {
	info, err := system.GetHostInfo(ctx)
	if err != nil || info.Hostname == "" {
		log.Debug("Host info unavailable: %v", err)
		return system.Hostname(ctx)
	}
	return describeHost(info)
}

func describeHost(info *system.HostInfo) string {
	var details []string
	if info.Platform != "" {
		details = append(details, info.Platform)
	}
	if info.Uptime > 0 {
		details = append(details, "up "+info.UptimeHuman)
	}
	if len(details) == 0 {
		return info.Hostname
	}
	return fmt.Sprintf("%s (%s)", info.Hostname, strings.Join(details, ", "))
}

func divider(title string) string {
	if title == "" {
		return strings.Repeat("=", bannerWidth)
	}
	side := (bannerWidth - len(title) - 2) / 2
	if side < 1 {
		side = 1
	}
	return fmt.Sprintf("%s %s %s", strings.Repeat("=", side), title, strings.Repeat("=", side))
}

func printBanner(w io.Writer, cfg *config.Config, root string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	urls := accessURLs(ctx, cfg)

	fmt.Fprintln(w, divider("Server Information"))
	fmt.Fprintf(w, "Server started at port: %d\n", cfg.Port)
	fmt.Fprintf(w, "Serving: %s\n", root)
	fmt.Fprintf(w, "Host: %s\n", hostLine(ctx))
	if usage, err := system.GetDiskUsage(ctx, root); err == nil {
		fmt.Fprintf(w, "Disk: %s free of %s (%.1f%% used)\n",
			files.FormatSize(int64(usage.Free)), files.FormatSize(int64(usage.Total)), usage.UsedPercent)
	}
	if len(urls) == 1 && strings.Contains(urls[0], "localhost") {
		fmt.Fprintln(w, "No network interfaces found. Try:")
	} else {
		fmt.Fprintln(w, "Available URLs:")
	}
	for _, u := range urls {
		fmt.Fprintf(w, "  %s\n", u)
	}
	fmt.Fprintln(w, divider(""))

	if cfg.ShowQR {
		fmt.Fprintf(w, "Scan to open %s\n", urls[0])
		qrterminal.GenerateWithConfig(urls[0], qrterminal.Config{
			Level:          qrterminal.M,
			Writer:         w,
			HalfBlocks:     true,
			BlackChar:      qrBlackBlack,
			WhiteBlackChar: qrWhiteBlack,
			WhiteChar:      qrWhiteWhite,
			BlackWhiteChar: qrBlackWhite,
			QuietZone:      1,
		})
	}

	fmt.Fprintln(w, "Press Ctrl+C to stop server")
	fmt.Fprintln(w)
}
