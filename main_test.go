package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ngenohkevin/hftp/config"
	"github.com/ngenohkevin/hftp/internal/system"
)

func TestRun_Help(t *testing.T) {
	assert.Equal(t, 0, run([]string{"-h"}))
}

func TestRun_InvalidArguments(t *testing.T) {
	assert.Equal(t, 1, run([]string{"-port", "70000"}))
	assert.Equal(t, 1, run([]string{"-unknown"}))
}

func TestAccessURLs_SpecificHost(t *testing.T) {
	cfg := config.LoadWithDefaults().WithPort(9000)
	assert.Equal(t, []string{"http://127.0.0.1:9000"}, accessURLs(context.Background(), cfg))
}

func TestAccessURLs_AllInterfaces(t *testing.T) {
	cfg := config.LoadWithDefaults().WithPort(9000)
	cfg.Host = "0.0.0.0"

	urls := accessURLs(context.Background(), cfg)
	assert.NotEmpty(t, urls)
	assert.Equal(t, "http://localhost:9000", urls[len(urls)-1])
}

func TestDescribeHost(t *testing.T) {
	assert.Equal(t, "box (ubuntu 24.04, up 2h 3m)", describeHost(&system.HostInfo{
		Hostname:    "box",
		Platform:    "ubuntu 24.04",
		Uptime:      7380,
		UptimeHuman: "2h 3m",
	}))
	assert.Equal(t, "box (ubuntu 24.04)", describeHost(&system.HostInfo{Hostname: "box", Platform: "ubuntu 24.04"}))
	assert.Equal(t, "box", describeHost(&system.HostInfo{Hostname: "box"}))
}

func TestHostLine(t *testing.T) {
	assert.NotEmpty(t, hostLine(context.Background()))
}

func TestDivider(t *testing.T) {
	assert.Len(t, divider(""), bannerWidth)
	assert.True(t, strings.Contains(divider("Server Information"), " Server Information "))
}

func TestPrintBanner(t *testing.T) {
	cfg := config.LoadWithDefaults().WithPort(9000)
	cfg.ShowQR = true

	var buf bytes.Buffer
	printBanner(&buf, cfg, t.TempDir())

	out := buf.String()
	assert.Contains(t, out, "Server started at port: 9000")
	assert.Contains(t, out, "http://127.0.0.1:9000")
	assert.Contains(t, out, "Press Ctrl+C to stop server")
	assert.Contains(t, out, "Scan to open")
}
