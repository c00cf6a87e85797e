package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync/atomic"

	_ "go.uber.org/automaxprocs"

	"github.com/ngenohkevin/hftp/config"
	"github.com/ngenohkevin/hftp/internal/log"
	"github.com/ngenohkevin/hftp/internal/port"
	"github.com/ngenohkevin/hftp/internal/server"
	"github.com/ngenohkevin/hftp/internal/shutdown"
	"github.com/ngenohkevin/hftp/internal/systemd"
)

const usage = `Usage: hftp [options]

Serve a directory over HTTP with listings, previews, uploads and deletes.

Options:
  -p, -port N          Port to listen on (default 7888, HFTP_PORT)
  -host ADDR           Address to bind (default 0.0.0.0, HFTP_HOST)
  -root DIR            Directory to serve (default working directory, HFTP_ROOT)
  -d, -debug           Enable debug logging
  -b, -batch           Auto-confirm all prompts
  -grace DURATION      Grace period before forced exit on shutdown (default 1s)
  -qr                  Print a QR code of the server URL
  -generate-service    Write hftp.service to the working directory and exit
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load configuration
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Print(usage)
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s", err, usage)
		return 1
	}
	defer log.Sync()

	log.SetDebug(cfg.Debug)
	if cfg.Debug {
		log.Debug("Debug mode enabled")
	}
	if cfg.Batch {
		log.Info("Batch mode enabled, all prompts will be auto-confirmed")
	}

	if cfg.GenerateService {
		return generateService(cfg)
	}

	// Claim a port before anything binds
	var prompter port.Prompter = port.NewLinePrompter(os.Stdin, os.Stdout)
	if cfg.Batch {
		prompter = port.BatchPrompter{Out: os.Stdout}
	}
	resolver := port.NewResolver(prompter, os.Stdout, cfg.FallbackRange)
	chosen, err := resolver.Resolve(context.Background(), cfg.Port)
	if err != nil {
		log.Error("Server startup failed: %v", err)
		return 1
	}
	cfg = cfg.WithPort(chosen)

	running := &atomic.Bool{}
	running.Store(true)

	srv, err := server.New(cfg, running)
	if err != nil {
		log.Error("Failed to create server: %v", err)
		return 1
	}
	if err := srv.Start(); err != nil {
		log.Error("Server startup failed: %v", err)
		return 1
	}

	printBanner(os.Stdout, cfg, srv.Root().Dir())
	systemd.NotifyStatus(fmt.Sprintf("Serving %s on :%d", srv.Root().Dir(), srv.Port()))
	systemd.NotifyReady()

	coord := shutdown.New(running, srv, cfg.GracePeriod, shutdown.WithOnTrigger(func() {
		systemd.NotifyStatus("Shutting down")
		systemd.NotifyStopping()
	}))
	coord.Watch()
	defer coord.Close()

	if err := srv.Wait(); err != nil && !coord.Triggered() {
		log.Error("Server error: %v", err)
		coord.Trigger("accept loop failed")
		<-coord.Done()
		coord.Exit(1)
		return 1
	}

	// The accept loop also ends when the flag is cleared outside the coordinator
	coord.Trigger("accept loop stopped")
	<-coord.Done()
	fmt.Fprintln(os.Stdout, "Server fully stopped")
	coord.Exit(0)
	return 0
}

func generateService(cfg *config.Config) int {
	params, err := systemd.DefaultUnitParams(cfg.Port)
	if err != nil {
		log.Error("Failed to build service unit: %v", err)
		return 1
	}

	path, err := systemd.WriteUnit(params.WorkDir, params)
	if err != nil {
		log.Error("Failed to write service unit: %v", err)
		return 1
	}

	systemd.PrintInstructions(os.Stdout, path)
	return 0
}
