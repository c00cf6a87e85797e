// Package systemd generates the hftp service unit and reports service
// state to systemd.
package systemd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/unit"
)

// DefaultUnitParams fills params from the running executable, the working
// directory and the current user.
func DefaultUnitParams(port int) (UnitParams, error) {
	exe, err := os.Executable()
	if err != nil {
		return UnitParams{}, fmt.Errorf("failed to locate executable: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return UnitParams{}, fmt.Errorf("failed to get working directory: %w", err)
	}

	user := os.Getenv("USER")
	if user == "" {
		user = "root"
	}

	return UnitParams{
		ExecPath: exe,
		WorkDir:  wd,
		User:     user,
		Port:     port,
	}, nil
}

// UnitOptions returns the unit file contents as go-systemd options
func UnitOptions(p UnitParams) []*unit.UnitOption {
	execStart := fmt.Sprintf("%s --port %d --batch", p.ExecPath, p.Port)

	return []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", "HTTP File Transfer Protocol Server"),
		unit.NewUnitOption("Unit", "After", "network.target"),
		unit.NewUnitOption("Unit", "StartLimitIntervalSec", "300"),
		unit.NewUnitOption("Unit", "StartLimitBurst", "5"),

		unit.NewUnitOption("Service", "Type", "notify"),
		unit.NewUnitOption("Service", "User", p.User),
		unit.NewUnitOption("Service", "WorkingDirectory", p.WorkDir),
		unit.NewUnitOption("Service", "ExecStart", execStart),
		unit.NewUnitOption("Service", "Restart", "on-failure"),
		unit.NewUnitOption("Service", "RestartSec", "5s"),
		unit.NewUnitOption("Service", "StandardOutput", "journal"),
		unit.NewUnitOption("Service", "StandardError", "journal"),
		unit.NewUnitOption("Service", "TimeoutStartSec", "30s"),
		unit.NewUnitOption("Service", "TimeoutStopSec", "10s"),

		unit.NewUnitOption("Install", "WantedBy", "multi-user.target"),
	}
}

// Unit renders the service unit file
func Unit(p UnitParams) (string, error) {
	data, err := io.ReadAll(unit.Serialize(UnitOptions(p)))
	if err != nil {
		return "", fmt.Errorf("failed to serialize unit: %w", err)
	}
	return string(data), nil
}

// WriteUnit writes the unit file into dir and returns its path
func WriteUnit(dir string, p UnitParams) (string, error) {
	content, err := Unit(p)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, UnitFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write unit file: %w", err)
	}
	return path, nil
}

// PrintInstructions writes the installation and management steps for a
// generated unit file.
func PrintInstructions(w io.Writer, path string) {
	fmt.Fprintln(w, "Systemd service file generated successfully!")
	fmt.Fprintf(w, "Output path: %s\n\n", path)
	fmt.Fprintln(w, "Installation steps:")
	fmt.Fprintf(w, "  1. sudo ln -sf %s /etc/systemd/system/\n", path)
	fmt.Fprintln(w, "  2. sudo systemctl daemon-reload")
	fmt.Fprintf(w, "  3. sudo systemctl enable %s\n", UnitFileName)
	fmt.Fprintf(w, "  4. sudo systemctl start %s\n\n", UnitFileName)
	fmt.Fprintln(w, "Service management:")
	fmt.Fprintf(w, "  - Status: sudo systemctl status %s\n", UnitFileName)
	fmt.Fprintf(w, "  - Logs:   sudo journalctl -u %s -f\n", UnitFileName)
}
