package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPort is the port hftp listens on when nothing else is configured
const DefaultPort = 7888

// Config holds all configuration for the file server.
// It is created once at startup and treated as read-only afterwards.
type Config struct {
	// Server settings
	Port         int
	Host         string
	RootDir      string
	PollInterval time.Duration

	// Operator interaction
	Batch bool
	Debug bool

	// Shutdown
	GracePeriod time.Duration

	// Port conflict handling
	FallbackRange int

	// Launcher actions
	ShowQR          bool
	GenerateService bool

	EnvFile string
}

// Load reads configuration from the .env file, the environment and the
// command line, in increasing order of precedence.
func Load(args []string) (*Config, error) {
	envFile := getEnvFile()

	// Load .env file if it exists
	_ = godotenv.Load(envFile)

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg := &Config{
		Port:          getEnvInt("HFTP_PORT", DefaultPort),
		Host:          getEnv("HFTP_HOST", "0.0.0.0"),
		RootDir:       getEnv("HFTP_ROOT", wd),
		PollInterval:  100 * time.Millisecond,
		Batch:         getEnvBool("HFTP_BATCH", false),
		Debug:         getEnvBool("HFTP_DEBUG", false),
		GracePeriod:   getEnvDuration("HFTP_GRACE_PERIOD", time.Second),
		FallbackRange: 10,
		EnvFile:       envFile,
	}

	fs := flag.NewFlagSet("hftp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port (shorthand)")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Address to bind")
	fs.StringVar(&cfg.RootDir, "root", cfg.RootDir, "Directory to serve")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	fs.BoolVar(&cfg.Debug, "d", cfg.Debug, "Enable debug logging (shorthand)")
	fs.BoolVar(&cfg.Batch, "batch", cfg.Batch, "Auto-confirm all prompts")
	fs.BoolVar(&cfg.Batch, "b", cfg.Batch, "Auto-confirm all prompts (shorthand)")
	fs.DurationVar(&cfg.GracePeriod, "grace", cfg.GracePeriod, "Grace period before forced exit on shutdown")
	fs.BoolVar(&cfg.ShowQR, "qr", false, "Print a QR code of the server URL")
	fs.BoolVar(&cfg.GenerateService, "generate-service", false, "Write hftp.service to the working directory and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive, got %s", c.GracePeriod)
	}

	root, err := filepath.Abs(c.RootDir)
	if err != nil {
		return fmt.Errorf("invalid root directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", root)
	}
	c.RootDir = root

	return nil
}

// LoadWithDefaults loads config with defaults for testing
func LoadWithDefaults() *Config {
	return &Config{
		Port:          DefaultPort,
		Host:          "127.0.0.1",
		RootDir:       os.TempDir(),
		PollInterval:  100 * time.Millisecond,
		Batch:         true,
		GracePeriod:   time.Second,
		FallbackRange: 10,
	}
}

// WithPort returns a copy of the config bound to a different port
func (c *Config) WithPort(port int) *Config {
	cp := *c
	cp.Port = port
	return &cp
}

// Addr returns the server address string
func (c *Config) Addr() string {
	return c.AddrFor(c.Port)
}

// AddrFor returns the address string for the configured host and port
func (c *Config) AddrFor(port int) string {
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// getEnvFile returns the path to the .env file
func getEnvFile() string {
	if envFile := os.Getenv("HFTP_ENV_FILE"); envFile != "" {
		return envFile
	}
	return ".env"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
