package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir" env:"DATA_DIR"`
	LogDir  string `toml:"log_dir"  env:"LOG_DIR"`
}

// Store selects and configures the queue persistence backend.
type Store struct {
	// Backend is "sqlite" (embedded, default) or "postgres" (shared database
	// for multi-host deployments).
	Backend     string `toml:"backend"      env:"BACKEND"`
	PostgresDSN string `toml:"postgres_dsn" env:"POSTGRES_DSN"`
}

// Scheduler contains scheduling cadence and policy settings.
type Scheduler struct {
	// PassInterval is the seconds between scheduling passes.
	PassInterval int `toml:"pass_interval" env:"PASS_INTERVAL"`
	// RequeueInterval is the seconds between retry/backoff passes.
	RequeueInterval int `toml:"requeue_interval" env:"REQUEUE_INTERVAL"`
	// Workers is the number of concurrent pass loops the daemon runs.
	Workers int `toml:"workers" env:"WORKERS"`
	// UrgentPriority is the threshold at or above which items bypass grouping.
	UrgentPriority int `toml:"urgent_priority" env:"URGENT_PRIORITY"`
	// DefaultMaxBatchSize applies to jurisdictions without a portal limit.
	DefaultMaxBatchSize int `toml:"default_max_batch_size" env:"DEFAULT_MAX_BATCH_SIZE"`
	// SubmittedBy identifies this scheduler on the jobs it creates.
	SubmittedBy string `toml:"submitted_by" env:"SUBMITTED_BY"`
}

// Retry contains the failure backoff policy.
type Retry struct {
	// BaseDelayMinutes is doubled per granted retry: 30, 60, 120, ...
	BaseDelayMinutes int `toml:"base_delay_minutes" env:"BASE_DELAY_MINUTES"`
	// MaxAttempts is the retry ceiling; items at the ceiling are cancelled.
	MaxAttempts int `toml:"max_attempts" env:"MAX_ATTEMPTS"`
}

// Portal carries per-jurisdiction submission portal limits.
type Portal struct {
	// Limits maps jurisdiction code to maximum batch size.
	Limits map[string]int `toml:"limits"`
}

// Monitor configures the read-only HTTP/WebSocket monitoring surface.
type Monitor struct {
	Bind  string `toml:"bind"  env:"BIND"`
	Token string `toml:"token" env:"TOKEN"`
	// PushInterval is the seconds between WebSocket statistics pushes.
	PushInterval int `toml:"push_interval" env:"PUSH_INTERVAL"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format" env:"FORMAT"`
	Level  string `toml:"level"  env:"LEVEL"`
}

// Config encapsulates all configuration values for docket.
//
// Sections by subsystem:
//   - Paths: data and log directories
//   - Store: persistence backend selection (sqlite/postgres)
//   - Scheduler: pass cadence, workers, urgency threshold, batch sizing
//   - Retry: failure backoff policy
//   - Portal: per-jurisdiction batch size limits
//   - Monitor: HTTP/WebSocket monitoring bind and auth
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"     envPrefix:"PATHS_"`
	Store     Store     `toml:"store"     envPrefix:"STORE_"`
	Scheduler Scheduler `toml:"scheduler" envPrefix:"SCHEDULER_"`
	Retry     Retry     `toml:"retry"     envPrefix:"RETRY_"`
	Portal    Portal    `toml:"portal"`
	Monitor   Monitor   `toml:"monitor"   envPrefix:"MONITOR_"`
	Logging   Logging   `toml:"logging"   envPrefix:"LOG_"`
}

// envPrefix is prepended to every environment override, e.g.
// DOCKET_STORE_BACKEND or DOCKET_LOG_LEVEL.
const envPrefix = "DOCKET_"

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/docket/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has environment overrides applied and all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, "", false, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// ResolvePath reports where configuration would be loaded from and whether
// a file exists there, without parsing anything.
func ResolvePath(path string) (string, bool, error) {
	return resolveConfigPath(path)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("docket.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories daemon operation requires.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database file location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "docket.db")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "docketd.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "docketd.lock")
}

// PIDPath returns the daemon PID file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "docketd.pid")
}

// LogFilePath returns the daemon log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "docketd.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a commented sample configuration file to the specified
// location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
