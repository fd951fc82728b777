package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
	DebugBind  string `toml:"debug_bind"`
}

// Store contains configuration for the shared run-state store.
type Store struct {
	// Path of the SQLite database file. Empty means <log_dir>/state.db.
	Path string `toml:"path"`
	// SnapshotTTLHours bounds how long an FSM snapshot survives without
	// being rewritten. TTL is the only expiry mechanism for run state.
	SnapshotTTLHours int `toml:"snapshot_ttl_hours"`
	// SweepSchedule is a cron expression for the expired-key sweep.
	SweepSchedule string `toml:"sweep_schedule"`
}

// Orchestrator contains retry budgets and pacing for the run pipeline.
type Orchestrator struct {
	MaxPlanRetries   int `toml:"max_plan_retries"`
	MaxQARetries     int `toml:"max_qa_retries"`
	RetryDelaySecs   int `toml:"retry_delay_seconds"`
	WorkerCount      int `toml:"worker_count"`
	ProgressCapacity int `toml:"progress_capacity"`
}

// Providers contains connection settings for the generation vendors.
// Empty keys select the offline providers, which synthesize
// deterministic placeholder assets.
type Providers struct {
	ScriptAPIKey  string `toml:"script_api_key"`
	ScriptBaseURL string `toml:"script_base_url"`
	ScriptModel   string `toml:"script_model"`
	ImageAPIKey   string `toml:"image_api_key"`
	SpeechAPIKey  string `toml:"speech_api_key"`
	MusicAPIKey   string `toml:"music_api_key"`
	VoiceID       string `toml:"voice_id"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains push notification settings. An empty topic
// disables notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeoutSecs int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for reelflow.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Orchestrator  Orchestrator  `toml:"orchestrator"`
	Providers     Providers     `toml:"providers"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
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

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
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
	projectPath, err := filepath.Abs("reelflow.toml")
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

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RunDir returns the artifact directory for a run.
func (c *Config) RunDir(runID string) string {
	return filepath.Join(c.Paths.OutputDir, runID)
}

// StorePath returns the resolved SQLite database path.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.Paths.LogDir, "state.db")
}

// SnapshotTTL returns the configured snapshot retention as a duration.
// Zero means snapshots never expire.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.Store.SnapshotTTLHours) * time.Hour
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path must not be empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
