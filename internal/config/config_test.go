package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelflow/internal/config"
)

func TestDefaultValues(t *testing.T) {
	cfg := config.Default()

	if cfg.Store.SnapshotTTLHours != 24 {
		t.Errorf("snapshot ttl = %d", cfg.Store.SnapshotTTLHours)
	}
	if cfg.Store.SweepSchedule != "@every 15m" {
		t.Errorf("sweep schedule = %q", cfg.Store.SweepSchedule)
	}
	if cfg.Orchestrator.MaxPlanRetries != 2 || cfg.Orchestrator.MaxQARetries != 2 {
		t.Errorf("retry budgets = %d, %d", cfg.Orchestrator.MaxPlanRetries, cfg.Orchestrator.MaxQARetries)
	}
	if cfg.Orchestrator.WorkerCount != 4 {
		t.Errorf("worker count = %d", cfg.Orchestrator.WorkerCount)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Errorf("notifications enabled by default: %q", cfg.Notifications.NtfyTopic)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadParsesAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
output_dir = "` + filepath.Join(dir, "out") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[store]
snapshot_ttl_hours = 48
sweep_schedule = "@every 5m"

[orchestrator]
max_plan_retries = 5
retry_delay_seconds = 0

[logging]
format = "json"
level = "debug"

[notifications]
ntfy_topic = "https://ntfy.sh/reelflow-test"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q, exists = %v", resolved, exists)
	}
	if cfg.Store.SnapshotTTLHours != 48 {
		t.Errorf("snapshot ttl = %d", cfg.Store.SnapshotTTLHours)
	}
	if cfg.SnapshotTTL() != 48*time.Hour {
		t.Errorf("SnapshotTTL = %v", cfg.SnapshotTTL())
	}
	if cfg.Orchestrator.MaxPlanRetries != 5 {
		t.Errorf("max plan retries = %d", cfg.Orchestrator.MaxPlanRetries)
	}
	// Untouched sections keep their defaults.
	if cfg.Orchestrator.MaxQARetries != 2 {
		t.Errorf("max qa retries = %d", cfg.Orchestrator.MaxQARetries)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/reelflow-test" {
		t.Errorf("ntfy topic = %q", cfg.Notifications.NtfyTopic)
	}
	// An unset socket path lands next to the logs.
	if cfg.Paths.SocketPath != filepath.Join(dir, "logs", "reelflowd.sock") {
		t.Errorf("socket path = %q", cfg.Paths.SocketPath)
	}
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("missing file reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved = %q", resolved)
	}
	if cfg.Orchestrator.WorkerCount != 4 {
		t.Fatalf("defaults not applied: %+v", cfg.Orchestrator)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad log level",
			content: "[logging]\nlevel = \"verbose\"\n",
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			content: "[logging]\nformat = \"xml\"\n",
			wantErr: "logging.format",
		},
		{
			name:    "bad sweep schedule",
			content: "[store]\nsweep_schedule = \"whenever\"\n",
			wantErr: "store.sweep_schedule",
		},
		{
			name:    "zero ttl",
			content: "[store]\nsnapshot_ttl_hours = 0\n",
			wantErr: "snapshot_ttl_hours",
		},
		{
			name:    "negative retries",
			content: "[orchestrator]\nmax_plan_retries = -1\n",
			wantErr: "max_plan_retries",
		},
		{
			name:    "zero workers",
			content: "[orchestrator]\nworker_count = 0\n",
			wantErr: "worker_count",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestStorePathFallsBackToLogDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = "/var/log/reelflow"
	cfg.Store.Path = ""
	if got := cfg.StorePath(); got != "/var/log/reelflow/state.db" {
		t.Fatalf("StorePath = %q", got)
	}
	cfg.Store.Path = "/data/state.db"
	if got := cfg.StorePath(); got != "/data/state.db" {
		t.Fatalf("StorePath = %q", got)
	}
}

func TestRunDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = "/out"
	if got := cfg.RunDir("run-1"); got != "/out/run-1" {
		t.Fatalf("RunDir = %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(dir, "outputs")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, path := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			t.Fatalf("directory %s not created: %v", path, err)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[orchestrator]") {
		t.Fatal("sample config missing orchestrator section")
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("WriteSample overwrote an existing file")
	}
}

func TestEnvOverridesProviderKeys(t *testing.T) {
	t.Setenv("REELFLOW_SCRIPT_API_KEY", "env-script-key")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[providers]\nscript_api_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.ScriptAPIKey != "env-script-key" {
		t.Fatalf("script api key = %q", cfg.Providers.ScriptAPIKey)
	}
}
