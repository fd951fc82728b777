package testsupport

import (
	"path/filepath"
	"testing"

	"reelflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "outputs")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "reelflow.sock")
	cfgVal.Paths.DebugBind = ""
	cfgVal.Store.Path = filepath.Join(base, "state.db")
	// Retries without pacing keep retry-path tests fast.
	cfgVal.Orchestrator.RetryDelaySecs = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := cfgVal.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithRetryBudget overrides the plan and QA retry budgets.
func WithRetryBudget(plan, qa int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Orchestrator.MaxPlanRetries = plan
		b.cfg.Orchestrator.MaxQARetries = qa
	}
}

// WithWorkers overrides the substrate worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Orchestrator.WorkerCount = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
