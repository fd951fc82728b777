package config

const (
	defaultOutputDir        = "~/.local/share/reelflow/outputs"
	defaultLogDir           = "~/.local/share/reelflow/logs"
	defaultDebugBind        = "127.0.0.1:7981"
	defaultSnapshotTTLHours = 24
	defaultSweepSchedule    = "@every 15m"
	defaultMaxPlanRetries   = 2
	defaultMaxQARetries     = 2
	defaultRetryDelaySecs   = 2
	defaultWorkerCount      = 4
	defaultProgressCapacity = 512
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultScriptModel      = "gpt-4o-mini"
	defaultNtfyTimeoutSecs  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			DebugBind: defaultDebugBind,
		},
		Store: Store{
			SnapshotTTLHours: defaultSnapshotTTLHours,
			SweepSchedule:    defaultSweepSchedule,
		},
		Orchestrator: Orchestrator{
			MaxPlanRetries:   defaultMaxPlanRetries,
			MaxQARetries:     defaultMaxQARetries,
			RetryDelaySecs:   defaultRetryDelaySecs,
			WorkerCount:      defaultWorkerCount,
			ProgressCapacity: defaultProgressCapacity,
		},
		Providers: Providers{
			ScriptModel: defaultScriptModel,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeoutSecs: defaultNtfyTimeoutSecs,
		},
	}
}
