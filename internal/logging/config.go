package logging

import (
	"log/slog"
	"path/filepath"

	"reelflow/internal/config"
)

// NewFromConfig builds the daemon logger: console or JSON per the
// config, mirrored to stdout and the log file.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	paths := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		paths = append(paths, filepath.Join(cfg.Paths.LogDir, "reelflow.log"))
	}
	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
	})
}
