package config

import (
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Store.Path != "" {
		if c.Store.Path, err = expandPath(c.Store.Path); err != nil {
			return err
		}
	}
	if c.Paths.SocketPath == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.LogDir, "reelflowd.sock")
	} else if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return err
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	applyEnvOverrides(c)
	return nil
}

// applyEnvOverrides lets provider credentials come from the environment,
// so secrets can stay out of the config file.
func applyEnvOverrides(c *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"REELFLOW_SCRIPT_API_KEY", &c.Providers.ScriptAPIKey},
		{"REELFLOW_IMAGE_API_KEY", &c.Providers.ImageAPIKey},
		{"REELFLOW_SPEECH_API_KEY", &c.Providers.SpeechAPIKey},
		{"REELFLOW_MUSIC_API_KEY", &c.Providers.MusicAPIKey},
	}
	for _, o := range overrides {
		if value := strings.TrimSpace(os.Getenv(o.env)); value != "" {
			*o.target = value
		}
	}
}
