package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateOrchestrator(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.SnapshotTTLHours <= 0 {
		return errors.New("store.snapshot_ttl_hours must be positive")
	}
	if c.Store.SweepSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Store.SweepSchedule); err != nil {
			return fmt.Errorf("store.sweep_schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateOrchestrator() error {
	if c.Orchestrator.MaxPlanRetries < 0 {
		return errors.New("orchestrator.max_plan_retries must not be negative")
	}
	if c.Orchestrator.MaxQARetries < 0 {
		return errors.New("orchestrator.max_qa_retries must not be negative")
	}
	if c.Orchestrator.RetryDelaySecs < 0 {
		return errors.New("orchestrator.retry_delay_seconds must not be negative")
	}
	if c.Orchestrator.WorkerCount <= 0 {
		return errors.New("orchestrator.worker_count must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
