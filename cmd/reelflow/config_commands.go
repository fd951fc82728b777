package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelflow/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.WriteSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set provider API keys before starting the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Show the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, exists, err := config.Load(strings.TrimSpace(configPath))
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			source := resolved
			if !exists {
				source = "built-in defaults"
			}
			fmt.Fprintf(stdout, "Configuration source: %s\n\n", source)
			fmt.Fprintln(stdout, renderTable(
				[]string{"Setting", "Value"},
				[][]string{
					{"Output directory", cfg.Paths.OutputDir},
					{"Log directory", cfg.Paths.LogDir},
					{"Socket path", cfg.Paths.SocketPath},
					{"Debug endpoint", cfg.Paths.DebugBind},
					{"State store", cfg.StorePath()},
					{"Snapshot TTL (hours)", fmt.Sprintf("%d", cfg.Store.SnapshotTTLHours)},
					{"Sweep schedule", cfg.Store.SweepSchedule},
					{"Worker count", fmt.Sprintf("%d", cfg.Orchestrator.WorkerCount)},
					{"Max plan retries", fmt.Sprintf("%d", cfg.Orchestrator.MaxPlanRetries)},
					{"Max QA retries", fmt.Sprintf("%d", cfg.Orchestrator.MaxQARetries)},
					{"Log level", cfg.Logging.Level},
					{"Log format", cfg.Logging.Format},
					{"Script API key set", yesNo(cfg.Providers.ScriptAPIKey != "")},
					{"Image API key set", yesNo(cfg.Providers.ImageAPIKey != "")},
					{"Speech API key set", yesNo(cfg.Providers.SpeechAPIKey != "")},
					{"Music API key set", yesNo(cfg.Providers.MusicAPIKey != "")},
				},
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config-file", "f", "", "Configuration file to inspect")
	return cmd
}
