package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"reelflow/internal/api"
	"reelflow/internal/ipc"
	"reelflow/internal/run"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Submit and control video generation runs",
	}

	runCmd.AddCommand(newRunStartCommand(ctx))
	runCmd.AddCommand(newRunStatusCommand(ctx))
	runCmd.AddCommand(newRunConfirmCommand(ctx))
	runCmd.AddCommand(newRunRegenerateCommand(ctx))
	runCmd.AddCommand(newRunCancelCommand(ctx))
	runCmd.AddCommand(newRunWatchCommand(ctx))

	return runCmd
}

func newRunStartCommand(ctx *commandContext) *cobra.Command {
	var (
		mode       string
		numCuts    int
		numChars   int
		artStyle   string
		musicGenre string
		voiceID    string
		characters []string
		review     bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "start <prompt>",
		Short: "Start a new video generation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			parsedMode, ok := run.ParseMode(mode)
			if !ok {
				return fmt.Errorf("unknown mode %q (expected general, story, or ad)", mode)
			}
			req := api.StartRunRequest{
				Mode:          string(parsedMode),
				Prompt:        strings.TrimSpace(args[0]),
				NumCuts:       numCuts,
				NumCharacters: numChars,
				ArtStyle:      artStyle,
				MusicGenre:    musicGenre,
				VoiceID:       voiceID,
				ReviewMode:    review,
			}
			for _, raw := range characters {
				character, err := parseCharacterFlag(raw)
				if err != nil {
					return err
				}
				req.Characters = append(req.Characters, character)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StartRun(ipc.StartRunRequest{Spec: req})
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Started %s run %s\n", modeLabel(req.Mode), resp.RunID)
				if review {
					fmt.Fprintln(stdout, "Review mode: the run pauses at each checkpoint; resume with `reelflow run confirm`.")
				}
				if watch {
					return watchRun(cmd, client, resp.RunID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "general", "Run mode: general, story, or ad")
	cmd.Flags().IntVar(&numCuts, "cuts", 0, "Target scene count (0 uses the mode default)")
	cmd.Flags().IntVar(&numChars, "num-characters", 0, "Number of characters to invent when none are given")
	cmd.Flags().StringVar(&artStyle, "art-style", "", "Visual style hint for image generation")
	cmd.Flags().StringVar(&musicGenre, "music-genre", "", "Genre hint for background music")
	cmd.Flags().StringVar(&voiceID, "voice", "", "Narration voice identifier")
	cmd.Flags().StringArrayVar(&characters, "character", nil, "Character as name:gender[:appearance], repeatable")
	cmd.Flags().BoolVar(&review, "review", false, "Pause at each human review checkpoint")
	cmd.Flags().BoolVar(&watch, "watch", false, "Stream progress events until the run finishes")

	return cmd
}

func parseCharacterFlag(raw string) (api.CharacterInput, error) {
	parts := strings.SplitN(raw, ":", 3)
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return api.CharacterInput{}, fmt.Errorf("character flag %q: name is required", raw)
	}
	character := api.CharacterInput{Name: name, Gender: "other"}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		character.Gender = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		character.Appearance = strings.TrimSpace(parts[2])
	}
	return character, nil
}

func newRunStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var showLogs bool

	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the state of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunStatus(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					encoder := json.NewEncoder(stdout)
					encoder.SetIndent("", "  ")
					return encoder.Encode(resp.Run)
				}
				printRunStatus(cmd, resp.Run, showLogs)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&showLogs, "logs", false, "Include the run log tail")
	return cmd
}

func printRunStatus(cmd *cobra.Command, status api.RunStatus, showLogs bool) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(os.Stdout)

	rows := [][]string{
		{"Run", status.RunID},
		{"State", colorizeState(status.State, colorize)},
		{"Progress", formatProgress(status.Progress)},
		{"Created", status.CreatedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if status.FailureReason != "" {
		rows = append(rows, []string{"Failure", status.FailureReason})
	}
	for _, name := range sortedArtifactNames(status.Artifacts) {
		rows = append(rows, []string{"Artifact (" + name + ")", status.Artifacts[name]})
	}
	fmt.Fprintln(stdout, renderTable(
		[]string{"Field", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	))

	if showLogs && len(status.Logs) > 0 {
		fmt.Fprintln(stdout)
		for _, line := range status.Logs {
			fmt.Fprintln(stdout, line)
		}
	}
}

func sortedArtifactNames(artifacts map[string]string) []string {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newRunConfirmCommand(ctx *commandContext) *cobra.Command {
	var editsPath string

	cmd := &cobra.Command{
		Use:   "confirm <run-id>",
		Short: "Resume a run paused at a review checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()

			var edits json.RawMessage
			if editsPath != "" {
				data, err := os.ReadFile(editsPath)
				if err != nil {
					return fmt.Errorf("read edits file: %w", err)
				}
				if !json.Valid(data) {
					return fmt.Errorf("edits file %s is not valid JSON", editsPath)
				}
				edits = data
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Confirm(ipc.ConfirmRequest{RunID: args[0], Edits: edits})
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(stdout, resp.Message)
					return nil
				}
				fmt.Fprintf(stdout, "Run %s confirmed\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&editsPath, "edits", "", "JSON file replacing the checkpoint artifact before resuming")
	return cmd
}

func newRunRegenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <run-id>",
		Short: "Rerun the stage behind the current checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Regenerate(args[0])
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(stdout, resp.Message)
					return nil
				}
				fmt.Fprintf(stdout, "Run %s regenerating\n", args[0])
				return nil
			})
		},
	}
}

func newRunCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(args[0])
				if err != nil {
					return err
				}
				if resp.Canceled {
					fmt.Fprintf(stdout, "Run %s canceled\n", args[0])
				} else {
					fmt.Fprintf(stdout, "Run %s already finished\n", args[0])
				}
				return nil
			})
		},
	}
}

func newRunWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <run-id>",
		Short: "Stream progress events until the run finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				return watchRun(cmd, client, args[0])
			})
		},
	}
}

// watchRun polls the daemon event stream and prints each event until a
// terminal state arrives or the command context is canceled.
func watchRun(cmd *cobra.Command, client *ipc.Client, runID string) error {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(os.Stdout)

	var cursor uint64
	for {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		resp, err := client.Events(ipc.EventsRequest{
			RunID:      runID,
			Since:      cursor,
			Limit:      64,
			Wait:       true,
			WaitMillis: 2000,
		})
		if err != nil {
			return err
		}
		cursor = resp.Next
		for _, event := range resp.Events {
			progressText := ""
			if event.Progress != nil {
				progressText = formatProgress(*event.Progress)
			}
			line := fmt.Sprintf("%s  %-18s %5s",
				event.Timestamp.Format("15:04:05"),
				colorizeState(event.State, colorize),
				progressText,
			)
			if event.Log != "" {
				line += "  " + event.Log
			}
			fmt.Fprintln(stdout, line)
			if event.State == "End" || event.State == "Failed" {
				for _, name := range sortedArtifactNames(event.Artifacts) {
					fmt.Fprintf(stdout, "  %s: %s\n", name, event.Artifacts[name])
				}
				return nil
			}
		}
	}
}
