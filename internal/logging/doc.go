// Package logging builds the slog loggers used across reelflow and
// defines the standardized attribute keys shared by the daemon, the
// orchestrator, and the stage tasks.
package logging
