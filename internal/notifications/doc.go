// Package notifications delivers run lifecycle events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured
// in config.toml and gracefully degrades to a no-op when notifications
// are disabled. The orchestrator emits a message when a run starts,
// pauses at a review checkpoint, completes, or fails.
//
// Extend this package if you need alternative transports; orchestration
// code depends only on the Service interface.
package notifications
