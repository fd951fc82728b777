// Package orchestrator drives video runs through their lifecycle. It is
// the only writer of state transitions and the only task submitter:
// stage bodies run on the task substrate and report back through
// callbacks, which guard against late or duplicate results by checking
// the current state before acting. Review checkpoints pause the
// pipeline until an operator confirms, edits, or regenerates; snapshots
// in the shared state store let a restarted process resume every
// in-flight run.
package orchestrator
