// Package tasks defines the distributed task substrate contract the
// orchestrator consumes: fire-and-forget submission, groups of
// independent tasks, and a barrier continuation scheduled once every
// group member has reported. The local implementation executes tasks on
// a goroutine pool inside the daemon process.
package tasks
