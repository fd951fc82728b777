// Package daemon hosts the long-running reelflow process: it enforces
// single-instance execution, resumes persisted runs on startup, runs
// the snapshot sweeper, and exposes debug endpoints. Control traffic
// arrives over the IPC socket.
package daemon
