// Package api is the transport-neutral service surface over the
// orchestrator: request and status DTOs plus the operations the IPC
// server and debug endpoints expose.
package api
