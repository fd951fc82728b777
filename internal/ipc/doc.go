// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships
// the matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs for
// run control: submit, status, confirm, regenerate, cancel, and the
// progress event stream. The server embeds the daemon while the client
// decorates calls with dial timeouts so CLI commands fail fast when the
// daemon is offline.
package ipc
