// Package fsm implements the authoritative state machine for a run.
//
// The transition table is the only guard discipline: an edge missing
// from the table fails closed with no mutation. Every successful
// transition synchronously persists a versioned snapshot to the shared
// state store so the request-serving process and the worker process
// observe each other's progress. Process-local machines are cached
// best-effort only and must be invalidated before review operations.
package fsm
