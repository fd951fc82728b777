// Package statestore provides the shared key-value store that holds
// one serialized FSM snapshot per run. The SQLite implementation is the
// durable cross-process store; the memory implementation backs tests
// and degraded operation. TTL expiry is the only retention mechanism.
package statestore
