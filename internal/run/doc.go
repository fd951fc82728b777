// Package run defines the run record and the user-facing run spec.
//
// A Run is one end-to-end execution of the content pipeline for a
// single request. Its artifacts map only ever grows, its logs are
// append-only, and its metadata holds small counters such as retry
// budgets consumed.
package run
