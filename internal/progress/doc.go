// Package progress broadcasts run state and log events to any number
// of subscribers. Publishing is best effort and never blocks or fails
// the stage doing the publishing.
package progress
