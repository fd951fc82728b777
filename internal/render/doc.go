// Package render turns a fully merged layout into the final video
// artifact. The offline renderer writes a deterministic composition
// summary in place of a real compositor.
package render
