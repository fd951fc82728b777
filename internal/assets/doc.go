// Package assets implements the fan-out stage of a run: three
// independent producers (visuals, narration, music) that each return
// update records, and the barrier merger that folds those records into
// the layout. Producers never touch the layout file; the merger is its
// sole writer and produces the same result under any completion order.
package assets
