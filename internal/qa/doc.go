// Package qa is the post-render quality gate: it verifies the video
// exists and that the merged layout is complete, with every image slot
// and narration line resolved and background music attached.
package qa
