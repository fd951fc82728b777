package providers

import (
	"context"
	"fmt"

	"reelflow/internal/layout"
	"reelflow/internal/run"
)

// ProviderError wraps a failure from an external generation service.
// Providers never retry internally; the orchestrator owns retry policy.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ScriptClient plans a run into a script.
type ScriptClient interface {
	GenerateScript(ctx context.Context, spec run.Spec) (*layout.Script, error)
}

// ImageClient renders one visual for a scene and returns the written
// file path.
type ImageClient interface {
	GenerateImage(ctx context.Context, prompt, style string, seed uint32, destPath string) (string, error)
}

// SpeechClient synthesizes narration audio for one scene.
type SpeechClient interface {
	Synthesize(ctx context.Context, text, voiceID, destPath string) (string, error)
}

// MusicClient composes a background track for the whole video.
type MusicClient interface {
	Compose(ctx context.Context, prompt, genre string, durationMS int, destPath string) (string, error)
}

// Set bundles the four generation clients a run needs.
type Set struct {
	Script ScriptClient
	Image  ImageClient
	Speech SpeechClient
	Music  MusicClient
}
