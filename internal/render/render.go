package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"reelflow/internal/layout"
)

// RenderError wraps a composition failure.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Renderer composes the merged layout into the final video and returns
// the output path. onProgress, when non-nil, receives completion
// fractions in [0, 1] as scenes finish.
type Renderer interface {
	Render(ctx context.Context, runDir string, l *layout.Layout, onProgress func(fraction float64)) (string, error)
}

// VideoPath returns the final video location inside a run directory.
func VideoPath(runDir string) string {
	return filepath.Join(runDir, "video.mp4")
}

// OfflineRenderer writes a composition summary instead of invoking a
// real compositor.
type OfflineRenderer struct{}

type sceneSummary struct {
	SceneID    string `json:"scene_id"`
	DurationMS int    `json:"duration_ms"`
	Image      string `json:"image"`
	AudioClips int    `json:"audio_clips"`
}

func (r *OfflineRenderer) Render(ctx context.Context, runDir string, l *layout.Layout, onProgress func(fraction float64)) (string, error) {
	summary := struct {
		ProjectID  string         `json:"project_id"`
		Title      string         `json:"title"`
		Resolution string         `json:"resolution"`
		DurationMS int            `json:"duration_ms"`
		BGM        string         `json:"bgm,omitempty"`
		Scenes     []sceneSummary `json:"scenes"`
	}{
		ProjectID:  l.ProjectID,
		Title:      l.Title,
		Resolution: l.Timeline.Resolution,
		DurationMS: l.Timeline.TotalDurationMS,
	}
	if l.GlobalBGM != nil {
		summary.BGM = l.GlobalBGM.AudioURL
	}

	for i, scene := range l.Scenes {
		if err := ctx.Err(); err != nil {
			return "", &RenderError{Stage: "compose", Err: err}
		}
		entry := sceneSummary{SceneID: scene.SceneID, DurationMS: scene.DurationMS, AudioClips: len(scene.Texts)}
		if len(scene.Images) > 0 {
			entry.Image = scene.Images[0].ImageURL
		}
		summary.Scenes = append(summary.Scenes, entry)
		if onProgress != nil {
			onProgress(float64(i+1) / float64(len(l.Scenes)))
		}
	}

	path := VideoPath(runDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &RenderError{Stage: "prepare", Err: err}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", &RenderError{Stage: "encode", Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &RenderError{Stage: "write", Err: err}
	}
	return path, nil
}
