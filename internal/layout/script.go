package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ScriptScene is one planned cut of the video.
type ScriptScene struct {
	SceneID string `json:"scene_id"`
	// ImagePrompt describes the visual for the scene. An empty prompt
	// reuses the previous scene's image.
	ImagePrompt string `json:"image_prompt"`
	Text        string `json:"text"`
	Speaker     string `json:"speaker"`
	Emotion     string `json:"emotion,omitempty"`
	DurationMS  int    `json:"duration_ms"`
	// Background carries the mode-specific backdrop descriptor
	// required in story mode.
	Background string `json:"background,omitempty"`
}

// ScriptCharacter is a cast entry carried alongside the scenes.
type ScriptCharacter struct {
	CharID     string `json:"char_id"`
	Name       string `json:"name"`
	Appearance string `json:"appearance,omitempty"`
	VoiceID    string `json:"voice_id,omitempty"`
}

// Script is the plan stage output.
type Script struct {
	Title      string            `json:"title"`
	BGMPrompt  string            `json:"bgm_prompt,omitempty"`
	Characters []ScriptCharacter `json:"characters,omitempty"`
	Scenes     []ScriptScene     `json:"scenes"`
}

// ScriptPath returns the script artifact location inside a run directory.
func ScriptPath(runDir string) string {
	return filepath.Join(runDir, "script.json")
}

// LoadScript reads a script artifact from disk.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var script Script
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return &script, nil
}

// Save writes the script artifact to path.
func (s *Script) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create script directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode script: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}
