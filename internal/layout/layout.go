package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ImageSlot positions one generated image inside a scene.
type ImageSlot struct {
	SlotID      string  `json:"slot_id"`
	Type        string  `json:"type"` // character, background, prop, scene
	RefID       string  `json:"ref_id,omitempty"`
	ImageURL    string  `json:"image_url"`
	ZIndex      int     `json:"z_index"`
	XPos        float64 `json:"x_pos,omitempty"`
	ImagePrompt string  `json:"image_prompt,omitempty"`
	AspectRatio string  `json:"aspect_ratio,omitempty"`
}

// TextLine is one dialogue or narration line with timing and audio.
type TextLine struct {
	LineID     string `json:"line_id"`
	CharID     string `json:"char_id"`
	Text       string `json:"text"`
	TextType   string `json:"text_type"` // dialogue or narration
	Emotion    string `json:"emotion,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	StartMS    int    `json:"start_ms"`
	DurationMS int    `json:"duration_ms"`
}

// BGM is a background music entry.
type BGM struct {
	BGMID      string  `json:"bgm_id"`
	Genre      string  `json:"genre"`
	Mood       string  `json:"mood"`
	AudioURL   string  `json:"audio_url"`
	StartMS    int     `json:"start_ms"`
	DurationMS int     `json:"duration_ms"`
	Volume     float64 `json:"volume"`
}

// Scene bundles the visuals, text, and audio for one cut.
type Scene struct {
	SceneID    string      `json:"scene_id"`
	Sequence   int         `json:"sequence"`
	DurationMS int         `json:"duration_ms"`
	Images     []ImageSlot `json:"images"`
	Texts      []TextLine  `json:"texts"`
	Transition string      `json:"transition,omitempty"`
}

// Character is a cast entry with a stable seed for visual consistency.
type Character struct {
	CharID       string `json:"char_id"`
	Name         string `json:"name"`
	Persona      string `json:"persona,omitempty"`
	VoiceProfile string `json:"voice_profile,omitempty"`
	Seed         int    `json:"seed"`
}

// Timeline holds overall composition metadata.
type Timeline struct {
	TotalDurationMS int    `json:"total_duration_ms"`
	AspectRatio     string `json:"aspect_ratio"`
	FPS             int    `json:"fps"`
	Resolution      string `json:"resolution"`
}

// Layout is the unified artifact the fan-in merger owns. Producers
// return update records against it; only the merger writes the file.
type Layout struct {
	ProjectID  string            `json:"project_id"`
	Title      string            `json:"title"`
	Mode       string            `json:"mode"`
	Timeline   Timeline          `json:"timeline"`
	Characters []Character       `json:"characters"`
	Scenes     []Scene           `json:"scenes"`
	GlobalBGM  *BGM              `json:"global_bgm,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Path returns the layout artifact location inside a run directory.
func Path(runDir string) string {
	return filepath.Join(runDir, "layout.json")
}

// Load reads a layout artifact from disk.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	return &l, nil
}

// Save writes the layout artifact to path.
func (l *Layout) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create layout directory: %w", err)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}

// Scene returns a scene by identifier.
func (l *Layout) Scene(sceneID string) (*Scene, bool) {
	for i := range l.Scenes {
		if l.Scenes[i].SceneID == sceneID {
			return &l.Scenes[i], true
		}
	}
	return nil, false
}
