package assets

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"path/filepath"

	"reelflow/internal/layout"
	"reelflow/internal/logging"
	"reelflow/internal/providers"
	"reelflow/internal/run"
)

// Producer names, used as task names and in merge accounting.
const (
	ProducerVisual    = "visual"
	ProducerNarration = "narration"
	ProducerMusic     = "music"
)

// Update is one pending write against the layout. Producers return
// updates instead of editing the layout so the merger stays the only
// writer.
type Update struct {
	Kind    string `json:"kind"` // image, narration, bgm
	SceneID string `json:"scene_id,omitempty"`
	LineID  string `json:"line_id,omitempty"`
	Path    string `json:"path"`
}

// Result is one producer's contribution to the fan-in. A failed
// producer contributes an empty update list.
type Result struct {
	Producer string   `json:"producer"`
	Updates  []Update `json:"updates"`
}

// ProducerSet runs the three independent asset stages against a
// read-only layout snapshot.
type ProducerSet struct {
	clients providers.Set
	logger  *slog.Logger
}

// NewProducerSet wires the generation clients into the asset stages.
func NewProducerSet(clients providers.Set, logger *slog.Logger) *ProducerSet {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ProducerSet{
		clients: clients,
		logger:  logging.NewComponentLogger(logger, "assets"),
	}
}

// ProduceVisuals generates one image per fresh slot and records reuse
// for slots that carry the previous scene's visual.
func (p *ProducerSet) ProduceVisuals(ctx context.Context, runDir string, l *layout.Layout, spec run.Spec) (Result, error) {
	result := Result{Producer: ProducerVisual}
	lastPath := ""
	for _, scene := range l.Scenes {
		for _, slot := range scene.Images {
			if slot.SlotID == "scene_reused" {
				if lastPath != "" {
					result.Updates = append(result.Updates, Update{Kind: "image", SceneID: scene.SceneID, Path: lastPath})
				}
				continue
			}
			dest := filepath.Join(runDir, "assets", "images", fmt.Sprintf("%s.png", scene.SceneID))
			path, err := p.clients.Image.GenerateImage(ctx, slot.ImagePrompt, l.Metadata["art_style"], sceneSeed(l.ProjectID, scene.SceneID), dest)
			if err != nil {
				return Result{Producer: ProducerVisual}, fmt.Errorf("visuals for %s: %w", scene.SceneID, err)
			}
			lastPath = path
			result.Updates = append(result.Updates, Update{Kind: "image", SceneID: scene.SceneID, Path: path})
		}
	}
	p.logger.Info("visuals produced",
		logging.String(logging.FieldRunID, l.ProjectID),
		logging.Int("updates", len(result.Updates)),
	)
	return result, nil
}

// ProduceNarration synthesizes one audio clip per text line.
func (p *ProducerSet) ProduceNarration(ctx context.Context, runDir string, l *layout.Layout, spec run.Spec) (Result, error) {
	result := Result{Producer: ProducerNarration}
	for _, scene := range l.Scenes {
		for _, line := range scene.Texts {
			voice := spec.VoiceID
			if voice == "" {
				voice = voiceFor(l, line.CharID)
			}
			dest := filepath.Join(runDir, "assets", "audio", fmt.Sprintf("%s.mp3", line.LineID))
			path, err := p.clients.Speech.Synthesize(ctx, line.Text, voice, dest)
			if err != nil {
				return Result{Producer: ProducerNarration}, fmt.Errorf("narration for %s: %w", line.LineID, err)
			}
			result.Updates = append(result.Updates, Update{Kind: "narration", SceneID: scene.SceneID, LineID: line.LineID, Path: path})
		}
	}
	p.logger.Info("narration produced",
		logging.String(logging.FieldRunID, l.ProjectID),
		logging.Int("updates", len(result.Updates)),
	)
	return result, nil
}

// ProduceMusic composes a single background track spanning the whole
// timeline.
func (p *ProducerSet) ProduceMusic(ctx context.Context, runDir string, l *layout.Layout, spec run.Spec) (Result, error) {
	prompt := fmt.Sprintf("%s theme for %s", spec.MusicGenre, l.Title)
	if script, err := layout.LoadScript(layout.ScriptPath(runDir)); err == nil && script.BGMPrompt != "" {
		prompt = script.BGMPrompt
	}
	dest := filepath.Join(runDir, "assets", "audio", "bgm.mp3")
	path, err := p.clients.Music.Compose(ctx, prompt, spec.MusicGenre, l.Timeline.TotalDurationMS, dest)
	if err != nil {
		return Result{Producer: ProducerMusic}, fmt.Errorf("music: %w", err)
	}
	p.logger.Info("music produced", logging.String(logging.FieldRunID, l.ProjectID))
	return Result{
		Producer: ProducerMusic,
		Updates:  []Update{{Kind: "bgm", Path: path}},
	}, nil
}

func voiceFor(l *layout.Layout, charID string) string {
	for _, c := range l.Characters {
		if c.CharID == charID {
			return c.VoiceProfile
		}
	}
	return ""
}

func sceneSeed(runID, sceneID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(runID))
	h.Write([]byte("/"))
	h.Write([]byte(sceneID))
	return h.Sum32()
}
