package layout

import (
	"fmt"
	"hash/fnv"
	"strings"

	"reelflow/internal/run"
)

const (
	defaultSceneDurationMS = 5000
	defaultFPS             = 30
)

// Derive builds the unified layout from a validated script. Image and
// audio URLs stay empty; the asset producers fill them in via the
// fan-in merger.
func Derive(runID string, script *Script, spec run.Spec) *Layout {
	l := &Layout{
		ProjectID: runID,
		Title:     script.Title,
		Mode:      string(spec.Mode),
		Timeline: Timeline{
			AspectRatio: "9:16",
			FPS:         defaultFPS,
			Resolution:  "1080x1920",
		},
		Metadata: map[string]string{
			"art_style":   spec.ArtStyle,
			"music_genre": spec.MusicGenre,
		},
	}

	for _, c := range script.Characters {
		l.Characters = append(l.Characters, Character{
			CharID:       c.CharID,
			Name:         c.Name,
			Persona:      c.Appearance,
			VoiceProfile: c.VoiceID,
			Seed:         seedFor(runID, c.CharID),
		})
	}

	total := 0
	lastPrompt := ""
	for i, scene := range script.Scenes {
		duration := scene.DurationMS
		if duration <= 0 {
			duration = defaultSceneDurationMS
		}

		prompt := strings.TrimSpace(scene.ImagePrompt)
		reused := prompt == ""
		if !reused {
			lastPrompt = prompt
		}

		slot := ImageSlot{
			SlotID:      "scene",
			Type:        slotType(spec.Mode),
			ImagePrompt: lastPrompt,
			ZIndex:      0,
			AspectRatio: slotAspect(spec.Mode),
		}
		if reused {
			slot.SlotID = "scene_reused"
		}

		textType := "dialogue"
		if scene.Speaker == "narration" {
			textType = "narration"
		}

		l.Scenes = append(l.Scenes, Scene{
			SceneID:    scene.SceneID,
			Sequence:   i + 1,
			DurationMS: duration,
			Images:     []ImageSlot{slot},
			Texts: []TextLine{{
				LineID:     fmt.Sprintf("%s_line_1", scene.SceneID),
				CharID:     scene.Speaker,
				Text:       scene.Text,
				TextType:   textType,
				Emotion:    scene.Emotion,
				StartMS:    0,
				DurationMS: duration,
			}},
			Transition: "fade",
		})
		total += duration
	}
	l.Timeline.TotalDurationMS = total

	return l
}

func slotType(mode run.Mode) string {
	if mode == run.ModeStory {
		return "background"
	}
	return "scene"
}

func slotAspect(mode run.Mode) string {
	if mode == run.ModeStory {
		return "9:16"
	}
	return "1:1"
}

// seedFor derives a stable per-character seed so regenerated images
// keep a consistent look across scenes.
func seedFor(runID, charID string) int {
	h := fnv.New32a()
	h.Write([]byte(runID))
	h.Write([]byte("/"))
	h.Write([]byte(charID))
	return int(h.Sum32() & 0x7fffffff)
}
