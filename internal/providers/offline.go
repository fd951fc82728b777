package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"reelflow/internal/config"
	"reelflow/internal/layout"
	"reelflow/internal/run"
)

// NewSet builds the provider set from configuration. The offline
// clients produce deterministic placeholder artifacts so the pipeline
// runs end to end without network access.
func NewSet(providers config.Providers) Set {
	return Set{
		Script: &OfflineScriptClient{Model: providers.ScriptModel},
		Image:  &OfflineImageClient{},
		Speech: &OfflineSpeechClient{DefaultVoice: providers.VoiceID},
		Music:  &OfflineMusicClient{},
	}
}

// OfflineScriptClient plans scripts without a language model. The
// output is deterministic for a given spec.
type OfflineScriptClient struct {
	Model string
}

func (c *OfflineScriptClient) GenerateScript(_ context.Context, spec run.Spec) (*layout.Script, error) {
	script := &layout.Script{
		Title:     titleFor(spec.Prompt),
		BGMPrompt: fmt.Sprintf("%s backing track for: %s", spec.MusicGenre, spec.Prompt),
	}

	for i := 0; i < spec.NumCharacters; i++ {
		character := layout.ScriptCharacter{
			CharID:  fmt.Sprintf("char_%d", i+1),
			VoiceID: spec.VoiceID,
		}
		if i < len(spec.Characters) {
			input := spec.Characters[i]
			character.Name = input.Name
			character.Appearance = input.Appearance
		} else {
			character.Name = fmt.Sprintf("Narrator %d", i+1)
			character.Appearance = fmt.Sprintf("warm %s narrator for %s", spec.ArtStyle, spec.Mode)
		}
		script.Characters = append(script.Characters, character)
	}

	for i := 0; i < spec.NumCuts; i++ {
		scene := layout.ScriptScene{
			SceneID:    fmt.Sprintf("scene_%d", i+1),
			Text:       sceneText(spec.Prompt, i, spec.NumCuts),
			Speaker:    "narration",
			Emotion:    "neutral",
			DurationMS: 4000 + 500*(i%3),
		}
		// Every other scene reuses the previous visual, leaving the
		// prompt empty, the same way a real plan reuses establishing
		// shots.
		if i%2 == 0 {
			scene.ImagePrompt = fmt.Sprintf("%s, %s, shot %d", spec.Prompt, spec.ArtStyle, i+1)
		}
		if spec.Mode == run.ModeStory {
			scene.Background = fmt.Sprintf("%s setting, moment %d", spec.Prompt, i+1)
		}
		script.Scenes = append(script.Scenes, scene)
	}

	return script, nil
}

func titleFor(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

func sceneText(prompt string, index, total int) string {
	switch {
	case index == 0:
		return fmt.Sprintf("Here is the story of %s.", prompt)
	case index == total-1:
		return fmt.Sprintf("And that is how %s comes to a close.", prompt)
	default:
		return fmt.Sprintf("The tale of %s takes an unexpected turn in part %d.", prompt, index+1)
	}
}

// FallbackScript is the rule-based plan used when the script provider
// fails outright. Its output is intentionally recognizable filler; the
// validator rejects it so a failed plan triggers a retry instead of
// shipping filler content.
func FallbackScript(spec run.Spec) *layout.Script {
	script := &layout.Script{Title: titleFor(spec.Prompt)}
	for i := 0; i < spec.NumCharacters; i++ {
		script.Characters = append(script.Characters, layout.ScriptCharacter{
			CharID:     fmt.Sprintf("char_%d", i+1),
			Name:       layout.PlaceholderCharacterName(i + 1),
			Appearance: layout.PlaceholderCharacterAppearance(i + 1),
		})
	}
	for i := 0; i < spec.NumCuts; i++ {
		script.Scenes = append(script.Scenes, layout.ScriptScene{
			SceneID:     fmt.Sprintf("scene_%d", i+1),
			ImagePrompt: spec.Prompt,
			Text:        layout.FallbackSceneText(i + 1),
			Speaker:     "narration",
			DurationMS:  4000,
		})
	}
	return script
}

// OfflineImageClient writes a deterministic placeholder image artifact.
type OfflineImageClient struct{}

func (c *OfflineImageClient) GenerateImage(ctx context.Context, prompt, style string, seed uint32, destPath string) (string, error) {
	payload := map[string]any{
		"kind":   "image",
		"prompt": prompt,
		"style":  style,
		"seed":   seed,
		"digest": digest(prompt, style, fmt.Sprint(seed)),
	}
	if err := writeArtifact(ctx, destPath, payload); err != nil {
		return "", &ProviderError{Provider: "image", Op: "generate", Err: err}
	}
	return destPath, nil
}

// OfflineSpeechClient writes a deterministic placeholder narration clip.
type OfflineSpeechClient struct {
	DefaultVoice string
}

func (c *OfflineSpeechClient) Synthesize(ctx context.Context, text, voiceID, destPath string) (string, error) {
	if voiceID == "" {
		voiceID = c.DefaultVoice
	}
	payload := map[string]any{
		"kind":   "speech",
		"text":   text,
		"voice":  voiceID,
		"digest": digest(text, voiceID),
	}
	if err := writeArtifact(ctx, destPath, payload); err != nil {
		return "", &ProviderError{Provider: "speech", Op: "synthesize", Err: err}
	}
	return destPath, nil
}

// OfflineMusicClient writes a deterministic placeholder music track.
type OfflineMusicClient struct{}

func (c *OfflineMusicClient) Compose(ctx context.Context, prompt, genre string, durationMS int, destPath string) (string, error) {
	payload := map[string]any{
		"kind":        "music",
		"prompt":      prompt,
		"genre":       genre,
		"duration_ms": durationMS,
		"digest":      digest(prompt, genre),
	}
	if err := writeArtifact(ctx, destPath, payload); err != nil {
		return "", &ProviderError{Provider: "music", Op: "compose", Err: err}
	}
	return destPath, nil
}

func writeArtifact(ctx context.Context, destPath string, payload map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o644)
}

func digest(parts ...string) string {
	h := fnv.New64a()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
