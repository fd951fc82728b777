package providers_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"reelflow/internal/providers"
	"reelflow/internal/run"
)

func offlineSpec() run.Spec {
	return run.Spec{
		Mode:          run.ModeGeneral,
		Prompt:        "a lighthouse keeper and her cat",
		NumCharacters: 2,
		NumCuts:       4,
		ArtStyle:      "pastel watercolor",
		MusicGenre:    "ambient",
		Characters:    []run.CharacterInput{{Name: "Ines", Gender: "female", Appearance: "yellow raincoat"}},
	}
}

func TestOfflineScriptIsDeterministic(t *testing.T) {
	client := &providers.OfflineScriptClient{}
	spec := offlineSpec()

	first, err := client.GenerateScript(context.Background(), spec)
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	second, err := client.GenerateScript(context.Background(), spec)
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same spec produced different scripts")
	}
}

func TestOfflineScriptShape(t *testing.T) {
	client := &providers.OfflineScriptClient{}
	spec := offlineSpec()

	script, err := client.GenerateScript(context.Background(), spec)
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}

	if len(script.Scenes) != spec.NumCuts {
		t.Fatalf("scenes = %d, want %d", len(script.Scenes), spec.NumCuts)
	}
	if len(script.Characters) != spec.NumCharacters {
		t.Fatalf("characters = %d, want %d", len(script.Characters), spec.NumCharacters)
	}
	// Supplied cast entries come first; the rest are invented.
	if script.Characters[0].Name != "Ines" {
		t.Fatalf("first character = %q", script.Characters[0].Name)
	}
	if script.Characters[1].Name != "Narrator 2" {
		t.Fatalf("invented character = %q", script.Characters[1].Name)
	}
	// Alternate scenes reuse the previous visual.
	for i, scene := range script.Scenes {
		hasPrompt := scene.ImagePrompt != ""
		if hasPrompt != (i%2 == 0) {
			t.Fatalf("scene %d prompt presence = %v", i, hasPrompt)
		}
		if scene.Text == "" {
			t.Fatalf("scene %d has empty text", i)
		}
	}
	if script.BGMPrompt == "" {
		t.Fatal("missing bgm prompt")
	}
}

func TestOfflineScriptStoryBackgrounds(t *testing.T) {
	client := &providers.OfflineScriptClient{}
	spec := offlineSpec()
	spec.Mode = run.ModeStory

	script, err := client.GenerateScript(context.Background(), spec)
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	for i, scene := range script.Scenes {
		if scene.Background == "" {
			t.Fatalf("story scene %d missing background", i)
		}
	}
}

func TestTitleTruncatesLongPrompts(t *testing.T) {
	client := &providers.OfflineScriptClient{}
	spec := offlineSpec()
	spec.Prompt = "one two three four five six seven eight"

	script, err := client.GenerateScript(context.Background(), spec)
	if err != nil {
		t.Fatalf("GenerateScript: %v", err)
	}
	if script.Title != "one two three four five six" {
		t.Fatalf("title = %q", script.Title)
	}
	if words := strings.Fields(script.Title); len(words) != 6 {
		t.Fatalf("title has %d words", len(words))
	}
}

func TestFallbackScriptCarriesRecognizableFiller(t *testing.T) {
	spec := offlineSpec()
	script := providers.FallbackScript(spec)

	if len(script.Scenes) != spec.NumCuts {
		t.Fatalf("scenes = %d, want %d", len(script.Scenes), spec.NumCuts)
	}
	if script.Scenes[0].Text != "This is scene 1 of the story." {
		t.Fatalf("fallback text = %q", script.Scenes[0].Text)
	}
	if script.Characters[0].Name != "Character 1" {
		t.Fatalf("fallback character = %q", script.Characters[0].Name)
	}
}

func TestOfflineImageArtifactsAreDeterministic(t *testing.T) {
	client := &providers.OfflineImageClient{}
	dir := t.TempDir()
	ctx := context.Background()

	pathA, err := client.GenerateImage(ctx, "fox in rain", "ink wash", 42, filepath.Join(dir, "a.png"))
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	pathB, err := client.GenerateImage(ctx, "fox in rain", "ink wash", 42, filepath.Join(dir, "b.png"))
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	a, err := os.ReadFile(pathA)
	if err != nil {
		t.Fatalf("read %s: %v", pathA, err)
	}
	b, err := os.ReadFile(pathB)
	if err != nil {
		t.Fatalf("read %s: %v", pathB, err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("same inputs produced different image artifacts")
	}

	other, err := client.GenerateImage(ctx, "fox in rain", "ink wash", 43, filepath.Join(dir, "c.png"))
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	c, err := os.ReadFile(other)
	if err != nil {
		t.Fatalf("read %s: %v", other, err)
	}
	if bytes.Equal(a, c) {
		t.Fatal("different seed produced an identical artifact")
	}
}

func TestOfflineSpeechUsesDefaultVoice(t *testing.T) {
	client := &providers.OfflineSpeechClient{DefaultVoice: "voice-default"}
	dest := filepath.Join(t.TempDir(), "line.mp3")

	if _, err := client.Synthesize(context.Background(), "hello", "", dest); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(data), "voice-default") {
		t.Fatalf("artifact does not mention the default voice: %s", data)
	}
}

func TestOfflineMusicWritesTrackMetadata(t *testing.T) {
	client := &providers.OfflineMusicClient{}
	dest := filepath.Join(t.TempDir(), "bgm.mp3")

	path, err := client.Compose(context.Background(), "calm theme", "lofi", 12000, dest)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	for _, want := range []string{"lofi", "12000", "calm theme"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("artifact missing %q: %s", want, data)
		}
	}
}

func TestOfflineClientsHonorCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()

	image := &providers.OfflineImageClient{}
	if _, err := image.GenerateImage(ctx, "p", "s", 1, filepath.Join(dir, "x.png")); err == nil {
		t.Fatal("expected error from canceled context")
	}
}
