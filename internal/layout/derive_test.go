package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelflow/internal/layout"
	"reelflow/internal/run"
)

func sampleScript() *layout.Script {
	return &layout.Script{
		Title: "A fox in the rain",
		Characters: []layout.ScriptCharacter{
			{CharID: "char_1", Name: "Mira", Appearance: "red scarf", VoiceID: "voice-a"},
		},
		Scenes: []layout.ScriptScene{
			{SceneID: "scene_1", ImagePrompt: "fox under a street lamp", Text: "A fox waits.", Speaker: "narration", DurationMS: 4000},
			{SceneID: "scene_2", Text: "Rain begins to fall.", Speaker: "char_1", Emotion: "calm"},
			{SceneID: "scene_3", ImagePrompt: "fox running through puddles", Text: "It runs.", Speaker: "narration", DurationMS: 3000},
		},
	}
}

func TestDeriveBuildsTimeline(t *testing.T) {
	spec := run.Spec{Mode: run.ModeGeneral, Prompt: "a fox", NumCuts: 3, ArtStyle: "ink wash", MusicGenre: "lofi"}
	l := layout.Derive("run-1", sampleScript(), spec)

	assert.Equal(t, "run-1", l.ProjectID)
	assert.Equal(t, "A fox in the rain", l.Title)
	assert.Equal(t, "general", l.Mode)
	assert.Equal(t, "9:16", l.Timeline.AspectRatio)
	assert.Equal(t, 30, l.Timeline.FPS)
	assert.Equal(t, "1080x1920", l.Timeline.Resolution)
	// Scene 2 falls back to the default duration.
	assert.Equal(t, 4000+5000+3000, l.Timeline.TotalDurationMS)
	assert.Equal(t, "ink wash", l.Metadata["art_style"])
	assert.Equal(t, "lofi", l.Metadata["music_genre"])

	require.Len(t, l.Scenes, 3)
	for i, scene := range l.Scenes {
		assert.Equal(t, i+1, scene.Sequence)
		assert.Equal(t, "fade", scene.Transition)
		require.Len(t, scene.Images, 1)
		require.Len(t, scene.Texts, 1)
	}
}

func TestDeriveReusesPreviousVisual(t *testing.T) {
	spec := run.Spec{Mode: run.ModeGeneral, Prompt: "a fox", NumCuts: 3}
	l := layout.Derive("run-1", sampleScript(), spec)

	first := l.Scenes[0].Images[0]
	assert.Equal(t, "scene", first.SlotID)
	assert.Equal(t, "fox under a street lamp", first.ImagePrompt)

	// An empty prompt marks the slot as reused and carries the previous
	// prompt forward.
	reused := l.Scenes[1].Images[0]
	assert.Equal(t, "scene_reused", reused.SlotID)
	assert.Equal(t, "fox under a street lamp", reused.ImagePrompt)

	third := l.Scenes[2].Images[0]
	assert.Equal(t, "scene", third.SlotID)
	assert.Equal(t, "fox running through puddles", third.ImagePrompt)
}

func TestDeriveSlotShapePerMode(t *testing.T) {
	script := sampleScript()

	general := layout.Derive("run-1", script, run.Spec{Mode: run.ModeGeneral, Prompt: "p", NumCuts: 3})
	assert.Equal(t, "scene", general.Scenes[0].Images[0].Type)
	assert.Equal(t, "1:1", general.Scenes[0].Images[0].AspectRatio)

	story := layout.Derive("run-1", script, run.Spec{Mode: run.ModeStory, Prompt: "p", NumCuts: 3})
	assert.Equal(t, "background", story.Scenes[0].Images[0].Type)
	assert.Equal(t, "9:16", story.Scenes[0].Images[0].AspectRatio)
}

func TestDeriveTextLines(t *testing.T) {
	spec := run.Spec{Mode: run.ModeGeneral, Prompt: "a fox", NumCuts: 3}
	l := layout.Derive("run-1", sampleScript(), spec)

	narration := l.Scenes[0].Texts[0]
	assert.Equal(t, "scene_1_line_1", narration.LineID)
	assert.Equal(t, "narration", narration.TextType)
	assert.Equal(t, "A fox waits.", narration.Text)
	assert.Equal(t, 4000, narration.DurationMS)
	assert.Empty(t, narration.AudioURL)

	dialogue := l.Scenes[1].Texts[0]
	assert.Equal(t, "scene_2_line_1", dialogue.LineID)
	assert.Equal(t, "dialogue", dialogue.TextType)
	assert.Equal(t, "char_1", dialogue.CharID)
	assert.Equal(t, "calm", dialogue.Emotion)
}

func TestDeriveCharacterSeedsAreStable(t *testing.T) {
	spec := run.Spec{Mode: run.ModeStory, Prompt: "a fox", NumCuts: 3}
	first := layout.Derive("run-1", sampleScript(), spec)
	second := layout.Derive("run-1", sampleScript(), spec)

	require.Len(t, first.Characters, 1)
	assert.Equal(t, first.Characters[0].Seed, second.Characters[0].Seed)
	assert.GreaterOrEqual(t, first.Characters[0].Seed, 0)
	assert.Equal(t, "Mira", first.Characters[0].Name)
	assert.Equal(t, "red scarf", first.Characters[0].Persona)
	assert.Equal(t, "voice-a", first.Characters[0].VoiceProfile)

	// A different run must not reuse the seed, or regenerated casts
	// would collide across projects.
	other := layout.Derive("run-2", sampleScript(), spec)
	assert.NotEqual(t, first.Characters[0].Seed, other.Characters[0].Seed)
}

func TestLayoutSceneLookup(t *testing.T) {
	spec := run.Spec{Mode: run.ModeGeneral, Prompt: "a fox", NumCuts: 3}
	l := layout.Derive("run-1", sampleScript(), spec)

	scene, ok := l.Scene("scene_2")
	require.True(t, ok)
	assert.Equal(t, "scene_2", scene.SceneID)

	_, ok = l.Scene("scene_99")
	assert.False(t, ok)
}
