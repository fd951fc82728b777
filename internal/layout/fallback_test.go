package layout_test

import (
	"testing"

	"reelflow/internal/layout"
)

func TestFallbackTextDetection(t *testing.T) {
	if !layout.IsFallbackText(layout.FallbackSceneText(3)) {
		t.Fatal("generated fallback text not detected")
	}
	for _, text := range []string{
		"This is the scene of the story.",
		"A fox waits under the lamp.",
		"",
	} {
		if layout.IsFallbackText(text) {
			t.Fatalf("%q misclassified as fallback", text)
		}
	}
}

func TestPlaceholderCharacterDetection(t *testing.T) {
	placeholder := layout.ScriptCharacter{
		Name:       layout.PlaceholderCharacterName(2),
		Appearance: layout.PlaceholderCharacterAppearance(2),
	}
	if !layout.IsPlaceholderCharacter(placeholder) {
		t.Fatal("placeholder cast entry not detected")
	}

	named := layout.ScriptCharacter{Name: "Mira", Appearance: "red scarf"}
	if layout.IsPlaceholderCharacter(named) {
		t.Fatal("real cast entry misclassified as placeholder")
	}

	// Either filler field alone marks the entry.
	half := layout.ScriptCharacter{Name: "Mira", Appearance: layout.PlaceholderCharacterAppearance(1)}
	if !layout.IsPlaceholderCharacter(half) {
		t.Fatal("placeholder appearance alone should be detected")
	}
}
