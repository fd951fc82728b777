package layout

import (
	"fmt"
	"regexp"
)

// The rule-based fallback generator emits recognizable filler when the
// script provider is unreachable. The validator treats this texture as
// a generation failure so a run never ships filler content.

// FallbackSceneText formats the filler narration for scene index (1-based).
func FallbackSceneText(index int) string {
	return fmt.Sprintf("This is scene %d of the story.", index)
}

// PlaceholderCharacterName formats the filler cast name for index (1-based).
func PlaceholderCharacterName(index int) string {
	return fmt.Sprintf("Character %d", index)
}

// PlaceholderCharacterAppearance formats the filler appearance for index (1-based).
func PlaceholderCharacterAppearance(index int) string {
	return fmt.Sprintf("Appearance of character %d", index)
}

var (
	fallbackTextPattern    = regexp.MustCompile(`^This is scene \d+ of the story\.$`)
	placeholderNamePattern = regexp.MustCompile(`^Character \d+$`)
	placeholderLookPattern = regexp.MustCompile(`^Appearance of character \d+$`)
)

// IsFallbackText reports whether text matches the filler narration pattern.
func IsFallbackText(text string) bool {
	return fallbackTextPattern.MatchString(text)
}

// IsPlaceholderCharacter reports whether a cast entry carries filler
// name or appearance.
func IsPlaceholderCharacter(c ScriptCharacter) bool {
	return placeholderNamePattern.MatchString(c.Name) || placeholderLookPattern.MatchString(c.Appearance)
}
