package run

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mode selects the generation pipeline variant.
type Mode string

const (
	ModeGeneral Mode = "general"
	ModeStory   Mode = "story"
	ModeAd      Mode = "ad"
)

// ParseMode converts a string into a known Mode.
func ParseMode(value string) (Mode, bool) {
	normalized := Mode(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ModeGeneral, ModeStory, ModeAd:
		return normalized, true
	}
	return "", false
}

// CharacterInput describes one cast member for story mode.
type CharacterInput struct {
	Name        string `json:"name" validate:"required"`
	Gender      string `json:"gender" validate:"oneof=male female other"`
	Role        string `json:"role"`
	Personality string `json:"personality"`
	Appearance  string `json:"appearance"`
}

// Spec is the immutable input specification for a run.
type Spec struct {
	Mode          Mode             `json:"mode" validate:"oneof=general story ad"`
	Prompt        string           `json:"prompt" validate:"required"`
	NumCharacters int              `json:"num_characters" validate:"min=1,max=3"`
	NumCuts       int              `json:"num_cuts" validate:"min=1,max=10"`
	ArtStyle      string           `json:"art_style"`
	MusicGenre    string           `json:"music_genre"`
	VoiceID       string           `json:"voice_id,omitempty"`
	Characters    []CharacterInput `json:"characters,omitempty" validate:"max=3,dive"`
	// ReviewMode pauses the pipeline at each human checkpoint.
	ReviewMode bool `json:"review_mode"`
}

var specValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the spec against its field constraints and fills
// defaults for optional fields.
func (s *Spec) Validate() error {
	if s.NumCharacters == 0 {
		s.NumCharacters = 1
	}
	if s.NumCuts == 0 {
		s.NumCuts = 3
	}
	if s.ArtStyle == "" {
		s.ArtStyle = "pastel watercolor"
	}
	if s.MusicGenre == "" {
		s.MusicGenre = "ambient"
	}
	if err := specValidator.Struct(s); err != nil {
		return fmt.Errorf("run spec: %w", err)
	}
	return nil
}
