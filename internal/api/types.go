package api

import (
	"encoding/json"
	"time"

	"reelflow/internal/orchestrator"
	"reelflow/internal/run"
)

// CharacterInput mirrors run.CharacterInput for transport.
type CharacterInput struct {
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	Role        string `json:"role,omitempty"`
	Personality string `json:"personality,omitempty"`
	Appearance  string `json:"appearance,omitempty"`
}

// StartRunRequest carries a new run specification.
type StartRunRequest struct {
	Mode          string           `json:"mode"`
	Prompt        string           `json:"prompt"`
	NumCharacters int              `json:"num_characters,omitempty"`
	NumCuts       int              `json:"num_cuts,omitempty"`
	ArtStyle      string           `json:"art_style,omitempty"`
	MusicGenre    string           `json:"music_genre,omitempty"`
	VoiceID       string           `json:"voice_id,omitempty"`
	Characters    []CharacterInput `json:"characters,omitempty"`
	ReviewMode    bool             `json:"review_mode,omitempty"`
}

// Spec converts the transport request into a run spec.
func (r StartRunRequest) Spec() run.Spec {
	spec := run.Spec{
		Mode:          run.Mode(r.Mode),
		Prompt:        r.Prompt,
		NumCharacters: r.NumCharacters,
		NumCuts:       r.NumCuts,
		ArtStyle:      r.ArtStyle,
		MusicGenre:    r.MusicGenre,
		VoiceID:       r.VoiceID,
		ReviewMode:    r.ReviewMode,
	}
	for _, c := range r.Characters {
		spec.Characters = append(spec.Characters, run.CharacterInput{
			Name:        c.Name,
			Gender:      c.Gender,
			Role:        c.Role,
			Personality: c.Personality,
			Appearance:  c.Appearance,
		})
	}
	return spec
}

// RunStatus is the transport view of a run.
type RunStatus struct {
	RunID         string            `json:"run_id"`
	State         string            `json:"state"`
	Progress      float64           `json:"progress"`
	Artifacts     map[string]string `json:"artifacts,omitempty"`
	Logs          []string          `json:"logs,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// FromStatus converts the orchestrator view into the transport DTO.
func FromStatus(status orchestrator.Status) RunStatus {
	return RunStatus(status)
}

// ConfirmRequest resumes a run paused at a review checkpoint. Edits,
// when present, replace the checkpoint artifact before resuming.
type ConfirmRequest struct {
	RunID string          `json:"run_id"`
	Edits json.RawMessage `json:"edits,omitempty"`
}
