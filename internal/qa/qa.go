package qa

import (
	"fmt"
	"os"

	"reelflow/internal/layout"
)

// Verdict is the outcome of the post-render quality gate.
type Verdict struct {
	Passed bool
	Issues []string
}

// Check inspects the rendered output and the merged layout. A failed
// verdict sends the run back through plan generation, so every issue
// found is reported at once.
func Check(videoPath string, l *layout.Layout) Verdict {
	var issues []string

	if info, err := os.Stat(videoPath); err != nil {
		issues = append(issues, fmt.Sprintf("video missing: %v", err))
	} else if info.Size() == 0 {
		issues = append(issues, "video file is empty")
	}

	if l == nil {
		issues = append(issues, "layout missing")
		return Verdict{Issues: issues}
	}
	if l.Title == "" {
		issues = append(issues, "layout has no title")
	}
	if l.Timeline.TotalDurationMS <= 0 {
		issues = append(issues, "layout has no duration")
	}
	if len(l.Scenes) == 0 {
		issues = append(issues, "layout has no scenes")
	}

	for _, scene := range l.Scenes {
		for _, slot := range scene.Images {
			if slot.ImageURL == "" {
				issues = append(issues, fmt.Sprintf("scene %s has an unfilled image slot", scene.SceneID))
				break
			}
		}
		for _, line := range scene.Texts {
			if line.AudioURL == "" {
				issues = append(issues, fmt.Sprintf("scene %s line %s has no narration audio", scene.SceneID, line.LineID))
			}
		}
	}

	if l.GlobalBGM == nil || l.GlobalBGM.AudioURL == "" {
		issues = append(issues, "background music is missing")
	}

	return Verdict{Passed: len(issues) == 0, Issues: issues}
}
