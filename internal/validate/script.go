package validate

import (
	"fmt"
	"math"
	"unicode/utf8"

	"reelflow/internal/layout"
	"reelflow/internal/run"
)

// maxSceneTextRunes caps narration length per scene. Longer texts are
// flagged as an issue but never fail a script on their own.
const maxSceneTextRunes = 200

// Verdict is the outcome of validating a generated script against the
// run spec. Issues collects every problem found so the retry prompt can
// name all of them at once.
type Verdict struct {
	Passed bool
	Issues []string
}

// Blocking reports whether the verdict should trigger regeneration.
// Length warnings alone do not block.
func (v Verdict) Blocking() bool {
	if v.Passed {
		return false
	}
	for _, issue := range v.Issues {
		if !isLengthIssue(issue) {
			return true
		}
	}
	return false
}

const lengthIssuePrefix = "scene text too long"

func isLengthIssue(issue string) bool {
	return len(issue) >= len(lengthIssuePrefix) && issue[:len(lengthIssuePrefix)] == lengthIssuePrefix
}

// Script checks a generated script against the spec it was produced
// for. The empty-script check short-circuits; every other check
// accumulates into the issue list.
func Script(script *layout.Script, spec run.Spec) Verdict {
	if script == nil || len(script.Scenes) == 0 {
		return Verdict{Issues: []string{"script contains no scenes"}}
	}

	var issues []string
	issues = append(issues, checkSceneCount(script, spec)...)
	issues = append(issues, checkFreshVisuals(script, spec)...)
	issues = append(issues, checkSceneFields(script, spec)...)
	issues = append(issues, checkDegenerate(script)...)
	issues = append(issues, checkCharacters(script)...)

	return Verdict{Passed: len(issues) == 0, Issues: issues}
}

// checkSceneCount enforces the tolerance band around the requested cut
// count: at least half, at most double plus three.
func checkSceneCount(script *layout.Script, spec run.Spec) []string {
	count := len(script.Scenes)
	low := int(math.Ceil(float64(spec.NumCuts) * 0.5))
	high := spec.NumCuts*2 + 3
	if count < low {
		return []string{fmt.Sprintf("too few scenes: got %d, requested %d", count, spec.NumCuts)}
	}
	if count > high {
		return []string{fmt.Sprintf("too many scenes: got %d, requested %d", count, spec.NumCuts)}
	}
	return nil
}

// checkFreshVisuals requires a minimum share of scenes to introduce a
// new image rather than reusing the previous one.
func checkFreshVisuals(script *layout.Script, spec run.Spec) []string {
	required := int(math.Ceil(float64(spec.NumCuts) * 0.4))
	if required < 1 {
		required = 1
	}
	fresh := 0
	for _, scene := range script.Scenes {
		if scene.ImagePrompt != "" {
			fresh++
		}
	}
	if fresh < required {
		return []string{fmt.Sprintf("only %d scenes introduce a new visual, need at least %d", fresh, required)}
	}
	return nil
}

// checkSceneFields verifies per-scene required content: non-empty
// narration, the mode-specific fields, and the length cap.
func checkSceneFields(script *layout.Script, spec run.Spec) []string {
	var issues []string
	sawPrompt := false
	for i, scene := range script.Scenes {
		if scene.Text == "" {
			issues = append(issues, fmt.Sprintf("scene %d has empty text", i+1))
		}
		if utf8.RuneCountInString(scene.Text) > maxSceneTextRunes {
			issues = append(issues, fmt.Sprintf("%s: scene %d has %d characters", lengthIssuePrefix, i+1, utf8.RuneCountInString(scene.Text)))
		}
		if spec.Mode == run.ModeStory && scene.Background == "" {
			issues = append(issues, fmt.Sprintf("scene %d is missing a background descriptor", i+1))
		}
		if scene.ImagePrompt != "" {
			sawPrompt = true
		}
	}
	if spec.Mode != run.ModeStory && !sawPrompt {
		issues = append(issues, "no scene carries an image directive")
	}
	return issues
}

// checkDegenerate detects filler output: the rule-based fallback
// pattern, or a majority of byte-identical scene texts.
func checkDegenerate(script *layout.Script) []string {
	var issues []string
	fallback := 0
	counts := make(map[string]int)
	most := 0
	for _, scene := range script.Scenes {
		if layout.IsFallbackText(scene.Text) {
			fallback++
		}
		counts[scene.Text]++
		if counts[scene.Text] > most {
			most = counts[scene.Text]
		}
	}
	if fallback > 0 {
		issues = append(issues, fmt.Sprintf("%d scenes contain fallback filler text", fallback))
	}
	if most*2 > len(script.Scenes) && len(script.Scenes) > 1 {
		issues = append(issues, "more than half of the scenes share identical text")
	}
	return issues
}

// checkCharacters flags cast entries that still carry generator
// placeholders instead of real names and appearances.
func checkCharacters(script *layout.Script) []string {
	var issues []string
	for _, c := range script.Characters {
		if layout.IsPlaceholderCharacter(c) {
			issues = append(issues, fmt.Sprintf("character %q is a generator placeholder", c.Name))
		}
	}
	return issues
}
