package assets

import (
	"fmt"
	"log/slog"
	"sort"

	"reelflow/internal/layout"
	"reelflow/internal/logging"
)

// Merger folds producer results into the layout. It is the only
// component that writes the layout artifact after derivation, so the
// fan-in can never race on the file.
type Merger struct {
	logger *slog.Logger
}

// NewMerger constructs the fan-in merger.
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Merger{logger: logging.NewComponentLogger(logger, "merger")}
}

// Merge applies every producer's updates to the layout and saves it.
// Results are sorted by producer name first, so the merged layout is
// identical regardless of completion order. It returns the producers
// that contributed no updates.
func (m *Merger) Merge(runDir string, l *layout.Layout, results []Result) ([]string, error) {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Producer < sorted[j].Producer })

	var empty []string
	for _, result := range sorted {
		if len(result.Updates) == 0 {
			empty = append(empty, result.Producer)
			continue
		}
		for _, update := range result.Updates {
			if err := apply(l, update); err != nil {
				return empty, fmt.Errorf("merge %s update: %w", result.Producer, err)
			}
		}
	}

	if err := l.Save(layout.Path(runDir)); err != nil {
		return empty, err
	}
	m.logger.Info("layout merged",
		logging.String(logging.FieldRunID, l.ProjectID),
		logging.Int("producers", len(sorted)-len(empty)),
	)
	return empty, nil
}

func apply(l *layout.Layout, update Update) error {
	switch update.Kind {
	case "image":
		scene, ok := l.Scene(update.SceneID)
		if !ok {
			return fmt.Errorf("unknown scene %q", update.SceneID)
		}
		for i := range scene.Images {
			scene.Images[i].ImageURL = update.Path
		}
		return nil
	case "narration":
		scene, ok := l.Scene(update.SceneID)
		if !ok {
			return fmt.Errorf("unknown scene %q", update.SceneID)
		}
		for i := range scene.Texts {
			if scene.Texts[i].LineID == update.LineID {
				scene.Texts[i].AudioURL = update.Path
				return nil
			}
		}
		return fmt.Errorf("unknown line %q in scene %q", update.LineID, update.SceneID)
	case "bgm":
		if l.GlobalBGM == nil {
			l.GlobalBGM = &layout.BGM{
				BGMID:      "bgm_main",
				Genre:      l.Metadata["music_genre"],
				DurationMS: l.Timeline.TotalDurationMS,
				Volume:     0.3,
			}
		}
		l.GlobalBGM.AudioURL = update.Path
		return nil
	default:
		return fmt.Errorf("unknown update kind %q", update.Kind)
	}
}
