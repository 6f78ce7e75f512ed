package game

import (
	"image"

	"go.uber.org/zap"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/detect"
	"genshin-autobot/internal/vision"
)

// StateClassifier fuses perception signals into the single authoritative
// state of a cycle. Priority, first match wins: any detected enemy means
// Battle; a bright map indicator region means the map overlay is open;
// otherwise the character is out exploring.
type StateClassifier struct {
	region     image.Rectangle
	brightness float64
	log        *zap.Logger
}

// NewStateClassifier builds a classifier from the map indicator settings.
func NewStateClassifier(cfg config.StateConfig, logger *zap.Logger) *StateClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateClassifier{
		region:     image.Rect(cfg.MapRegion.X1, cfg.MapRegion.Y1, cfg.MapRegion.X2, cfg.MapRegion.Y2),
		brightness: cfg.MapBrightness,
		log:        logger.Named("state"),
	}
}

// Classify never fails: a frame too small to hold the map indicator region
// classifies as Unknown rather than erroring, since the loop must keep
// running on whatever capture it gets.
func (c *StateClassifier) Classify(f vision.Frame, dets []detect.Detection) GameState {
	if len(dets) > 0 {
		return GameState{Kind: StateBattle, Enemies: dets}
	}

	mean, err := vision.MeanBrightness(f, c.region)
	if err != nil {
		c.log.Debug("map indicator region unreadable", zap.Error(err))
		return GameState{Kind: StateUnknown}
	}
	if mean > c.brightness {
		return GameState{Kind: StateMap}
	}
	return GameState{Kind: StateExploring}
}
