// Package detect locates enemies in captured frames.
//
// The production detector runs a small object detection network through
// OpenCV's DNN module. A bot configured without a model gets None, so the
// pipeline never branches on a nil detector.
package detect

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/vision"
)

// EnemyClass identifies what kind of enemy a detection is. Lower values are
// higher threat: a boss on screen outranks any number of regular enemies.
type EnemyClass int

const (
	Boss EnemyClass = iota
	StatusEnemy
	NormalEnemy

	numEnemyClasses = int(NormalEnemy) + 1
)

func (c EnemyClass) String() string {
	switch c {
	case Boss:
		return "boss"
	case StatusEnemy:
		return "status"
	case NormalEnemy:
		return "normal"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Detection is one enemy found in a frame, in frame pixel coordinates.
type Detection struct {
	Class      EnemyClass      `json:"class"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Center returns the middle of the detection box, the natural aim point.
func (d Detection) Center() image.Point {
	return image.Point{
		X: d.Box.Min.X + d.Box.Dx()/2,
		Y: d.Box.Min.Y + d.Box.Dy()/2,
	}
}

// Detector finds enemies in a frame. An empty result is the normal quiet
// case, not an error.
type Detector interface {
	Detect(f vision.Frame) ([]Detection, error)
	Close() error
}

// None is the detector used when no model is configured. It never finds
// anything, which keeps the bot in exploration behavior.
type None struct{}

func (None) Detect(vision.Frame) ([]Detection, error) { return nil, nil }

func (None) Close() error { return nil }

// New builds the detector for the given configuration. An empty model path
// disables detection.
func New(cfg config.DetectorConfig, logger *zap.Logger) (Detector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		logger.Info("enemy detection disabled, no model configured")
		return None{}, nil
	}
	return NewDNN(cfg, logger)
}

// Dominant picks the detection the bot should engage: the highest-threat
// class present, and among those the most confident one.
func Dominant(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Class < best.Class || (d.Class == best.Class && d.Confidence > best.Confidence) {
			best = d
		}
	}
	return best, true
}
