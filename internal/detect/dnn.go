package detect

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/vision"
)

// rowStride is the layout of one network output row: box center x, center y,
// width, height, objectness, then one score per enemy class.
const rowStride = 5 + numEnemyClasses

// DNN runs an exported detection model (ONNX) over full frames. The network
// is loaded once at startup; inference serializes on an internal lock because
// OpenCV networks are not safe for concurrent Forward calls.
type DNN struct {
	mu            sync.Mutex
	net           gocv.Net
	inputSize     int
	confThreshold float64
	nmsThreshold  float64
	log           *zap.Logger
}

// NewDNN loads the model named by the configuration. A missing or unreadable
// model file is a startup-fatal error.
func NewDNN(cfg config.DetectorConfig, logger *zap.Logger) (*DNN, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold >= 1 {
		return nil, fmt.Errorf("detector confidence threshold %v outside (0, 1)", cfg.ConfidenceThreshold)
	}
	if cfg.NMSThreshold <= 0 || cfg.NMSThreshold >= 1 {
		return nil, fmt.Errorf("detector nms threshold %v outside (0, 1)", cfg.NMSThreshold)
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("detector input size must be positive, got %d", cfg.InputSize)
	}
	if _, err := os.Stat(cfg.Model); err != nil {
		return nil, fmt.Errorf("detector model: %w", err)
	}

	net := gocv.ReadNet(cfg.Model, "")
	if net.Empty() {
		return nil, fmt.Errorf("detector model %s cannot be loaded", cfg.Model)
	}
	logger.Info("detector model loaded",
		zap.String("model", cfg.Model),
		zap.Int("input_size", cfg.InputSize),
		zap.Float64("confidence_threshold", cfg.ConfidenceThreshold))

	return &DNN{
		net:           net,
		inputSize:     cfg.InputSize,
		confThreshold: cfg.ConfidenceThreshold,
		nmsThreshold:  cfg.NMSThreshold,
		log:           logger.Named("detector"),
	}, nil
}

// Detect runs one inference pass and returns the surviving detections after
// score filtering and non-maximum suppression.
func (d *DNN) Detect(f vision.Frame) ([]Detection, error) {
	if f.Empty() {
		return nil, fmt.Errorf("detect on empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.ImageToMatRGB(f.Image())
	if err != nil {
		return nil, fmt.Errorf("detect: convert frame: %w", err)
	}
	defer img.Close()

	// Frame mats are already RGB, so no channel swap here.
	blob := gocv.BlobFromImage(img, 1.0/255.0,
		image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("detect: read network output: %w", err)
	}

	boxes, scores, classes, err := decodeRows(data, f.Width(), f.Height(), d.inputSize, d.confThreshold)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, float32(d.confThreshold), float32(d.nmsThreshold))
	dets := make([]Detection, 0, len(keep))
	for _, i := range keep {
		dets = append(dets, Detection{
			Class:      classes[i],
			Confidence: float64(scores[i]),
			Box:        boxes[i],
		})
	}
	d.log.Debug("detections", zap.Int("candidates", len(boxes)), zap.Int("kept", len(dets)))
	return dets, nil
}

// Close releases the network.
func (d *DNN) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// decodeRows turns the flat network output into candidate boxes in frame
// coordinates. Rows below the confidence threshold are skipped; box corners
// are clamped to the frame.
func decodeRows(data []float32, frameW, frameH, inputSize int, confThreshold float64) ([]image.Rectangle, []float32, []EnemyClass, error) {
	if len(data)%rowStride != 0 {
		return nil, nil, nil, fmt.Errorf("model output length %d is not a multiple of %d", len(data), rowStride)
	}

	fx := float64(frameW) / float64(inputSize)
	fy := float64(frameH) / float64(inputSize)

	var (
		boxes   []image.Rectangle
		scores  []float32
		classes []EnemyClass
	)
	for i := 0; i+rowStride <= len(data); i += rowStride {
		obj := data[i+4]
		classIdx := 0
		classScore := data[i+5]
		for c := 1; c < numEnemyClasses; c++ {
			if data[i+5+c] > classScore {
				classScore = data[i+5+c]
				classIdx = c
			}
		}
		score := obj * classScore
		if float64(score) < confThreshold {
			continue
		}

		cx := float64(data[i]) * fx
		cy := float64(data[i+1]) * fy
		w := float64(data[i+2]) * fx
		h := float64(data[i+3]) * fy
		box := image.Rect(
			int(math.Round(cx-w/2)),
			int(math.Round(cy-h/2)),
			int(math.Round(cx+w/2)),
			int(math.Round(cy+h/2)),
		).Intersect(image.Rect(0, 0, frameW, frameH))
		if box.Empty() {
			continue
		}

		boxes = append(boxes, box)
		scores = append(scores, score)
		classes = append(classes, EnemyClass(classIdx))
	}
	return boxes, scores, classes, nil
}
