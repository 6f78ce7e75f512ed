package vision

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

// TextRegion is one recognized text span with its bounding quadrilateral,
// corners ordered TL, TR, BR, BL. Confidence is within [0,1].
type TextRegion struct {
	Text       string         `json:"text"`
	Confidence float64        `json:"confidence"`
	Quad       [4]image.Point `json:"quad"`
}

// Centroid returns the legacy corner-offset click target for the region.
func (r TextRegion) Centroid() (image.Point, error) {
	return QuadCentroid(r.Quad[:])
}

// RawSpan is one span as produced by an OCR engine, confidence already
// normalized to [0,1] and coordinates in the coordinates of the image the
// engine was given.
type RawSpan struct {
	Text       string
	Confidence float64
	Quad       [4]image.Point
}

// Engine is the OCR collaborator boundary. Implementations are expensive to
// initialize and are created once per session.
type Engine interface {
	ReadText(img image.Image) ([]RawSpan, error)
	Close() error
}

// TextExtractor wraps the OCR engine with the preprocessing and filtering the
// loop relies on: grayscale conversion, optional upscaling for small UI text,
// and a hard confidence floor. Spans below the floor are dropped entirely;
// downstream consumers have no use for uncertain text.
type TextExtractor struct {
	engine  Engine
	floor   float64
	upscale float64
	log     *zap.Logger
}

// NewTextExtractor builds an extractor over engine. The confidence floor must
// lie within [0,1] and the upscale factor must be at least 1.
func NewTextExtractor(engine Engine, floor, upscale float64, logger *zap.Logger) (*TextExtractor, error) {
	if engine == nil {
		return nil, fmt.Errorf("text extractor requires an OCR engine")
	}
	if floor < 0 || floor > 1 {
		return nil, fmt.Errorf("confidence floor %v outside [0, 1]", floor)
	}
	if upscale < 1 {
		return nil, fmt.Errorf("upscale factor %v must be >= 1", upscale)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextExtractor{engine: engine, floor: floor, upscale: upscale, log: logger.Named("ocr")}, nil
}

// Extract runs OCR over the frame and returns every span at or above the
// confidence floor, coordinates mapped back to frame space. Output order is
// whatever the engine produced; callers index by text content.
func (x *TextExtractor) Extract(f Frame) ([]TextRegion, error) {
	if f.Empty() {
		return nil, fmt.Errorf("extract text from empty frame")
	}

	spans, err := x.engine.ReadText(x.preprocess(f))
	if err != nil {
		return nil, fmt.Errorf("ocr read: %w", err)
	}

	regions := make([]TextRegion, 0, len(spans))
	for _, span := range spans {
		if span.Confidence < x.floor {
			x.log.Debug("span below confidence floor",
				zap.String("text", span.Text),
				zap.Float64("confidence", span.Confidence))
			continue
		}
		regions = append(regions, TextRegion{
			Text:       span.Text,
			Confidence: span.Confidence,
			Quad:       x.toFrameSpace(span.Quad),
		})
	}
	return regions, nil
}

// preprocess converts to single-channel intensity and upscales when the
// factor exceeds 1. Small UI glyphs recognize markedly better enlarged.
func (x *TextExtractor) preprocess(f Frame) image.Image {
	gray := image.NewGray(f.Bounds())
	draw.Draw(gray, gray.Bounds(), f.Image(), f.Bounds().Min, draw.Src)
	if x.upscale <= 1 {
		return gray
	}
	w := uint(math.Round(float64(f.Width()) * x.upscale))
	h := uint(math.Round(float64(f.Height()) * x.upscale))
	return resize.Resize(w, h, gray, resize.Bicubic)
}

// toFrameSpace maps engine coordinates back through the upscale factor.
func (x *TextExtractor) toFrameSpace(quad [4]image.Point) [4]image.Point {
	if x.upscale <= 1 {
		return quad
	}
	var out [4]image.Point
	for i, p := range quad {
		out[i] = image.Point{
			X: int(math.Round(float64(p.X) / x.upscale)),
			Y: int(math.Round(float64(p.Y) / x.upscale)),
		}
	}
	return out
}
