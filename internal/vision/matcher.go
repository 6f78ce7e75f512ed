package vision

import (
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// MatchMethod selects the normalized correlation metric used for template
// comparison. Only normalized modes are supported so scores stay comparable
// to the [0,1] acceptance threshold.
type MatchMethod uint8

const (
	MatchCcoeffNormed MatchMethod = iota
	MatchCcorrNormed
	MatchSqdiffNormed
)

func (m MatchMethod) String() string {
	switch m {
	case MatchCcoeffNormed:
		return "ccoeff_normed"
	case MatchCcorrNormed:
		return "ccorr_normed"
	case MatchSqdiffNormed:
		return "sqdiff_normed"
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

// ParseMatchMethod converts a manifest method name.
func ParseMatchMethod(s string) (MatchMethod, error) {
	switch s {
	case "ccoeff_normed":
		return MatchCcoeffNormed, nil
	case "ccorr_normed":
		return MatchCcorrNormed, nil
	case "sqdiff_normed":
		return MatchSqdiffNormed, nil
	default:
		return 0, fmt.Errorf("unknown match method %q (want ccoeff_normed, ccorr_normed or sqdiff_normed)", s)
	}
}

func (m MatchMethod) mode() gocv.TemplateMatchMode {
	switch m {
	case MatchCcorrNormed:
		return gocv.TmCcorrNormed
	case MatchSqdiffNormed:
		return gocv.TmSqdiffNormed
	default:
		return gocv.TmCcoeffNormed
	}
}

// MatchResult is one accepted template hit. Transient, one cycle's lifetime.
type MatchResult struct {
	Template   string      `json:"template"`
	Point      image.Point `json:"point"`
	Confidence float64     `json:"confidence"`
	Bounds     image.Rectangle
	Method     MatchMethod `json:"-"`
}

// Center returns the middle of the matched bounding box, the natural click
// target for a matched button.
func (r MatchResult) Center() image.Point {
	return image.Point{
		X: r.Bounds.Min.X + r.Bounds.Dx()/2,
		Y: r.Bounds.Min.Y + r.Bounds.Dy()/2,
	}
}

// TemplateMatcher locates known UI templates inside frames.
//
// Matching runs on single-channel intensity images to remove color and
// lighting variance. A candidate is accepted only when its score passes the
// template's threshold AND its vertical center falls inside the template's
// expected band; UI buttons appear in context-dependent places and raw
// correlation alone produces hits elsewhere on screen.
type TemplateMatcher struct {
	log *zap.Logger
}

// NewTemplateMatcher builds a matcher. The logger may be nil.
func NewTemplateMatcher(logger *zap.Logger) *TemplateMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateMatcher{log: logger.Named("matcher")}
}

// Find looks for spec inside the frame. The miss path returns ok=false with
// no error; it is the common case. Errors indicate caller defects: empty
// frame, nil spec, or a template larger than the frame.
//
// The template's methods are tried in order and OR-combined: the first method
// whose best location passes both the score threshold and the vertical band
// wins, and the remaining methods are skipped.
func (m *TemplateMatcher) Find(f Frame, spec *TemplateSpec) (MatchResult, bool, error) {
	if spec == nil {
		return MatchResult{}, false, fmt.Errorf("template spec must not be nil")
	}
	if f.Empty() {
		return MatchResult{}, false, fmt.Errorf("find %q: frame is empty", spec.Name)
	}
	if spec.Width > f.Width() || spec.Height > f.Height() {
		return MatchResult{}, false, fmt.Errorf("find %q: template %dx%d exceeds frame %dx%d",
			spec.Name, spec.Width, spec.Height, f.Width(), f.Height())
	}

	frameGray, err := frameToGray(f)
	if err != nil {
		return MatchResult{}, false, fmt.Errorf("find %q: %w", spec.Name, err)
	}
	defer frameGray.Close()

	for _, method := range spec.Methods {
		score, loc, err := m.bestLocation(frameGray, spec, method)
		if err != nil {
			return MatchResult{}, false, err
		}
		if score < spec.Threshold {
			continue
		}
		centerY := loc.Y + spec.Height/2
		if !spec.bandContains(centerY, f.Height()) {
			m.log.Debug("match rejected outside vertical band",
				zap.String("template", spec.Name),
				zap.Stringer("method", method),
				zap.Int("center_y", centerY),
				zap.Float64("score", score))
			continue
		}
		return MatchResult{
			Template:   spec.Name,
			Point:      loc,
			Confidence: score,
			Bounds:     image.Rect(loc.X, loc.Y, loc.X+spec.Width, loc.Y+spec.Height),
			Method:     method,
		}, true, nil
	}
	return MatchResult{}, false, nil
}

// bestLocation runs one metric over the full search window and returns the
// best score in [0,1] with its top-left location. Square-difference modes
// score lowest-is-best, so their value is inverted.
func (m *TemplateMatcher) bestLocation(frameGray gocv.Mat, spec *TemplateSpec, method MatchMethod) (float64, image.Point, error) {
	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(frameGray, spec.mat, &result, method.mode(), mask)
	minVal, maxVal, minLoc, maxLoc := gocv.MinMaxLoc(result)

	var score float64
	var loc image.Point
	if method == MatchSqdiffNormed {
		score = 1 - float64(minVal)
		loc = minLoc
	} else {
		score = float64(maxVal)
		loc = maxLoc
	}
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	return score, loc, nil
}
