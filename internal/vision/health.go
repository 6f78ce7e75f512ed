package vision

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"genshin-autobot/internal/config"
)

// HealthReading is a parsed "current/maximum" pair from the health bar.
// Current <= Maximum is deliberately NOT enforced: raw OCR can misread a
// digit, and callers treat out-of-range values as low confidence rather than
// have the parser discard a usable signal.
type HealthReading struct {
	Current int
	Maximum int
	// CriticalBelow is the percentage under which the reading counts as
	// critical. Stamped by the parser from configuration.
	CriticalBelow float64
}

// Percentage returns Current/Maximum, or 0 when Maximum is not positive.
func (h HealthReading) Percentage() float64 {
	if h.Maximum <= 0 {
		return 0
	}
	return float64(h.Current) / float64(h.Maximum)
}

// Critical reports whether the reading demands healing.
func (h HealthReading) Critical() bool {
	return h.Percentage() < h.CriticalBelow
}

// MarshalJSON includes the derived values so cycle results read naturally.
func (h HealthReading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Current    int     `json:"current"`
		Maximum    int     `json:"maximum"`
		Percentage float64 `json:"percentage"`
		Critical   bool    `json:"critical"`
	}{h.Current, h.Maximum, h.Percentage(), h.Critical()})
}

// HealthParser reads the character health pair from a fixed fractional
// sub-region of the frame. The region is fractional, not absolute, so the
// readout survives resolution changes.
//
// A momentarily obscured health bar (effect overlay, dialog) must never halt
// the loop, so every malformed extraction parses to ok=false. Only an OCR
// engine failure surfaces as an error.
type HealthParser struct {
	extractor     *TextExtractor
	region        config.FracRegion
	criticalBelow float64
	log           *zap.Logger
}

// NewHealthParser builds a parser over the shared text extractor.
func NewHealthParser(extractor *TextExtractor, cfg config.HealthConfig, logger *zap.Logger) (*HealthParser, error) {
	if extractor == nil {
		return nil, fmt.Errorf("health parser requires a text extractor")
	}
	if cfg.CriticalThreshold < 0 || cfg.CriticalThreshold > 1 {
		return nil, fmt.Errorf("critical threshold %v outside [0, 1]", cfg.CriticalThreshold)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthParser{
		extractor:     extractor,
		region:        cfg.Region,
		criticalBelow: cfg.CriticalThreshold,
		log:           logger.Named("health"),
	}, nil
}

// Parse crops the health region, runs text extraction on the crop, and parses
// the first span shaped like "current/maximum". ok=false means the reading is
// not available this cycle; it is never an error.
func (p *HealthParser) Parse(f Frame) (HealthReading, bool, error) {
	if f.Empty() {
		return HealthReading{}, false, fmt.Errorf("parse health from empty frame")
	}

	crop, err := f.CropFrac(p.region.X1, p.region.Y1, p.region.X2, p.region.Y2)
	if err != nil {
		// Frame too small to hold the region; absent, not fatal.
		p.log.Debug("health region not croppable", zap.Error(err))
		return HealthReading{}, false, nil
	}

	regions, err := p.extractor.Extract(crop)
	if err != nil {
		return HealthReading{}, false, err
	}

	for _, region := range regions {
		reading, ok := p.parsePair(region.Text)
		if ok {
			return reading, true, nil
		}
	}
	return HealthReading{}, false, nil
}

// parsePair accepts exactly one '/' separating two non-negative integers with
// optional surrounding whitespace, and a positive maximum.
func (p *HealthParser) parsePair(text string) (HealthReading, bool) {
	if strings.Count(text, "/") != 1 {
		return HealthReading{}, false
	}
	parts := strings.SplitN(text, "/", 2)
	current, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return HealthReading{}, false
	}
	maximum, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return HealthReading{}, false
	}
	if current < 0 || maximum <= 0 {
		return HealthReading{}, false
	}
	return HealthReading{Current: current, Maximum: maximum, CriticalBelow: p.criticalBelow}, true
}
