package game

import (
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/detect"
	"genshin-autobot/internal/vision"
)

// Template manifest keys for the clickable prompts the detector knows about.
const (
	TemplateDungeonInvite   = "dungeon_invite"
	TemplateDungeonActivate = "dungeon_activate"
)

// EventDetector recognizes discrete on-screen events: clickable prompts via
// template matching, squad completion via keyword scan over OCR output, and
// enemy presence via the object detector's results.
type EventDetector struct {
	matcher       *vision.TemplateMatcher
	templates     *vision.TemplateLibrary
	keywords      []string
	exactCentroid bool
	log           *zap.Logger
}

// NewEventDetector wires the detector. Keywords are matched case
// insensitively; they are lowercased once here.
func NewEventDetector(matcher *vision.TemplateMatcher, templates *vision.TemplateLibrary, cfg config.EventsConfig, logger *zap.Logger) (*EventDetector, error) {
	if matcher == nil {
		return nil, fmt.Errorf("event detector needs a template matcher")
	}
	if templates == nil {
		return nil, fmt.Errorf("event detector needs a template library")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("events")

	keywords := make([]string, 0, len(cfg.SquadKeywords))
	for _, kw := range cfg.SquadKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		log.Warn("no squad keywords configured, squad completion detection disabled")
	}
	for _, name := range []string{TemplateDungeonInvite, TemplateDungeonActivate} {
		if _, ok := templates.Get(name); !ok {
			log.Warn("template not loaded, event disabled", zap.String("template", name))
		}
	}

	return &EventDetector{
		matcher:       matcher,
		templates:     templates,
		keywords:      keywords,
		exactCentroid: cfg.ExactCentroid,
		log:           log,
	}, nil
}

// Detect returns every event visible this cycle, in a stable order: dungeon
// invite, dungeon activate, squad completion, enemy presence. Absent events
// simply do not appear; only caller defects surface as errors.
func (d *EventDetector) Detect(f vision.Frame, texts []vision.TextRegion, dets []detect.Detection) ([]GameEvent, error) {
	if f.Empty() {
		return nil, fmt.Errorf("event detection on empty frame")
	}

	var events []GameEvent
	for _, tpl := range []struct {
		name string
		kind EventKind
	}{
		{TemplateDungeonInvite, EventDungeonInvite},
		{TemplateDungeonActivate, EventDungeonActivate},
	} {
		spec, ok := d.templates.Get(tpl.name)
		if !ok {
			continue
		}
		result, found, err := d.matcher.Find(f, spec)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", tpl.kind, err)
		}
		if !found {
			continue
		}
		d.log.Debug("prompt visible",
			zap.Stringer("event", tpl.kind),
			zap.Float64("confidence", result.Confidence))
		events = append(events, GameEvent{Kind: tpl.kind, Target: result.Center()})
	}

	if ev, ok := d.squadEvent(texts); ok {
		events = append(events, ev)
	}
	if len(dets) > 0 {
		events = append(events, GameEvent{Kind: EventEnemyDetected, Enemies: dets})
	}
	return events, nil
}

// squadEvent scans OCR output for the squad completion phrasing. The first
// region containing any keyword wins; at most one squad event per cycle.
func (d *EventDetector) squadEvent(texts []vision.TextRegion) (GameEvent, bool) {
	for _, region := range texts {
		lower := strings.ToLower(region.Text)
		for _, kw := range d.keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			target, err := d.clickTarget(region)
			if err != nil {
				d.log.Debug("squad region has no usable click target", zap.Error(err))
				return GameEvent{}, false
			}
			d.log.Debug("squad completion text",
				zap.String("text", region.Text),
				zap.String("keyword", kw))
			return GameEvent{Kind: EventSquadComplete, Target: target, Text: region.Text}, true
		}
	}
	return GameEvent{}, false
}

func (d *EventDetector) clickTarget(region vision.TextRegion) (image.Point, error) {
	if d.exactCentroid {
		return vision.QuadCenter(region.Quad[:])
	}
	return vision.QuadCentroid(region.Quad[:])
}
