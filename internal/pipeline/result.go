package pipeline

import (
	"time"

	"genshin-autobot/internal/detect"
	"genshin-autobot/internal/game"
	"genshin-autobot/internal/vision"
)

// CycleResult records everything one perception-to-action cycle saw and did.
// The probe command prints it as JSON; the tray summarizes it.
type CycleResult struct {
	ID              string                `json:"id"`
	Sequence        uint64                `json:"sequence"`
	StartedAt       time.Time             `json:"started_at"`
	Duration        time.Duration         `json:"duration"`
	State           game.StateKind        `json:"state"`
	Enemies         []detect.Detection    `json:"enemies,omitempty"`
	Health          *vision.HealthReading `json:"health,omitempty"`
	TextCount       int                   `json:"text_count"`
	Events          []game.GameEvent      `json:"events,omitempty"`
	Strategy        game.Strategy         `json:"strategy"`
	StrategyChanged bool                  `json:"strategy_changed,omitempty"`
	Actions         []game.Action         `json:"actions,omitempty"`
}
