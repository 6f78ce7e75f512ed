package pipeline

import (
	"sync"
	"time"

	"genshin-autobot/internal/game"
	"genshin-autobot/internal/vision"
)

// Snapshot is a point-in-time copy of the session counters, safe to hand to
// the tray or a log line.
type Snapshot struct {
	StartedAt    time.Time             `json:"started_at"`
	Uptime       time.Duration         `json:"uptime"`
	Cycles       uint64                `json:"cycles"`
	Actions      uint64                `json:"actions"`
	Events       uint64                `json:"events"`
	BattleCycles uint64                `json:"battle_cycles"`
	Heals        uint64                `json:"heals"`
	LastState    game.StateKind        `json:"last_state"`
	LastHealth   *vision.HealthReading `json:"last_health,omitempty"`
}

type stats struct {
	mu           sync.Mutex
	startedAt    time.Time
	cycles       uint64
	actions      uint64
	events       uint64
	battleCycles uint64
	heals        uint64
	lastState    game.StateKind
	lastHealth   *vision.HealthReading
}

func newStats() *stats {
	return &stats{startedAt: time.Now(), lastState: game.StateUnknown}
}

func (s *stats) observe(res CycleResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
	s.actions += uint64(len(res.Actions))
	s.events += uint64(len(res.Events))
	if res.State == game.StateBattle {
		s.battleCycles++
	}
	for _, a := range res.Actions {
		if a.Kind == game.ActionHeal {
			s.heals++
		}
	}
	s.lastState = res.State
	if res.Health != nil {
		h := *res.Health
		s.lastHealth = &h
	}
}

func (s *stats) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		StartedAt:    s.startedAt,
		Uptime:       time.Since(s.startedAt),
		Cycles:       s.cycles,
		Actions:      s.actions,
		Events:       s.events,
		BattleCycles: s.battleCycles,
		Heals:        s.heals,
		LastState:    s.lastState,
	}
	if s.lastHealth != nil {
		h := *s.lastHealth
		snap.LastHealth = &h
	}
	return snap
}
