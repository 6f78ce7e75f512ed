package game

import (
	"go.uber.org/zap"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/detect"
	"genshin-autobot/internal/vision"
)

// Decision is one cycle's output: the actions to execute in order, plus the
// battle strategy bookkeeping used for observability.
type Decision struct {
	Actions         []Action `json:"actions"`
	Strategy        Strategy `json:"strategy"`
	StrategyChanged bool     `json:"strategy_changed"`
}

// DecisionEngine maps (state, health, events) to an ordered action list
// using fixed priority rules. It keeps the last chosen strategy across
// cycles purely to report changes; actions are re-emitted every cycle even
// when the strategy is unchanged.
type DecisionEngine struct {
	keys         config.KeyBindings
	lastStrategy Strategy
	log          *zap.Logger
}

// NewDecisionEngine builds the engine with the key bindings it needs to
// resolve symbolic responses like closing the map.
func NewDecisionEngine(keys config.KeyBindings, logger *zap.Logger) *DecisionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionEngine{
		keys:         keys,
		lastStrategy: StrategyNone,
		log:          logger.Named("decide"),
	}
}

// BattleStrategy picks the focus for an enemy set: the highest-threat class
// present decides the whole cycle, a focus is never split across classes.
func BattleStrategy(enemies []detect.Detection) Strategy {
	dominant, ok := detect.Dominant(enemies)
	if !ok {
		return StrategyNone
	}
	switch dominant.Class {
	case detect.Boss:
		return StrategyBossFocus
	case detect.StatusEnemy:
		return StrategyStatusFocus
	default:
		return StrategyNormalFocus
	}
}

// Decide applies the rules in order, each appending to the action list:
//
//  1. Critical health heals first, regardless of everything else.
//  2. Every event gets its mapped response, in the order detected.
//  3. The state contributes its behavior: battle by strategy, map close,
//     explore forward, or nothing.
//
// health is nil when the health bar was unreadable this cycle.
func (e *DecisionEngine) Decide(state GameState, health *vision.HealthReading, events []GameEvent, ready Readiness) Decision {
	var actions []Action

	if health != nil && health.Critical() {
		actions = append(actions, Heal())
	}

	for _, ev := range events {
		switch ev.Kind {
		case EventDungeonInvite, EventDungeonActivate, EventSquadComplete:
			actions = append(actions, ClickAt(ev.Target))
		case EventEnemyDetected:
			// Combat is driven by the state rule below, not per event.
		}
	}

	strategy := StrategyNone
	switch state.Kind {
	case StateBattle:
		strategy = BattleStrategy(state.Enemies)
		actions = append(actions, e.battleActions(strategy, ready)...)
	case StateMap:
		actions = append(actions, PressKey(e.keys.CloseMap))
	case StateExploring:
		actions = append(actions, Move(Forward))
	case StateIdle, StateUnknown:
		actions = append(actions, NoOp())
	}

	changed := strategy != e.lastStrategy
	if changed {
		e.log.Info("strategy changed",
			zap.Stringer("from", e.lastStrategy),
			zap.Stringer("to", strategy))
		e.lastStrategy = strategy
	}

	return Decision{Actions: actions, Strategy: strategy, StrategyChanged: changed}
}

// battleActions emits the combat sequence for a strategy. Boss fights open
// with the burst, status enemies with the skill, and both fall back to a
// plain attack when the opener is on cooldown. Plain enemies get exactly one
// attack per cycle.
func (e *DecisionEngine) battleActions(strategy Strategy, ready Readiness) []Action {
	switch strategy {
	case StrategyBossFocus:
		opener := Attack()
		if ready.BurstReady() {
			opener = Burst()
		} else if ready.SkillReady() {
			opener = Skill()
		}
		return []Action{opener, Attack()}
	case StrategyStatusFocus:
		opener := Attack()
		if ready.SkillReady() {
			opener = Skill()
		}
		return []Action{opener, Attack()}
	case StrategyNormalFocus:
		return []Action{Attack()}
	default:
		return []Action{NoOp()}
	}
}
