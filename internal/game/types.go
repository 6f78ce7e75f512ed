// Package game holds the domain vocabulary of the control loop: events,
// states, actions, and the rules that map perception into behavior.
package game

import (
	"encoding/json"
	"fmt"
	"image"

	"genshin-autobot/internal/detect"
)

// EventKind tags a discrete on-screen occurrence.
type EventKind int

const (
	EventDungeonInvite EventKind = iota
	EventDungeonActivate
	EventSquadComplete
	EventEnemyDetected
)

func (k EventKind) String() string {
	switch k {
	case EventDungeonInvite:
		return "dungeon_invite"
	case EventDungeonActivate:
		return "dungeon_activate"
	case EventSquadComplete:
		return "squad_complete"
	case EventEnemyDetected:
		return "enemy_detected"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

func (k EventKind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

// GameEvent is one event visible in the current frame. Target is the click
// coordinate for events answered with a click; Enemies rides along on
// EventEnemyDetected for observability.
type GameEvent struct {
	Kind    EventKind          `json:"kind"`
	Target  image.Point        `json:"target"`
	Text    string             `json:"text,omitempty"`
	Enemies []detect.Detection `json:"enemies,omitempty"`
}

// StateKind tags the single authoritative classification of a cycle.
type StateKind int

const (
	StateBattle StateKind = iota
	StateMap
	StateExploring
	StateIdle
	StateUnknown
)

func (k StateKind) String() string {
	switch k {
	case StateBattle:
		return "battle"
	case StateMap:
		return "map"
	case StateExploring:
		return "exploring"
	case StateIdle:
		return "idle"
	case StateUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

func (k StateKind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

// GameState is the classified situation for one cycle. Enemies is set only
// for StateBattle.
type GameState struct {
	Kind    StateKind          `json:"kind"`
	Enemies []detect.Detection `json:"enemies,omitempty"`
}

// Direction is a movement heading relative to the camera.
type Direction int

const (
	Forward Direction = iota
	Backward
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func (d Direction) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// ActionKind tags one executable behavior.
type ActionKind int

const (
	ActionAttack ActionKind = iota
	ActionElementalSkill
	ActionElementalBurst
	ActionMove
	ActionClickAt
	ActionPressKey
	ActionHeal
	ActionNoOp
)

func (k ActionKind) String() string {
	switch k {
	case ActionAttack:
		return "attack"
	case ActionElementalSkill:
		return "skill"
	case ActionElementalBurst:
		return "burst"
	case ActionMove:
		return "move"
	case ActionClickAt:
		return "click_at"
	case ActionPressKey:
		return "press_key"
	case ActionHeal:
		return "heal"
	case ActionNoOp:
		return "noop"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

func (k ActionKind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

// Action is one step the executor should perform. Only the field matching
// the kind is meaningful.
type Action struct {
	Kind      ActionKind  `json:"kind"`
	Direction Direction   `json:"direction,omitempty"`
	Point     image.Point `json:"point"`
	Key       string      `json:"key,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case ActionMove:
		return fmt.Sprintf("move(%s)", a.Direction)
	case ActionClickAt:
		return fmt.Sprintf("click_at(%d,%d)", a.Point.X, a.Point.Y)
	case ActionPressKey:
		return fmt.Sprintf("press_key(%s)", a.Key)
	default:
		return a.Kind.String()
	}
}

// Attack is a plain weapon attack.
func Attack() Action { return Action{Kind: ActionAttack} }

// Skill triggers the elemental skill.
func Skill() Action { return Action{Kind: ActionElementalSkill} }

// Burst triggers the elemental burst.
func Burst() Action { return Action{Kind: ActionElementalBurst} }

// Move walks one step in the given direction.
func Move(d Direction) Action { return Action{Kind: ActionMove, Direction: d} }

// ClickAt clicks the given frame coordinate.
func ClickAt(p image.Point) Action { return Action{Kind: ActionClickAt, Point: p} }

// PressKey presses a single named key.
func PressKey(key string) Action { return Action{Kind: ActionPressKey, Key: key} }

// Heal switches to the healer and triggers their skill.
func Heal() Action { return Action{Kind: ActionHeal} }

// NoOp does nothing for one cycle.
func NoOp() Action { return Action{Kind: ActionNoOp} }

// Strategy is the battle focus chosen for one cycle.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyBossFocus
	StrategyStatusFocus
	StrategyNormalFocus
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyBossFocus:
		return "boss_focus"
	case StrategyStatusFocus:
		return "status_focus"
	case StrategyNormalFocus:
		return "normal_focus"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func (s Strategy) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// Readiness carries optional skill cooldown observations. The bot has no
// reliable way to read cooldowns off screen yet, so a nil field means the
// signal is unobserved and the decision rules assume the ability is ready.
type Readiness struct {
	Skill *bool
	Burst *bool
}

// SkillReady reports whether the elemental skill can fire.
func (r Readiness) SkillReady() bool { return r.Skill == nil || *r.Skill }

// BurstReady reports whether the elemental burst can fire.
func (r Readiness) BurstReady() bool { return r.Burst == nil || *r.Burst }
