package game

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/detect"
	"genshin-autobot/internal/vision"
)

func testBindings() config.KeyBindings {
	return config.KeyBindings{
		Skill:       "e",
		Burst:       "q",
		MoveForward: "w",
		Heal:        "4",
		CloseMap:    "esc",
		Interact:    "f",
	}
}

func enemy(class detect.EnemyClass, conf float64) detect.Detection {
	return detect.Detection{Class: class, Confidence: conf, Box: image.Rect(0, 0, 10, 10)}
}

func battle(enemies ...detect.Detection) GameState {
	return GameState{Kind: StateBattle, Enemies: enemies}
}

func healthAt(current, maximum int) *vision.HealthReading {
	return &vision.HealthReading{Current: current, Maximum: maximum, CriticalBelow: 0.3}
}

func ptr(b bool) *bool { return &b }

func kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestBattleStrategyPriority(t *testing.T) {
	boss := enemy(detect.Boss, 0.7)
	status := enemy(detect.StatusEnemy, 0.8)
	plain := enemy(detect.NormalEnemy, 0.9)

	assert.Equal(t, StrategyBossFocus, BattleStrategy([]detect.Detection{plain, status, boss}))
	assert.Equal(t, StrategyStatusFocus, BattleStrategy([]detect.Detection{plain, status}))
	assert.Equal(t, StrategyNormalFocus, BattleStrategy([]detect.Detection{plain}))
	assert.Equal(t, StrategyNone, BattleStrategy(nil))
}

func TestDecideCriticalHealthHealsFirst(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)
	events := []GameEvent{{Kind: EventSquadComplete, Target: image.Pt(5, 5)}}

	d := e.Decide(battle(enemy(detect.NormalEnemy, 0.6)), healthAt(20, 100), events, Readiness{})

	require.NotEmpty(t, d.Actions)
	assert.Equal(t, ActionHeal, d.Actions[0].Kind)
	assert.Equal(t, []ActionKind{ActionHeal, ActionClickAt, ActionAttack}, kinds(d.Actions))
}

func TestDecideHealthyDoesNotHeal(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)

	d := e.Decide(battle(enemy(detect.NormalEnemy, 0.6)), healthAt(42, 100), nil, Readiness{})
	assert.Equal(t, []ActionKind{ActionAttack}, kinds(d.Actions))
}

func TestDecideSinglePlainEnemyAttacksExactlyOnce(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)

	d := e.Decide(battle(enemy(detect.NormalEnemy, 0.6)), nil, nil, Readiness{})

	assert.Equal(t, []Action{Attack()}, d.Actions)
	assert.Equal(t, StrategyNormalFocus, d.Strategy)
}

func TestDecideBossFocusOpeners(t *testing.T) {
	cases := []struct {
		name  string
		ready Readiness
		want  []ActionKind
	}{
		{"all assumed ready", Readiness{}, []ActionKind{ActionElementalBurst, ActionAttack}},
		{"burst cooling", Readiness{Burst: ptr(false)}, []ActionKind{ActionElementalSkill, ActionAttack}},
		{"everything cooling", Readiness{Burst: ptr(false), Skill: ptr(false)}, []ActionKind{ActionAttack, ActionAttack}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewDecisionEngine(testBindings(), nil)
			d := e.Decide(battle(enemy(detect.Boss, 0.8)), nil, nil, tc.ready)
			assert.Equal(t, tc.want, kinds(d.Actions))
			assert.Equal(t, StrategyBossFocus, d.Strategy)
		})
	}
}

func TestDecideStatusFocusOpeners(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)

	d := e.Decide(battle(enemy(detect.StatusEnemy, 0.8)), nil, nil, Readiness{})
	assert.Equal(t, []ActionKind{ActionElementalSkill, ActionAttack}, kinds(d.Actions))

	d = e.Decide(battle(enemy(detect.StatusEnemy, 0.8)), nil, nil, Readiness{Skill: ptr(false)})
	assert.Equal(t, []ActionKind{ActionAttack, ActionAttack}, kinds(d.Actions))
}

func TestDecideMapCloses(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)

	d := e.Decide(GameState{Kind: StateMap}, nil, nil, Readiness{})
	assert.Equal(t, []Action{PressKey("esc")}, d.Actions)
}

func TestDecideExploringMovesForward(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)

	d := e.Decide(GameState{Kind: StateExploring}, nil, nil, Readiness{})
	assert.Equal(t, []Action{Move(Forward)}, d.Actions)
}

func TestDecideIdleAndUnknownDoNothing(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)

	for _, kind := range []StateKind{StateIdle, StateUnknown} {
		d := e.Decide(GameState{Kind: kind}, nil, nil, Readiness{})
		assert.Equal(t, []Action{NoOp()}, d.Actions, kind.String())
	}
}

func TestDecideEventResponsesKeepDetectionOrder(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)
	events := []GameEvent{
		{Kind: EventDungeonInvite, Target: image.Pt(10, 10)},
		{Kind: EventDungeonActivate, Target: image.Pt(20, 20)},
		{Kind: EventSquadComplete, Target: image.Pt(30, 30)},
	}

	d := e.Decide(GameState{Kind: StateExploring}, nil, events, Readiness{})

	require.Len(t, d.Actions, 4)
	assert.Equal(t, ClickAt(image.Pt(10, 10)), d.Actions[0])
	assert.Equal(t, ClickAt(image.Pt(20, 20)), d.Actions[1])
	assert.Equal(t, ClickAt(image.Pt(30, 30)), d.Actions[2])
	assert.Equal(t, Move(Forward), d.Actions[3])
}

func TestDecideEnemyEventAddsNoExtraCombat(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)
	dets := []detect.Detection{enemy(detect.NormalEnemy, 0.6)}
	events := []GameEvent{{Kind: EventEnemyDetected, Enemies: dets}}

	d := e.Decide(battle(dets...), nil, events, Readiness{})
	assert.Equal(t, []Action{Attack()}, d.Actions)
}

func TestDecideReportsStrategyChanges(t *testing.T) {
	e := NewDecisionEngine(testBindings(), nil)

	d := e.Decide(battle(enemy(detect.Boss, 0.8)), nil, nil, Readiness{})
	assert.True(t, d.StrategyChanged)
	assert.Equal(t, StrategyBossFocus, d.Strategy)

	d = e.Decide(battle(enemy(detect.Boss, 0.8)), nil, nil, Readiness{})
	assert.False(t, d.StrategyChanged)

	d = e.Decide(GameState{Kind: StateExploring}, nil, nil, Readiness{})
	assert.True(t, d.StrategyChanged)
	assert.Equal(t, StrategyNone, d.Strategy)
}
