// Package executor turns decided actions into input controller calls, in
// order, with the pacing the game client needs to register them.
package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/game"
	"genshin-autobot/internal/input"
)

// Executor executes one cycle's action list. It owns the skill and burst
// cooldown bookkeeping: an ability pressed while still cooling is dropped
// rather than wasted, and the same bookkeeping feeds the readiness signal
// back into the next cycle's decision.
type Executor struct {
	ctrl   input.Controller
	keys   config.KeyBindings
	timing config.TimingConfig
	clk    clock
	skill  cooldownGate
	burst  cooldownGate
	log    *zap.Logger
}

// New builds an executor over the given controller.
func New(ctrl input.Controller, keys config.KeyBindings, timing config.TimingConfig, logger *zap.Logger) (*Executor, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("executor needs an input controller")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		ctrl:   ctrl,
		keys:   keys,
		timing: timing,
		clk:    systemClock{},
		skill:  cooldownGate{interval: timing.SkillCooldown},
		burst:  cooldownGate{interval: timing.BurstCooldown},
		log:    logger.Named("executor"),
	}, nil
}

// Readiness reports which gated abilities could fire right now, for the
// decision engine's next cycle.
func (e *Executor) Readiness() game.Readiness {
	now := e.clk.Now()
	skill := e.skill.ready(now)
	burst := e.burst.ready(now)
	return game.Readiness{Skill: &skill, Burst: &burst}
}

// Execute runs the actions in the exact order given. The first controller
// failure aborts the rest; a dropped on-cooldown ability is not a failure.
func (e *Executor) Execute(ctx context.Context, actions []game.Action) error {
	for _, a := range actions {
		e.log.Debug("execute", zap.Stringer("action", a))
		if err := e.execute(ctx, a); err != nil {
			return fmt.Errorf("execute %s: %w", a, err)
		}
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, a game.Action) error {
	switch a.Kind {
	case game.ActionAttack:
		return e.ctrl.Click(ctx)

	case game.ActionElementalSkill:
		if !e.skill.ready(e.clk.Now()) {
			e.log.Debug("skill still cooling, dropped")
			return nil
		}
		if err := e.ctrl.PressKey(ctx, e.keys.Skill); err != nil {
			return err
		}
		e.skill.fire(e.clk.Now())
		return nil

	case game.ActionElementalBurst:
		if !e.burst.ready(e.clk.Now()) {
			e.log.Debug("burst still cooling, dropped")
			return nil
		}
		if err := e.ctrl.PressKey(ctx, e.keys.Burst); err != nil {
			return err
		}
		e.burst.fire(e.clk.Now())
		return nil

	case game.ActionMove:
		key := e.moveKey(a.Direction)
		if err := e.ctrl.HoldKey(ctx, key); err != nil {
			return err
		}
		e.clk.Sleep(e.timing.ClickDelay)
		return e.ctrl.ReleaseKey(ctx, key)

	case game.ActionClickAt:
		if err := e.ctrl.MoveCursor(ctx, a.Point); err != nil {
			return err
		}
		e.clk.Sleep(e.timing.ClickDelay)
		return e.ctrl.Click(ctx)

	case game.ActionPressKey:
		return e.ctrl.PressKey(ctx, a.Key)

	case game.ActionHeal:
		// Switch to the healer, give the client time to change characters,
		// then trigger their skill.
		if err := e.ctrl.PressKey(ctx, e.keys.Heal); err != nil {
			return err
		}
		e.clk.Sleep(e.timing.CharacterSwitchDelay)
		return e.ctrl.PressKey(ctx, e.keys.Skill)

	case game.ActionNoOp:
		return nil

	default:
		return fmt.Errorf("unknown action kind %d", a.Kind)
	}
}

func (e *Executor) moveKey(d game.Direction) string {
	switch d {
	case game.Backward:
		return e.keys.MoveBack
	case game.Left:
		return e.keys.MoveLeft
	case game.Right:
		return e.keys.MoveRight
	default:
		return e.keys.MoveForward
	}
}
