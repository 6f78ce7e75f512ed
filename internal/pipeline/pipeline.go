// Package pipeline drives the perception-to-action control loop: capture a
// frame, read text and enemies out of it, classify the situation, decide, and
// push synthetic input back into the client.
//
// The loop is deliberately single-threaded. One cycle runs at a time, stop
// requests take effect at cycle boundaries, and an in-flight cycle always
// completes before the loop winds down.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vcaesar/imgo"
	"go.uber.org/zap"

	"genshin-autobot/internal/capture"
	"genshin-autobot/internal/config"
	"genshin-autobot/internal/detect"
	"genshin-autobot/internal/executor"
	"genshin-autobot/internal/game"
	"genshin-autobot/internal/vision"
)

// Lifecycle sentinels. Both signal caller defects, not runtime conditions.
var (
	ErrAlreadyRunning = errors.New("pipeline already running")
	ErrNotRunning     = errors.New("pipeline not running")
)

// Status is the pipeline lifecycle state.
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Deps are the collaborators a pipeline is assembled from. All of them are
// required.
type Deps struct {
	Source     capture.FrameSource
	Extractor  *vision.TextExtractor
	Health     *vision.HealthParser
	Detector   detect.Detector
	Events     *game.EventDetector
	Classifier *game.StateClassifier
	Engine     *game.DecisionEngine
	Executor   *executor.Executor
}

func (d Deps) validate() error {
	switch {
	case d.Source == nil:
		return fmt.Errorf("pipeline requires a frame source")
	case d.Extractor == nil:
		return fmt.Errorf("pipeline requires a text extractor")
	case d.Health == nil:
		return fmt.Errorf("pipeline requires a health parser")
	case d.Detector == nil:
		return fmt.Errorf("pipeline requires an enemy detector")
	case d.Events == nil:
		return fmt.Errorf("pipeline requires an event detector")
	case d.Classifier == nil:
		return fmt.Errorf("pipeline requires a state classifier")
	case d.Engine == nil:
		return fmt.Errorf("pipeline requires a decision engine")
	case d.Executor == nil:
		return fmt.Errorf("pipeline requires an action executor")
	}
	return nil
}

// Pipeline owns the control loop lifecycle and the per-session counters.
type Pipeline struct {
	deps   Deps
	timing config.TimingConfig
	debug  config.DebugConfig
	log    *zap.Logger

	mu     sync.Mutex
	status Status
	paused bool
	seq    uint64
	stats  *stats
}

// New assembles a stopped pipeline and prepares the frame dump directory when
// saving is enabled.
func New(deps Deps, timing config.TimingConfig, debug config.DebugConfig, logger *zap.Logger) (*Pipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if debug.SaveFrames {
		if debug.FramesDir == "" {
			return nil, fmt.Errorf("debug.frames_dir is required when debug.save_frames is on")
		}
		if err := os.MkdirAll(debug.FramesDir, 0o755); err != nil {
			return nil, fmt.Errorf("create frame dump dir: %w", err)
		}
	}
	return &Pipeline{
		deps:   deps,
		timing: timing,
		debug:  debug,
		log:    logger.Named("pipeline"),
		stats:  newStats(),
	}, nil
}

// Status reports the current lifecycle state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Start transitions the pipeline to running and resets session counters.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusRunning {
		return ErrAlreadyRunning
	}
	p.status = StatusRunning
	p.paused = false
	p.seq = 0
	p.stats = newStats()
	p.log.Info("pipeline started")
	return nil
}

// Stop requests a stop. An in-flight cycle finishes; the loop exits at the
// next boundary.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusRunning {
		return ErrNotRunning
	}
	p.status = StatusStopped
	p.log.Info("pipeline stopped", zap.Uint64("cycles", p.seq))
	return nil
}

// Pause keeps the loop alive but skips cycles until Resume. Driven from the
// tray menu.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		p.paused = true
		p.log.Info("pipeline paused")
	}
}

// Resume lifts a pause.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		p.log.Info("pipeline resumed")
	}
}

// Paused reports whether cycles are currently being skipped.
func (p *Pipeline) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Stats returns a snapshot of the session counters.
func (p *Pipeline) Stats() Snapshot {
	p.mu.Lock()
	st := p.stats
	p.mu.Unlock()
	return st.snapshot()
}

// RunCycle executes exactly one perception-to-action cycle. Calling it on a
// stopped pipeline is a caller defect and performs no perception or input.
// Cycles are not safe to run concurrently; Run is the only production driver.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleResult, error) {
	p.mu.Lock()
	if p.status != StatusRunning {
		p.mu.Unlock()
		return CycleResult{}, ErrNotRunning
	}
	p.seq++
	seq := p.seq
	st := p.stats
	p.mu.Unlock()

	started := time.Now()

	frame, err := p.deps.Source.Capture(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("capture frame: %w", err)
	}
	texts, err := p.deps.Extractor.Extract(frame)
	if err != nil {
		return CycleResult{}, fmt.Errorf("extract text: %w", err)
	}
	var health *vision.HealthReading
	reading, ok, err := p.deps.Health.Parse(frame)
	if err != nil {
		return CycleResult{}, fmt.Errorf("parse health: %w", err)
	}
	if ok {
		health = &reading
	}
	enemies, err := p.deps.Detector.Detect(frame)
	if err != nil {
		return CycleResult{}, fmt.Errorf("detect enemies: %w", err)
	}
	events, err := p.deps.Events.Detect(frame, texts, enemies)
	if err != nil {
		return CycleResult{}, fmt.Errorf("detect events: %w", err)
	}
	state := p.deps.Classifier.Classify(frame, enemies)
	decision := p.deps.Engine.Decide(state, health, events, p.deps.Executor.Readiness())
	if err := p.deps.Executor.Execute(ctx, decision.Actions); err != nil {
		return CycleResult{}, fmt.Errorf("execute actions: %w", err)
	}

	res := CycleResult{
		ID:              uuid.NewString(),
		Sequence:        seq,
		StartedAt:       started,
		Duration:        time.Since(started),
		State:           state.Kind,
		Enemies:         enemies,
		Health:          health,
		TextCount:       len(texts),
		Events:          events,
		Strategy:        decision.Strategy,
		StrategyChanged: decision.StrategyChanged,
		Actions:         decision.Actions,
	}
	st.observe(res)
	if p.debug.SaveFrames {
		p.dumpFrame(frame, seq)
	}

	p.log.Debug("cycle complete",
		zap.Uint64("sequence", seq),
		zap.Stringer("state", res.State),
		zap.Int("enemies", len(enemies)),
		zap.Int("events", len(events)),
		zap.Int("actions", len(res.Actions)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// Run starts the pipeline and drives cycles until the context is canceled, a
// stop is requested, the cycle cap is reached, or a cycle fails. maxCycles 0
// means unbounded; negative values are rejected. Cancellation, stops and the
// cap are normal shutdowns; a cycle failure is fatal and is returned. The
// pipeline is stopped on every exit path.
func (p *Pipeline) Run(ctx context.Context, maxCycles int) error {
	if maxCycles < 0 {
		return fmt.Errorf("max cycles must be >= 0, got %d", maxCycles)
	}
	if err := p.Start(); err != nil {
		return err
	}
	defer func() {
		if err := p.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
			p.log.Warn("stop after run failed", zap.Error(err))
		}
	}()

	p.log.Info("control loop running",
		zap.Duration("cycle_interval", p.timing.CycleInterval),
		zap.Int("max_cycles", maxCycles))
	completed := 0
	for {
		if ctx.Err() != nil || p.Status() != StatusRunning {
			return nil
		}
		if !p.Paused() {
			if _, err := p.RunCycle(ctx); err != nil {
				if errors.Is(err, ErrNotRunning) || ctx.Err() != nil {
					return nil
				}
				p.log.Error("cycle failed", zap.Error(err))
				return err
			}
			completed++
			if maxCycles > 0 && completed >= maxCycles {
				p.log.Info("cycle cap reached", zap.Int("cycles", completed))
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.timing.CycleInterval):
		}
	}
}

// dumpFrame writes the cycle's frame to the dump directory. Failures are
// logged and swallowed; inspection output never kills the loop.
func (p *Pipeline) dumpFrame(frame vision.Frame, seq uint64) {
	path := filepath.Join(p.debug.FramesDir, fmt.Sprintf("cycle_%06d.png", seq))
	if err := imgo.Save(path, frame.Image()); err != nil {
		p.log.Warn("frame dump failed", zap.String("path", path), zap.Error(err))
	}
}
