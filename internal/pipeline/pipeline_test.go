package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/detect"
	"genshin-autobot/internal/executor"
	"genshin-autobot/internal/game"
	"genshin-autobot/internal/input"
	"genshin-autobot/internal/vision"
)

func darkFrame(t *testing.T, w, h int) vision.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	f, err := vision.NewFrame(img)
	require.NoError(t, err)
	return f
}

func quadAt(x1, y1, x2, y2 int) [4]image.Point {
	return [4]image.Point{{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2}}
}

type stubSource struct {
	frame vision.Frame
	err   error
}

func (s *stubSource) Capture(context.Context) (vision.Frame, error) {
	if s.err != nil {
		return vision.Frame{}, s.err
	}
	return s.frame, nil
}

func (s *stubSource) Close() error { return nil }

type stubEngine struct {
	spans []vision.RawSpan
}

func (s *stubEngine) ReadText(image.Image) ([]vision.RawSpan, error) { return s.spans, nil }

func (s *stubEngine) Close() error { return nil }

type stubDetector struct {
	dets []detect.Detection
	err  error
}

func (s *stubDetector) Detect(vision.Frame) ([]detect.Detection, error) { return s.dets, s.err }

func (s *stubDetector) Close() error { return nil }

func testTiming() config.TimingConfig {
	return config.TimingConfig{
		CycleInterval: time.Millisecond,
		SkillCooldown: 2 * time.Second,
		BurstCooldown: 3 * time.Second,
		DodgeCooldown: time.Second,
	}
}

func testKeys() config.KeyBindings {
	return config.KeyBindings{
		Skill: "e", Burst: "q",
		MoveForward: "w", MoveBack: "s", MoveLeft: "a", MoveRight: "d",
		Heal: "4", CloseMap: "esc", Interact: "f", Jump: "space", Sprint: "shift",
	}
}

type fixture struct {
	pipe     *Pipeline
	source   *stubSource
	engine   *stubEngine
	detector *stubDetector
	recorder *input.Recorder
}

func newFixture(t *testing.T, debug config.DebugConfig) *fixture {
	t.Helper()
	nop := zap.NewNop()
	fx := &fixture{
		source:   &stubSource{frame: darkFrame(t, 200, 100)},
		engine:   &stubEngine{},
		detector: &stubDetector{},
		recorder: input.NewRecorder(1920, 1080),
	}

	extractor, err := vision.NewTextExtractor(fx.engine, 0.7, 1.0, nop)
	require.NoError(t, err)
	health, err := vision.NewHealthParser(extractor, config.HealthConfig{
		Region:            config.FracRegion{X1: 0.05, Y1: 0.05, X2: 0.35, Y2: 0.15},
		CriticalThreshold: 0.3,
	}, nop)
	require.NoError(t, err)
	lib, err := vision.LoadTemplates("", "", config.VisionConfig{
		MatchThreshold: 0.8, BandCenter: 0.5, BandTolerance: 0.25,
	}, nop)
	require.NoError(t, err)
	t.Cleanup(lib.Close)
	events, err := game.NewEventDetector(vision.NewTemplateMatcher(nop), lib, config.EventsConfig{
		SquadKeywords: []string{"squad", "отряд", "готов"},
	}, nop)
	require.NoError(t, err)
	exec, err := executor.New(fx.recorder, testKeys(), testTiming(), nop)
	require.NoError(t, err)

	pipe, err := New(Deps{
		Source:    fx.source,
		Extractor: extractor,
		Health:    health,
		Detector:  fx.detector,
		Events:    events,
		Classifier: game.NewStateClassifier(config.StateConfig{
			MapRegion:     config.PixelRegion{X1: 50, Y1: 50, X2: 100, Y2: 100},
			MapBrightness: 100,
		}, nop),
		Engine:   game.NewDecisionEngine(testKeys(), nop),
		Executor: exec,
	}, testTiming(), debug, nop)
	require.NoError(t, err)
	fx.pipe = pipe
	return fx
}

func opsOf(rec *input.Recorder) []string {
	var ops []string
	for _, ev := range rec.Events() {
		s := ev.Op
		if ev.Key != "" {
			s += ":" + ev.Key
		}
		ops = append(ops, s)
	}
	return ops
}

func TestLifecycleSentinels(t *testing.T) {
	fx := newFixture(t, config.DebugConfig{})

	assert.Equal(t, StatusStopped, fx.pipe.Status())
	_, err := fx.pipe.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Empty(t, fx.recorder.Events(), "a rejected cycle must not touch input")

	require.NoError(t, fx.pipe.Start())
	assert.Equal(t, StatusRunning, fx.pipe.Status())
	assert.ErrorIs(t, fx.pipe.Start(), ErrAlreadyRunning)

	require.NoError(t, fx.pipe.Stop())
	assert.Equal(t, StatusStopped, fx.pipe.Status())
	assert.ErrorIs(t, fx.pipe.Stop(), ErrNotRunning)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "stopped", StatusStopped.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestRunCycleEndToEnd(t *testing.T) {
	fx := newFixture(t, config.DebugConfig{})
	fx.engine.spans = []vision.RawSpan{
		{Text: "812/1500", Confidence: 0.9, Quad: quadAt(10, 6, 60, 14)},
	}
	fx.detector.dets = []detect.Detection{
		{Class: detect.NormalEnemy, Confidence: 0.6, Box: image.Rect(100, 40, 140, 80)},
	}

	require.NoError(t, fx.pipe.Start())
	res, err := fx.pipe.RunCycle(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, uint64(1), res.Sequence)
	assert.Equal(t, game.StateBattle, res.State)
	require.NotNil(t, res.Health)
	assert.Equal(t, 812, res.Health.Current)
	assert.Equal(t, 1500, res.Health.Maximum)
	assert.Equal(t, 1, res.TextCount)
	require.Len(t, res.Events, 1)
	assert.Equal(t, game.EventEnemyDetected, res.Events[0].Kind)
	assert.Equal(t, game.StrategyNormalFocus, res.Strategy)
	assert.True(t, res.StrategyChanged)
	assert.Equal(t, []game.Action{game.Attack()}, res.Actions)
	assert.Equal(t, []string{"click"}, opsOf(fx.recorder))
}

func TestRunCycleQuietFrameExplores(t *testing.T) {
	fx := newFixture(t, config.DebugConfig{})

	require.NoError(t, fx.pipe.Start())
	res, err := fx.pipe.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, game.StateExploring, res.State)
	assert.Nil(t, res.Health)
	assert.Empty(t, res.Events)
	assert.Equal(t, game.StrategyNone, res.Strategy)
	assert.Equal(t, []game.Action{game.Move(game.Forward)}, res.Actions)
	assert.Equal(t, []string{"hold:w", "release:w"}, opsOf(fx.recorder))
}

func TestRunCycleCriticalHealthHeals(t *testing.T) {
	fx := newFixture(t, config.DebugConfig{})
	fx.engine.spans = []vision.RawSpan{
		{Text: "20/100", Confidence: 0.95, Quad: quadAt(10, 6, 40, 14)},
	}
	fx.detector.dets = []detect.Detection{
		{Class: detect.NormalEnemy, Confidence: 0.8, Box: image.Rect(100, 40, 140, 80)},
	}

	require.NoError(t, fx.pipe.Start())
	res, err := fx.pipe.RunCycle(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.Health)
	assert.True(t, res.Health.Critical())
	require.Len(t, res.Actions, 2)
	assert.Equal(t, game.ActionHeal, res.Actions[0].Kind)
	assert.Equal(t, game.ActionAttack, res.Actions[1].Kind)
	assert.Equal(t, []string{"press:4", "press:e", "click"}, opsOf(fx.recorder))
	assert.Equal(t, uint64(1), fx.pipe.Stats().Heals)
}

func TestStatsAccumulateAcrossCycles(t *testing.T) {
	fx := newFixture(t, config.DebugConfig{})
	fx.detector.dets = []detect.Detection{
		{Class: detect.NormalEnemy, Confidence: 0.7, Box: image.Rect(100, 40, 140, 80)},
	}

	require.NoError(t, fx.pipe.Start())
	first, err := fx.pipe.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, first.StrategyChanged)
	second, err := fx.pipe.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, second.StrategyChanged)
	assert.Equal(t, uint64(2), second.Sequence)

	snap := fx.pipe.Stats()
	assert.Equal(t, uint64(2), snap.Cycles)
	assert.Equal(t, uint64(2), snap.BattleCycles)
	assert.Equal(t, uint64(2), snap.Actions)
	assert.Equal(t, uint64(2), snap.Events)
	assert.Equal(t, game.StateBattle, snap.LastState)
}

func TestStartResetsSession(t *testing.T) {
	fx := newFixture(t, config.DebugConfig{})

	require.NoError(t, fx.pipe.Start())
	_, err := fx.pipe.RunCycle(context.Background())
	require.NoError(t, err)
	require.NoError(t, fx.pipe.Stop())

	require.NoError(t, fx.pipe.Start())
	res, err := fx.pipe.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Sequence)
	assert.Equal(t, uint64(1), fx.pipe.Stats().Cycles)
}

func TestRunStopsAtCycleBoundary(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFixture(t, config.DebugConfig{})

	done := make(chan error, 1)
	go func() { done <- fx.pipe.Run(context.Background(), 0) }()

	require.Eventually(t, func() bool {
		return fx.pipe.Stats().Cycles >= 1
	}, 2*time.Second, time.Millisecond, "loop never completed a cycle")

	require.NoError(t, fx.pipe.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err, "external stop is a normal shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("run did not observe the stop at a cycle boundary")
	}
	assert.Equal(t, StatusStopped, fx.pipe.Status())
}

func TestRunHonorsContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFixture(t, config.DebugConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, fx.pipe.Run(ctx, 0))
	assert.Equal(t, StatusStopped, fx.pipe.Status())
}

func TestRunHonorsCycleCap(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFixture(t, config.DebugConfig{})

	require.NoError(t, fx.pipe.Run(context.Background(), 3))
	assert.Equal(t, uint64(3), fx.pipe.Stats().Cycles)
	assert.Equal(t, StatusStopped, fx.pipe.Status(), "pipeline must stop when the cap is reached")
}

func TestRunRejectsNegativeCycleCap(t *testing.T) {
	fx := newFixture(t, config.DebugConfig{})

	assert.Error(t, fx.pipe.Run(context.Background(), -1))
	assert.Equal(t, StatusStopped, fx.pipe.Status())
	assert.Zero(t, fx.pipe.Stats().Cycles, "a rejected run must not cycle")
}

func TestRunPropagatesFatalCycleFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFixture(t, config.DebugConfig{})
	fx.source.err = assert.AnError

	err := fx.pipe.Run(context.Background(), 0)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, StatusStopped, fx.pipe.Status(), "pipeline must stop on every exit path")
}

func TestRunRejectsDoubleStart(t *testing.T) {
	fx := newFixture(t, config.DebugConfig{})
	require.NoError(t, fx.pipe.Start())
	defer func() { require.NoError(t, fx.pipe.Stop()) }()

	assert.ErrorIs(t, fx.pipe.Run(context.Background(), 0), ErrAlreadyRunning)
}

func TestPauseSkipsCycles(t *testing.T) {
	defer goleak.VerifyNone(t)
	fx := newFixture(t, config.DebugConfig{})

	done := make(chan error, 1)
	go func() { done <- fx.pipe.Run(context.Background(), 0) }()

	require.Eventually(t, func() bool {
		return fx.pipe.Stats().Cycles >= 1
	}, 2*time.Second, time.Millisecond)

	fx.pipe.Pause()
	assert.True(t, fx.pipe.Paused())
	time.Sleep(25 * time.Millisecond) // drain any in-flight cycle
	before := fx.pipe.Stats().Cycles
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, fx.pipe.Stats().Cycles, "paused loop must not cycle")

	fx.pipe.Resume()
	assert.False(t, fx.pipe.Paused())
	require.Eventually(t, func() bool {
		return fx.pipe.Stats().Cycles > before
	}, 2*time.Second, time.Millisecond, "resumed loop never cycled")

	require.NoError(t, fx.pipe.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not exit after stop")
	}
}

func TestFrameDumpWritten(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	fx := newFixture(t, config.DebugConfig{SaveFrames: true, FramesDir: dir})

	require.NoError(t, fx.pipe.Start())
	_, err := fx.pipe.RunCycle(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "cycle_000001.png"))
	assert.NoError(t, err, "frame dump missing")
}

func TestNewValidatesDeps(t *testing.T) {
	fx := newFixture(t, config.DebugConfig{})
	deps := fx.pipe.deps

	for name, mutate := range map[string]func(*Deps){
		"source":    func(d *Deps) { d.Source = nil },
		"extractor": func(d *Deps) { d.Extractor = nil },
		"health":    func(d *Deps) { d.Health = nil },
		"detector":  func(d *Deps) { d.Detector = nil },
		"events":    func(d *Deps) { d.Events = nil },
		"state":     func(d *Deps) { d.Classifier = nil },
		"engine":    func(d *Deps) { d.Engine = nil },
		"executor":  func(d *Deps) { d.Executor = nil },
	} {
		t.Run(name, func(t *testing.T) {
			broken := deps
			mutate(&broken)
			_, err := New(broken, testTiming(), config.DebugConfig{}, zap.NewNop())
			assert.Error(t, err)
		})
	}
}
