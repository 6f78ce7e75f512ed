package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"genshin-autobot/internal/browser"
	"genshin-autobot/internal/capture"
	"genshin-autobot/internal/config"
	"genshin-autobot/internal/detect"
	"genshin-autobot/internal/executor"
	"genshin-autobot/internal/game"
	"genshin-autobot/internal/input"
	"genshin-autobot/internal/observability"
	"genshin-autobot/internal/pipeline"
	"genshin-autobot/internal/tray"
	"genshin-autobot/internal/vision"
)

const heartbeatInterval = 30 * time.Second

func newRunCmd(cfgFile *string) *cobra.Command {
	var (
		noTray    bool
		maxCycles int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the control loop against the configured client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxCycles < 0 {
				return fmt.Errorf("--max-cycles must be >= 0, got %d", maxCycles)
			}
			cfg, err := loadConfig(*cfgFile)
			if err != nil {
				return err
			}
			observability.InitializeLogger(cfg.Log)
			log := observability.L()
			log.Info("starting genshinbot",
				zap.String("version", Version),
				zap.String("capture", cfg.Capture.Backend),
				zap.String("input", cfg.Input.Backend))
			return runBot(cmd.Context(), cfg, noTray, maxCycles, log)
		},
	}
	cmd.Flags().BoolVar(&noTray, "no-tray", false, "run without the system tray")
	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "stop after this many cycles (0 = run until interrupted)")
	return cmd
}

func runBot(ctx context.Context, cfg *config.Config, noTray bool, maxCycles int, log *zap.Logger) error {
	deps, _, cleanup, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	pipe, err := pipeline.New(deps, cfg.Timing, cfg.Debug, log)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var app *tray.App
	if !noTray {
		app = tray.New(pipe, func() {
			if serr := pipe.Stop(); serr != nil && !errors.Is(serr, pipeline.ErrNotRunning) {
				log.Warn("stop from tray failed", zap.Error(serr))
			}
		}, log)
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		if app != nil {
			defer app.Quit()
		}
		if rerr := pipe.Run(gctx, maxCycles); rerr != nil {
			return fatalRuntime{rerr}
		}
		return nil
	})
	g.Go(func() error {
		heartbeat(gctx, pipe, log)
		return nil
	})

	if app != nil {
		// systray needs the main goroutine; this returns after Quit.
		app.Run()
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shut down cleanly")
	return nil
}

// heartbeat logs session counters periodically so long unattended runs leave
// a trace at info level.
func heartbeat(ctx context.Context, pipe *pipeline.Pipeline, log *zap.Logger) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := pipe.Stats()
			log.Info("session stats",
				zap.Uint64("cycles", snap.Cycles),
				zap.Uint64("actions", snap.Actions),
				zap.Uint64("events", snap.Events),
				zap.Uint64("battle_cycles", snap.BattleCycles),
				zap.Uint64("heals", snap.Heals),
				zap.Stringer("last_state", snap.LastState),
				zap.Duration("uptime", snap.Uptime))
		}
	}
}

// closer pairs a shutdown step with a name for the log.
type closer struct {
	name  string
	close func() error
}

// buildDeps assembles the perception and action stack for the configured
// backends. The returned recorder is non-nil only for the recorder input
// backend; probe uses it to report what would have been pressed. On error
// everything built so far is torn down before returning.
func buildDeps(ctx context.Context, cfg *config.Config, log *zap.Logger) (deps pipeline.Deps, rec *input.Recorder, cleanup func(), err error) {
	var closers []closer
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].close(); cerr != nil {
				log.Warn("shutdown step failed",
					zap.String("step", closers[i].name), zap.Error(cerr))
			}
		}
	}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	engine, err := vision.NewTesseractEngine(cfg.OCR.Languages)
	if err != nil {
		return deps, nil, cleanup, fmt.Errorf("init ocr: %w", err)
	}
	closers = append(closers, closer{"ocr engine", engine.Close})

	extractor, err := vision.NewTextExtractor(engine, cfg.OCR.ConfidenceFloor, cfg.OCR.Upscale, log)
	if err != nil {
		return deps, nil, cleanup, err
	}
	health, err := vision.NewHealthParser(extractor, cfg.Health, log)
	if err != nil {
		return deps, nil, cleanup, err
	}

	library, err := vision.LoadTemplates(cfg.Vision.Manifest, cfg.Vision.TemplatesDir, cfg.Vision, log)
	if err != nil {
		return deps, nil, cleanup, fmt.Errorf("load templates: %w", err)
	}
	closers = append(closers, closer{"template library", func() error { library.Close(); return nil }})

	events, err := game.NewEventDetector(vision.NewTemplateMatcher(log), library, cfg.Events, log)
	if err != nil {
		return deps, nil, cleanup, err
	}

	detector, err := detect.New(cfg.Detector, log)
	if err != nil {
		return deps, nil, cleanup, fmt.Errorf("init detector: %w", err)
	}
	closers = append(closers, closer{"detector", detector.Close})

	var sess *browser.Session
	if cfg.Capture.Backend == config.CaptureBrowser || cfg.Input.Backend == config.InputBrowser {
		sess = browser.NewSession(cfg.Browser, log)
		if err = sess.Start(ctx); err != nil {
			return deps, nil, cleanup, fmt.Errorf("start browser: %w", err)
		}
		closers = append(closers, closer{"browser session", sess.Close})
	}

	source, err := newSource(cfg, sess, log)
	if err != nil {
		return deps, nil, cleanup, err
	}
	closers = append(closers, closer{"frame source", source.Close})

	ctrl, rec, err := newController(cfg, sess, log)
	if err != nil {
		return deps, nil, cleanup, err
	}
	closers = append(closers, closer{"input controller", ctrl.Close})

	exec, err := executor.New(ctrl, cfg.Keys, cfg.Timing, log)
	if err != nil {
		return deps, nil, cleanup, err
	}

	deps = pipeline.Deps{
		Source:     source,
		Extractor:  extractor,
		Health:     health,
		Detector:   detector,
		Events:     events,
		Classifier: game.NewStateClassifier(cfg.State, log),
		Engine:     game.NewDecisionEngine(cfg.Keys, log),
		Executor:   exec,
	}
	return deps, rec, cleanup, nil
}

func newSource(cfg *config.Config, sess *browser.Session, log *zap.Logger) (capture.FrameSource, error) {
	switch cfg.Capture.Backend {
	case config.CaptureScreen:
		return capture.NewScreen(cfg.Capture, log)
	case config.CaptureBrowser:
		if sess == nil {
			return nil, fmt.Errorf("browser capture requires a browser session")
		}
		return capture.NewBrowser(sess, log)
	case config.CaptureFile:
		return capture.NewFile(cfg.Capture.FramePath, log)
	default:
		return nil, fmt.Errorf("capture backend %q is not supported", cfg.Capture.Backend)
	}
}

func newController(cfg *config.Config, sess *browser.Session, log *zap.Logger) (input.Controller, *input.Recorder, error) {
	var (
		ctrl input.Controller
		rec  *input.Recorder
		err  error
	)
	switch cfg.Input.Backend {
	case config.InputDesktop:
		ctrl, err = input.NewDesktop(cfg.Input, log)
	case config.InputBrowser:
		if sess == nil {
			return nil, nil, fmt.Errorf("browser input requires a browser session")
		}
		ctrl, err = input.NewBrowser(sess, log)
	case config.InputRecorder:
		rec = input.NewRecorder(cfg.Input.ScreenWidth, cfg.Input.ScreenHeight)
		ctrl = rec
	default:
		err = fmt.Errorf("input backend %q is not supported", cfg.Input.Backend)
	}
	if err != nil {
		return nil, nil, err
	}
	limited, err := input.NewLimited(ctrl, cfg.Input.RatePerSec)
	if err != nil {
		return nil, nil, err
	}
	return limited, rec, nil
}
