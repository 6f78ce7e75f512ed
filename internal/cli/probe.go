package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/input"
	"genshin-autobot/internal/observability"
	"genshin-autobot/internal/pipeline"
)

// probeReport is the probe's stdout document: one cycle's result plus the
// input the bot would have sent.
type probeReport struct {
	pipeline.CycleResult
	Input []input.Event `json:"input"`
}

func newProbeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [frame.png]",
		Short: "Run one cycle against a saved frame and print what the bot saw and would do",
		Long: `probe runs a single perception-to-action cycle completely offline: the
frame comes from the given file (or capture.frame_path) and input is
recorded instead of sent. The cycle result is printed as JSON on stdout;
logs go to stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgFile)
			if err != nil {
				return err
			}
			// Logs move to stderr so stdout stays parseable JSON.
			observability.Initialize(cfg.Log, zapcore.Lock(os.Stderr))
			log := observability.L()

			probeCfg := *cfg
			probeCfg.Capture.Backend = config.CaptureFile
			if len(args) == 1 {
				probeCfg.Capture.FramePath = args[0]
			}
			if probeCfg.Capture.FramePath == "" {
				return fmt.Errorf("probe needs a frame: pass a path or set capture.frame_path")
			}
			probeCfg.Input.Backend = config.InputRecorder
			probeCfg.Debug.SaveFrames = false

			deps, rec, cleanup, err := buildDeps(cmd.Context(), &probeCfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			pipe, err := pipeline.New(deps, probeCfg.Timing, probeCfg.Debug, log)
			if err != nil {
				return err
			}
			if err := pipe.Start(); err != nil {
				return err
			}
			res, err := pipe.RunCycle(cmd.Context())
			if serr := pipe.Stop(); serr != nil {
				log.Warn("stop after probe failed", zap.Error(serr))
			}
			if err != nil {
				return fatalRuntime{err}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(probeReport{CycleResult: res, Input: rec.Events()})
		},
	}
}
