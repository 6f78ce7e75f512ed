package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"genshin-autobot/internal/capture"
	"genshin-autobot/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "an explicitly named config file must exist")

	cfg, err = loadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, config.CaptureScreen, cfg.Capture.Backend)
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.CycleInterval)
	assert.Equal(t, "e", cfg.Keys.Skill)
	assert.Equal(t, []string{"rus", "eng"}, cfg.OCR.Languages)
}

func TestLoadConfigFileOverrides(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
timing:
  cycle_interval: 250ms
keys:
  skill: x
ocr:
  languages: [eng]
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Timing.CycleInterval)
	assert.Equal(t, "x", cfg.Keys.Skill)
	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.Equal(t, "q", cfg.Keys.Burst, "untouched keys keep their defaults")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GENSHINBOT_LOG_LEVEL", "warn")
	t.Setenv("GENSHINBOT_OCR_UPSCALE", "3.5")

	cfg, err := loadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3.5, cfg.OCR.Upscale)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "vision:\n  match_threshold: 1.5\n")
	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match_threshold")
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "keys: [unclosed\n"))
	assert.Error(t, err)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(context.Canceled))
	assert.Equal(t, 0, exitCode(fmt.Errorf("shutdown: %w", context.Canceled)))
	assert.Equal(t, 1, exitCode(assert.AnError))
	assert.Equal(t, 2, exitCode(fatalRuntime{assert.AnError}))
	assert.Equal(t, 2, exitCode(fmt.Errorf("loop: %w", fatalRuntime{assert.AnError})))
}

func TestFatalRuntimeUnwraps(t *testing.T) {
	err := fatalRuntime{assert.AnError}
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, assert.AnError.Error(), err.Error())
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "probe")
	assert.Contains(t, names, "version")
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "genshinbot")
	assert.Contains(t, out.String(), Version)
}

func TestNewControllerRecorder(t *testing.T) {
	cfg := config.Default()
	cfg.Input.Backend = config.InputRecorder
	cfg.Input.RatePerSec = 1000

	ctrl, rec, err := newController(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.NoError(t, ctrl.PressKey(context.Background(), "e"))
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "press", events[0].Op)
	assert.Equal(t, "e", events[0].Key)
}

func TestNewControllerRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Input.Backend = "telepathy"
	_, _, err := newController(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewControllerBrowserNeedsSession(t *testing.T) {
	cfg := config.Default()
	cfg.Input.Backend = config.InputBrowser
	_, _, err := newController(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewSourceFile(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Backend = config.CaptureFile
	cfg.Capture.FramePath = "frame.png"

	src, err := newSource(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &capture.File{}, src)
}

func TestNewSourceRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Backend = "satellite"
	_, err := newSource(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewSourceBrowserNeedsSession(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Backend = config.CaptureBrowser
	_, err := newSource(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}
