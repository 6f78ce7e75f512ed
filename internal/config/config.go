// Package config defines the typed configuration tree for the bot.
//
// Values come from config.yaml (or --config), overridable through
// GENSHINBOT_* environment variables. Defaults are registered here so the
// bot runs against a stock 1920x1080 client with no config file at all.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Capture backends.
const (
	CaptureScreen  = "screen"
	CaptureBrowser = "browser"
	CaptureFile    = "file"
)

// Input backends.
const (
	InputDesktop  = "desktop"
	InputBrowser  = "browser"
	InputRecorder = "recorder"
)

// Config is the root of the configuration tree.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr"`
	Vision   VisionConfig   `mapstructure:"vision" yaml:"vision"`
	Health   HealthConfig   `mapstructure:"health" yaml:"health"`
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector"`
	Events   EventsConfig   `mapstructure:"events" yaml:"events"`
	State    StateConfig    `mapstructure:"state" yaml:"state"`
	Input    InputConfig    `mapstructure:"input" yaml:"input"`
	Keys     KeyBindings    `mapstructure:"keys" yaml:"keys"`
	Timing   TimingConfig   `mapstructure:"timing" yaml:"timing"`
	Debug    DebugConfig    `mapstructure:"debug" yaml:"debug"`
}

// LogConfig controls the console/file logger.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// RegionConfig is an absolute pixel rectangle on the capture surface.
type RegionConfig struct {
	Left   int `mapstructure:"left" yaml:"left"`
	Top    int `mapstructure:"top" yaml:"top"`
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// CaptureConfig selects and tunes the frame source.
type CaptureConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	Display       int           `mapstructure:"display" yaml:"display"`
	Region        *RegionConfig `mapstructure:"region" yaml:"region,omitempty"`
	FramePath     string        `mapstructure:"frame_path" yaml:"frame_path"`
	Retries       int           `mapstructure:"retries" yaml:"retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
}

// BrowserConfig tunes the chromedp session used by the browser capture and
// input backends (cloud-hosted clients).
type BrowserConfig struct {
	URL          string `mapstructure:"url" yaml:"url"`
	Headless     bool   `mapstructure:"headless" yaml:"headless"`
	WindowWidth  int    `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int    `mapstructure:"window_height" yaml:"window_height"`
	CookieFile   string `mapstructure:"cookie_file" yaml:"cookie_file"`
	CanvasID     string `mapstructure:"canvas_id" yaml:"canvas_id"`
}

// OCRConfig tunes the text extractor.
type OCRConfig struct {
	Languages       []string `mapstructure:"languages" yaml:"languages"`
	ConfidenceFloor float64  `mapstructure:"confidence_floor" yaml:"confidence_floor"`
	Upscale         float64  `mapstructure:"upscale" yaml:"upscale"`
}

// VisionConfig tunes template matching and names the template manifest.
type VisionConfig struct {
	MatchThreshold float64 `mapstructure:"match_threshold" yaml:"match_threshold"`
	BandCenter     float64 `mapstructure:"band_center" yaml:"band_center"`
	BandTolerance  float64 `mapstructure:"band_tolerance" yaml:"band_tolerance"`
	TemplatesDir   string  `mapstructure:"templates_dir" yaml:"templates_dir"`
	Manifest       string  `mapstructure:"manifest" yaml:"manifest"`
}

// FracRegion is a rectangle in frame-size fractions, resolution independent.
type FracRegion struct {
	X1 float64 `mapstructure:"x1" yaml:"x1"`
	Y1 float64 `mapstructure:"y1" yaml:"y1"`
	X2 float64 `mapstructure:"x2" yaml:"x2"`
	Y2 float64 `mapstructure:"y2" yaml:"y2"`
}

// HealthConfig places the health bar readout.
type HealthConfig struct {
	Region            FracRegion `mapstructure:"region" yaml:"region"`
	CriticalThreshold float64    `mapstructure:"critical_threshold" yaml:"critical_threshold"`
}

// DetectorConfig tunes the enemy object detector. An empty model path
// disables detection entirely.
type DetectorConfig struct {
	Model               string  `mapstructure:"model" yaml:"model"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	NMSThreshold        float64 `mapstructure:"nms_threshold" yaml:"nms_threshold"`
	InputSize           int     `mapstructure:"input_size" yaml:"input_size"`
}

// EventsConfig tunes text-event recognition.
type EventsConfig struct {
	SquadKeywords []string `mapstructure:"squad_keywords" yaml:"squad_keywords"`
	ExactCentroid bool     `mapstructure:"exact_centroid" yaml:"exact_centroid"`
}

// PixelRegion is an absolute pixel rectangle inside a frame.
type PixelRegion struct {
	X1 int `mapstructure:"x1" yaml:"x1"`
	Y1 int `mapstructure:"y1" yaml:"y1"`
	X2 int `mapstructure:"x2" yaml:"x2"`
	Y2 int `mapstructure:"y2" yaml:"y2"`
}

// StateConfig tunes the state classifier.
type StateConfig struct {
	MapRegion     PixelRegion `mapstructure:"map_region" yaml:"map_region"`
	MapBrightness float64     `mapstructure:"map_brightness" yaml:"map_brightness"`
}

// InputConfig selects and bounds the input controller.
type InputConfig struct {
	Backend      string  `mapstructure:"backend" yaml:"backend"`
	RatePerSec   float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
	ScreenWidth  int     `mapstructure:"screen_width" yaml:"screen_width"`
	ScreenHeight int     `mapstructure:"screen_height" yaml:"screen_height"`
}

// KeyBindings maps decisions to client keys.
type KeyBindings struct {
	Skill       string `mapstructure:"skill" yaml:"skill"`
	Burst       string `mapstructure:"burst" yaml:"burst"`
	MoveForward string `mapstructure:"move_forward" yaml:"move_forward"`
	MoveBack    string `mapstructure:"move_back" yaml:"move_back"`
	MoveLeft    string `mapstructure:"move_left" yaml:"move_left"`
	MoveRight   string `mapstructure:"move_right" yaml:"move_right"`
	Heal        string `mapstructure:"heal" yaml:"heal"`
	CloseMap    string `mapstructure:"close_map" yaml:"close_map"`
	Interact    string `mapstructure:"interact" yaml:"interact"`
	Jump        string `mapstructure:"jump" yaml:"jump"`
	Sprint      string `mapstructure:"sprint" yaml:"sprint"`
}

// TimingConfig holds loop pacing and action cooldowns.
type TimingConfig struct {
	CycleInterval        time.Duration `mapstructure:"cycle_interval" yaml:"cycle_interval"`
	ClickDelay           time.Duration `mapstructure:"click_delay" yaml:"click_delay"`
	SkillCooldown        time.Duration `mapstructure:"skill_cooldown" yaml:"skill_cooldown"`
	BurstCooldown        time.Duration `mapstructure:"burst_cooldown" yaml:"burst_cooldown"`
	DodgeCooldown        time.Duration `mapstructure:"dodge_cooldown" yaml:"dodge_cooldown"`
	CharacterSwitchDelay time.Duration `mapstructure:"character_switch_delay" yaml:"character_switch_delay"`
	MaxWait              time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
}

// DebugConfig controls offline inspection output.
type DebugConfig struct {
	SaveFrames bool   `mapstructure:"save_frames" yaml:"save_frames"`
	FramesDir  string `mapstructure:"frames_dir" yaml:"frames_dir"`
}

// SetDefaults registers every default so a bare process still gets a fully
// populated Config from viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("capture.backend", CaptureScreen)
	v.SetDefault("capture.display", 0)
	v.SetDefault("capture.frame_path", "")
	v.SetDefault("capture.retries", 3)
	v.SetDefault("capture.retry_interval", "200ms")

	v.SetDefault("browser.url", "")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.cookie_file", "cookies.json")
	v.SetDefault("browser.canvas_id", "canvas")

	v.SetDefault("ocr.languages", []string{"rus", "eng"})
	v.SetDefault("ocr.confidence_floor", 0.7)
	v.SetDefault("ocr.upscale", 2.0)

	v.SetDefault("vision.match_threshold", 0.8)
	v.SetDefault("vision.band_center", 0.5)
	v.SetDefault("vision.band_tolerance", 0.2)
	v.SetDefault("vision.templates_dir", "templates")
	v.SetDefault("vision.manifest", "templates/manifest.yaml")

	v.SetDefault("health.region.x1", 0.05)
	v.SetDefault("health.region.y1", 0.05)
	v.SetDefault("health.region.x2", 0.35)
	v.SetDefault("health.region.y2", 0.15)
	v.SetDefault("health.critical_threshold", 0.3)

	v.SetDefault("detector.model", "")
	v.SetDefault("detector.confidence_threshold", 0.5)
	v.SetDefault("detector.nms_threshold", 0.4)
	v.SetDefault("detector.input_size", 640)

	v.SetDefault("events.squad_keywords", []string{
		"squad", "отряд", "complete", "завершен", "ready", "готов",
	})
	v.SetDefault("events.exact_centroid", false)

	v.SetDefault("state.map_region.x1", 50)
	v.SetDefault("state.map_region.y1", 50)
	v.SetDefault("state.map_region.x2", 100)
	v.SetDefault("state.map_region.y2", 100)
	v.SetDefault("state.map_brightness", 100)

	v.SetDefault("input.backend", InputDesktop)
	v.SetDefault("input.rate_per_sec", 20)
	v.SetDefault("input.screen_width", 1920)
	v.SetDefault("input.screen_height", 1080)

	v.SetDefault("keys.skill", "e")
	v.SetDefault("keys.burst", "q")
	v.SetDefault("keys.move_forward", "w")
	v.SetDefault("keys.move_back", "s")
	v.SetDefault("keys.move_left", "a")
	v.SetDefault("keys.move_right", "d")
	v.SetDefault("keys.heal", "4")
	v.SetDefault("keys.close_map", "esc")
	v.SetDefault("keys.interact", "f")
	v.SetDefault("keys.jump", "space")
	v.SetDefault("keys.sprint", "shift")

	v.SetDefault("timing.cycle_interval", "100ms")
	v.SetDefault("timing.click_delay", "50ms")
	v.SetDefault("timing.skill_cooldown", "2s")
	v.SetDefault("timing.burst_cooldown", "3s")
	v.SetDefault("timing.dodge_cooldown", "1s")
	v.SetDefault("timing.character_switch_delay", "300ms")
	v.SetDefault("timing.max_wait", "30s")

	v.SetDefault("debug.save_frames", false)
	v.SetDefault("debug.frames_dir", "frames")
}

// Default returns the fully populated default configuration.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate fails fast on configuration that indicates a defect rather than a
// transient condition: out-of-range thresholds, inverted regions, unknown
// backends, missing key bindings.
func (c *Config) Validate() error {
	if err := unitRange("ocr.confidence_floor", c.OCR.ConfidenceFloor); err != nil {
		return err
	}
	if c.OCR.Upscale < 1 {
		return fmt.Errorf("ocr.upscale must be >= 1, got %v", c.OCR.Upscale)
	}
	if len(c.OCR.Languages) == 0 {
		return fmt.Errorf("ocr.languages must name at least one language")
	}
	if err := unitRange("vision.match_threshold", c.Vision.MatchThreshold); err != nil {
		return err
	}
	if err := unitRange("vision.band_center", c.Vision.BandCenter); err != nil {
		return err
	}
	if err := unitRange("vision.band_tolerance", c.Vision.BandTolerance); err != nil {
		return err
	}
	if err := c.Health.Region.validate("health.region"); err != nil {
		return err
	}
	if err := unitRange("health.critical_threshold", c.Health.CriticalThreshold); err != nil {
		return err
	}
	if err := unitRange("detector.confidence_threshold", c.Detector.ConfidenceThreshold); err != nil {
		return err
	}
	if err := unitRange("detector.nms_threshold", c.Detector.NMSThreshold); err != nil {
		return err
	}
	if c.Detector.InputSize <= 0 {
		return fmt.Errorf("detector.input_size must be positive, got %d", c.Detector.InputSize)
	}
	if c.State.MapRegion.X1 >= c.State.MapRegion.X2 || c.State.MapRegion.Y1 >= c.State.MapRegion.Y2 {
		return fmt.Errorf("state.map_region must be a non-empty rectangle")
	}
	switch c.Capture.Backend {
	case CaptureScreen, CaptureBrowser, CaptureFile:
	default:
		return fmt.Errorf("capture.backend %q is not one of screen, browser, file", c.Capture.Backend)
	}
	if c.Capture.Backend == CaptureFile && c.Capture.FramePath == "" {
		return fmt.Errorf("capture.frame_path is required for the file backend")
	}
	if c.Capture.Backend == CaptureBrowser && c.Browser.URL == "" {
		return fmt.Errorf("browser.url is required for the browser capture backend")
	}
	if c.Input.Backend == InputBrowser && c.Browser.URL == "" {
		return fmt.Errorf("browser.url is required for the browser input backend")
	}
	if c.Capture.Retries < 1 {
		return fmt.Errorf("capture.retries must be >= 1, got %d", c.Capture.Retries)
	}
	switch c.Input.Backend {
	case InputDesktop, InputBrowser, InputRecorder:
	default:
		return fmt.Errorf("input.backend %q is not one of desktop, browser, recorder", c.Input.Backend)
	}
	if c.Input.RatePerSec <= 0 {
		return fmt.Errorf("input.rate_per_sec must be positive, got %v", c.Input.RatePerSec)
	}
	if c.Input.ScreenWidth <= 0 || c.Input.ScreenHeight <= 0 {
		return fmt.Errorf("input.screen_width and input.screen_height must be positive")
	}
	if err := c.Keys.validate(); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"timing.cycle_interval": c.Timing.CycleInterval,
		"timing.skill_cooldown": c.Timing.SkillCooldown,
		"timing.burst_cooldown": c.Timing.BurstCooldown,
		"timing.dodge_cooldown": c.Timing.DodgeCooldown,
		"timing.max_wait":       c.Timing.MaxWait,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if c.Timing.ClickDelay < 0 || c.Timing.CharacterSwitchDelay < 0 {
		return fmt.Errorf("timing delays must not be negative")
	}
	return nil
}

func (r FracRegion) validate(name string) error {
	for field, val := range map[string]float64{
		name + ".x1": r.X1, name + ".y1": r.Y1,
		name + ".x2": r.X2, name + ".y2": r.Y2,
	} {
		if err := unitRange(field, val); err != nil {
			return err
		}
	}
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return fmt.Errorf("%s must satisfy x1 < x2 and y1 < y2", name)
	}
	return nil
}

func (k KeyBindings) validate() error {
	for name, key := range map[string]string{
		"keys.skill":        k.Skill,
		"keys.burst":        k.Burst,
		"keys.move_forward": k.MoveForward,
		"keys.move_back":    k.MoveBack,
		"keys.move_left":    k.MoveLeft,
		"keys.move_right":   k.MoveRight,
		"keys.heal":         k.Heal,
		"keys.close_map":    k.CloseMap,
		"keys.interact":     k.Interact,
		"keys.jump":         k.Jump,
		"keys.sprint":       k.Sprint,
	} {
		if key == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	return nil
}

func unitRange(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
	}
	return nil
}
