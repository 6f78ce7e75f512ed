package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"genshin-autobot/internal/config"
	"genshin-autobot/internal/vision"
)

// Screen grabs frames from a local display. An optional region restricts the
// grab to the client window instead of the whole desktop.
type Screen struct {
	display  int
	region   *image.Rectangle
	attempts int
	interval time.Duration
	log      *zap.Logger
}

// NewScreen builds a display-backed frame source. The display index is not
// probed here; a missing display surfaces as ErrUnavailable on the first
// Capture.
func NewScreen(cfg config.CaptureConfig, logger *zap.Logger) (*Screen, error) {
	if cfg.Display < 0 {
		return nil, fmt.Errorf("capture display must not be negative, got %d", cfg.Display)
	}
	s := &Screen{
		display:  cfg.Display,
		attempts: cfg.Retries,
		interval: cfg.RetryInterval,
		log:      logger,
	}
	if s.attempts < 1 {
		s.attempts = 1
	}
	if cfg.Region != nil {
		if cfg.Region.Width <= 0 || cfg.Region.Height <= 0 {
			return nil, fmt.Errorf("capture region must have positive size, got %dx%d",
				cfg.Region.Width, cfg.Region.Height)
		}
		r := image.Rect(cfg.Region.Left, cfg.Region.Top,
			cfg.Region.Left+cfg.Region.Width, cfg.Region.Top+cfg.Region.Height)
		s.region = &r
	}
	return s, nil
}

// Capture grabs one frame, retrying transient grab failures before giving up
// with ErrUnavailable.
func (s *Screen) Capture(ctx context.Context) (vision.Frame, error) {
	var img *image.RGBA
	backoff := retry.WithMaxRetries(uint64(s.attempts-1), retry.NewConstant(s.interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		grabbed, err := s.grab()
		if err != nil {
			s.log.Debug("screen grab failed, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		img = grabbed
		return nil
	})
	if err != nil {
		return vision.Frame{}, fmt.Errorf("%w: display %d: %v", ErrUnavailable, s.display, err)
	}
	return vision.NewFrame(img)
}

func (s *Screen) grab() (*image.RGBA, error) {
	if s.region != nil {
		return screenshot.CaptureRect(*s.region)
	}
	return screenshot.CaptureDisplay(s.display)
}

func (s *Screen) Close() error { return nil }
