// Package browser drives a chromedp session for cloud-hosted game clients.
// It owns the browser lifecycle and exposes the two primitives the rest of
// the bot needs: viewport screenshots and JavaScript evaluation.
package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	_ "image/png"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"genshin-autobot/internal/config"
)

const (
	navigateTimeout   = 60 * time.Second
	evalTimeout       = 2 * time.Second
	screenshotTimeout = 5 * time.Second
)

// evalScript is injected once after navigation. Input synthesis dispatches
// events straight to the page, so it works while the window is unfocused.
const evalScript = `
function keyboardEvent(keyMode, key) {
    switch (keyMode) {
        case 'press':
            dispatchEvent(new KeyboardEvent('keydown', { key }))
            dispatchEvent(new KeyboardEvent('keyup', { key }))
            break;
        case 'hold':
            dispatchEvent(new KeyboardEvent('keydown', { key }))
            break;
        case 'release':
            dispatchEvent(new KeyboardEvent('keyup', { key }))
            break;
    }
}
function mouseEvent(type, x, y) {
    switch (type) {
        case 'move':
            dispatchEvent(new MouseEvent('mousemove', { clientX: x, clientY: y }))
            break;
        case 'click':
            dispatchEvent(new MouseEvent('mousedown', { clientX: x, clientY: y }))
            dispatchEvent(new MouseEvent('mouseup', { clientX: x, clientY: y }))
            break;
    }
}
`

// Session is one running browser. Not safe for concurrent use; the control
// loop is single threaded and chromedp serializes what little overlap the
// tray UI introduces.
type Session struct {
	cfg config.BrowserConfig
	log *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewSession prepares a session; nothing starts until Start.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{cfg: cfg, log: logger.Named("browser")}
}

// Start launches the browser, restores any saved cookies, navigates to the
// game and injects the input helpers.
func (s *Session) Start(ctx context.Context) error {
	if s.cfg.URL == "" {
		return fmt.Errorf("browser url is not configured")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(s.cfg.WindowWidth, s.cfg.WindowHeight),
	)
	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	s.ctx, s.cancel = chromedp.NewContext(s.allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		s.log.Sugar().Debugf(format, args...)
	}))

	if cookies, err := loadCookies(s.cfg.CookieFile); err != nil {
		s.log.Warn("cookie restore skipped", zap.Error(err))
	} else if len(cookies) > 0 {
		if err := s.setCookies(cookies); err != nil {
			s.log.Warn("cookie restore failed", zap.Error(err))
		} else {
			s.log.Info("cookies restored", zap.Int("count", len(cookies)))
		}
	}

	s.log.Info("navigating", zap.String("url", s.cfg.URL))
	navCtx, cancel := context.WithTimeout(s.ctx, navigateTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(s.cfg.URL)); err != nil {
		return fmt.Errorf("navigate %s: %w", s.cfg.URL, err)
	}

	// The canvas boots asynchronously after the document loads.
	time.Sleep(2 * time.Second)

	if err := s.Eval(ctx, evalScript); err != nil {
		return fmt.Errorf("inject input helpers: %w", err)
	}
	s.log.Info("browser session started")
	return nil
}

// alive reports whether the chromedp context can still run actions.
func (s *Session) alive() bool {
	return s.ctx != nil && s.ctx.Err() == nil
}

// Eval runs a JavaScript snippet in the page, discarding its result.
func (s *Session) Eval(ctx context.Context, js string) error {
	if !s.alive() {
		return fmt.Errorf("browser session is not running")
	}
	evalCtx, cancel := context.WithTimeout(s.ctx, evalTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Ready reports whether the game canvas element exists yet.
func (s *Session) Ready(ctx context.Context) bool {
	if !s.alive() {
		return false
	}
	var exists bool
	js := fmt.Sprintf("document.getElementById(%q) !== null", s.cfg.CanvasID)
	checkCtx, cancel := context.WithTimeout(s.ctx, evalTimeout)
	defer cancel()
	if err := chromedp.Run(checkCtx, chromedp.Evaluate(js, &exists)); err != nil {
		s.log.Debug("canvas check failed", zap.Error(err))
		return false
	}
	return exists
}

// Screenshot captures the viewport and decodes it into an image.
func (s *Session) Screenshot(ctx context.Context) (image.Image, error) {
	if !s.alive() {
		return nil, fmt.Errorf("browser session is not running")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf []byte
	capCtx, cancel := context.WithTimeout(s.ctx, screenshotTimeout)
	defer cancel()
	if err := chromedp.Run(capCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

// Bounds returns the configured viewport size for input validation.
func (s *Session) Bounds() (int, int) {
	return s.cfg.WindowWidth, s.cfg.WindowHeight
}

// Close saves cookies for the next session, then tears the browser down.
func (s *Session) Close() error {
	if s.alive() && s.cfg.CookieFile != "" {
		if cookies, err := s.getCookies(); err != nil {
			s.log.Warn("cookie export failed", zap.Error(err))
		} else if err := saveCookies(s.cfg.CookieFile, cookies); err != nil {
			s.log.Warn("cookie save failed", zap.Error(err))
		} else {
			s.log.Info("cookies saved", zap.Int("count", len(cookies)))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.log.Info("browser session closed")
	return nil
}
