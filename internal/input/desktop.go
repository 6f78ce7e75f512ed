package input

import (
	"context"
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"

	"genshin-autobot/internal/config"
)

// Desktop injects native input events for locally running clients.
type Desktop struct {
	width  int
	height int
	log    *zap.Logger
}

// NewDesktop builds the native controller. Screen bounds come from the
// configuration when set, otherwise from the primary display.
func NewDesktop(cfg config.InputConfig, logger *zap.Logger) (*Desktop, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	width, height := cfg.ScreenWidth, cfg.ScreenHeight
	if width <= 0 || height <= 0 {
		width, height = robotgo.GetScreenSize()
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("cannot determine screen size")
	}
	logger.Info("desktop input ready", zap.Int("width", width), zap.Int("height", height))
	return &Desktop{width: width, height: height, log: logger.Named("input")}, nil
}

func (d *Desktop) PressKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("press of empty key")
	}
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("key tap %q: %w", key, err)
	}
	return nil
}

func (d *Desktop) HoldKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := robotgo.KeyToggle(key, "down"); err != nil {
		return fmt.Errorf("key down %q: %w", key, err)
	}
	return nil
}

func (d *Desktop) ReleaseKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := robotgo.KeyToggle(key, "up"); err != nil {
		return fmt.Errorf("key up %q: %w", key, err)
	}
	return nil
}

func (d *Desktop) MoveCursor(ctx context.Context, p image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkBounds(p, d.width, d.height); err != nil {
		return err
	}
	robotgo.Move(p.X, p.Y)
	return nil
}

func (d *Desktop) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	robotgo.Click()
	return nil
}

func (d *Desktop) Close() error { return nil }
