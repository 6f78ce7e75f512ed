package input

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"
)

// Evaluator is the slice of a browser session this controller needs.
type Evaluator interface {
	Eval(ctx context.Context, js string) error
	Bounds() (width, height int)
}

// jsKeys maps the configured key names onto KeyboardEvent.key values. Plain
// letters and digits pass through unchanged.
var jsKeys = map[string]string{
	"esc":   "Escape",
	"space": " ",
	"enter": "Enter",
	"shift": "Shift",
	"tab":   "Tab",
}

func jsKeyName(key string) string {
	if mapped, ok := jsKeys[key]; ok {
		return mapped
	}
	return key
}

// Browser injects input by dispatching DOM events in the game tab. The page
// has no notion of a persistent cursor, so the last moved-to position is
// remembered here and used as the click coordinate.
type Browser struct {
	session Evaluator
	cursor  image.Point
	log     *zap.Logger
}

// NewBrowser wires the controller to a running session.
func NewBrowser(session Evaluator, logger *zap.Logger) (*Browser, error) {
	if session == nil {
		return nil, fmt.Errorf("browser input needs a session")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{session: session, log: logger.Named("input")}, nil
}

func (b *Browser) sendKey(ctx context.Context, mode, key string) error {
	if key == "" {
		return fmt.Errorf("%s of empty key", mode)
	}
	js := fmt.Sprintf("keyboardEvent(%q, %q);", mode, jsKeyName(key))
	if err := b.session.Eval(ctx, js); err != nil {
		return fmt.Errorf("%s %q: %w", mode, key, err)
	}
	return nil
}

func (b *Browser) PressKey(ctx context.Context, key string) error {
	return b.sendKey(ctx, "press", key)
}

func (b *Browser) HoldKey(ctx context.Context, key string) error {
	return b.sendKey(ctx, "hold", key)
}

func (b *Browser) ReleaseKey(ctx context.Context, key string) error {
	return b.sendKey(ctx, "release", key)
}

func (b *Browser) MoveCursor(ctx context.Context, p image.Point) error {
	w, h := b.session.Bounds()
	if err := checkBounds(p, w, h); err != nil {
		return err
	}
	js := fmt.Sprintf("mouseEvent('move', %d, %d);", p.X, p.Y)
	if err := b.session.Eval(ctx, js); err != nil {
		return fmt.Errorf("move cursor: %w", err)
	}
	b.cursor = p
	return nil
}

func (b *Browser) Click(ctx context.Context) error {
	js := fmt.Sprintf("mouseEvent('click', %d, %d);", b.cursor.X, b.cursor.Y)
	if err := b.session.Eval(ctx, js); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (b *Browser) Close() error { return nil }
