package capture

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"genshin-autobot/internal/vision"
)

// Screenshotter is the slice of the browser session this package needs.
type Screenshotter interface {
	Screenshot(ctx context.Context) (image.Image, error)
}

// Browser grabs frames from a chromedp session rendering a cloud client.
// The session is owned by the caller; Close here does not tear it down.
type Browser struct {
	sess Screenshotter
	log  *zap.Logger
}

func NewBrowser(sess Screenshotter, logger *zap.Logger) (*Browser, error) {
	if sess == nil {
		return nil, fmt.Errorf("browser capture requires a session")
	}
	return &Browser{sess: sess, log: logger}, nil
}

func (b *Browser) Capture(ctx context.Context) (vision.Frame, error) {
	img, err := b.sess.Screenshot(ctx)
	if err != nil {
		return vision.Frame{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return vision.NewFrame(img)
}

func (b *Browser) Close() error { return nil }
