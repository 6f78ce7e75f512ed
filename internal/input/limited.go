package input

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/time/rate"
)

// Limited wraps a controller with a global input rate cap, so a runaway
// decision cycle cannot flood the game client with events.
type Limited struct {
	inner   Controller
	limiter *rate.Limiter
}

// NewLimited caps the wrapped controller at perSec events per second.
func NewLimited(inner Controller, perSec float64) (*Limited, error) {
	if inner == nil {
		return nil, fmt.Errorf("rate limit needs a controller")
	}
	if perSec <= 0 {
		return nil, fmt.Errorf("input rate must be positive, got %v", perSec)
	}
	return &Limited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}, nil
}

func (l *Limited) wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("input rate limit: %w", err)
	}
	return nil
}

func (l *Limited) PressKey(ctx context.Context, key string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.inner.PressKey(ctx, key)
}

func (l *Limited) HoldKey(ctx context.Context, key string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.inner.HoldKey(ctx, key)
}

func (l *Limited) ReleaseKey(ctx context.Context, key string) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.inner.ReleaseKey(ctx, key)
}

func (l *Limited) MoveCursor(ctx context.Context, p image.Point) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.inner.MoveCursor(ctx, p)
}

func (l *Limited) Click(ctx context.Context) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	return l.inner.Click(ctx)
}

func (l *Limited) Close() error { return l.inner.Close() }
