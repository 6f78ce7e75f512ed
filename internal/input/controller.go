// Package input synthesizes keyboard and mouse events on whatever surface
// hosts the game: the desktop, or a browser tab via script injection.
package input

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrInvalidTarget reports cursor coordinates outside the known screen
// bounds. This is a caller defect, not a transient condition.
var ErrInvalidTarget = errors.New("target outside screen bounds")

// Controller is the boundary to the actual input injection mechanism.
// Implementations are not safe for concurrent use; the control loop issues
// one action at a time.
type Controller interface {
	PressKey(ctx context.Context, key string) error
	HoldKey(ctx context.Context, key string) error
	ReleaseKey(ctx context.Context, key string) error
	MoveCursor(ctx context.Context, p image.Point) error
	Click(ctx context.Context) error
	Close() error
}

// checkBounds validates a cursor target against a width x height surface.
func checkBounds(p image.Point, width, height int) error {
	if p.X < 0 || p.Y < 0 || p.X >= width || p.Y >= height {
		return fmt.Errorf("%w: (%d,%d) not inside %dx%d", ErrInvalidTarget, p.X, p.Y, width, height)
	}
	return nil
}
