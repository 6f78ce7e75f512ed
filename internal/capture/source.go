// Package capture produces the frames the control loop consumes. Three
// backends exist: native screen grabs for local clients, browser screenshots
// for cloud clients, and a file replay source for offline probing.
package capture

import (
	"context"
	"errors"

	"genshin-autobot/internal/vision"
)

// ErrUnavailable reports that the capture device cannot be reached right
// now. Callers treat it as fatal for the session; the loop never spins on a
// dead capture source.
var ErrUnavailable = errors.New("capture unavailable")

// FrameSource produces one frame per request.
type FrameSource interface {
	Capture(ctx context.Context) (vision.Frame, error)
	Close() error
}
