package capture

import (
	"context"
	"fmt"

	"github.com/vcaesar/imgo"
	"go.uber.org/zap"

	"genshin-autobot/internal/vision"
)

// File replays a frame from disk. The image is re-read on every Capture so a
// probe run can swap the file between cycles.
type File struct {
	path string
	log  *zap.Logger
}

func NewFile(path string, logger *zap.Logger) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file capture requires a frame path")
	}
	return &File{path: path, log: logger}, nil
}

func (f *File) Capture(ctx context.Context) (vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vision.Frame{}, err
	}
	img, err := imgo.Read(f.path)
	if err != nil {
		return vision.Frame{}, fmt.Errorf("%w: read %s: %v", ErrUnavailable, f.path, err)
	}
	return vision.NewFrame(img)
}

func (f *File) Close() error { return nil }
