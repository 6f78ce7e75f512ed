// Package vision implements the perception half of the control loop: frames,
// template matching, OCR text extraction, and health readout parsing.
//
// All pixel work happens on immutable Frame values owned by a single cycle.
// OpenCV Mats are created per operation and released before returning, so no
// native memory outlives the call that allocated it.
package vision

import (
	"fmt"
	"image"
	"image/draw"

	"gocv.io/x/gocv"
)

// Frame is one captured screen image. It is never mutated after construction;
// crops copy their pixels so every Frame is a packed, zero-based RGBA buffer
// that converts cleanly to an OpenCV Mat.
type Frame struct {
	img *image.RGBA
}

// NewFrame wraps an image as a Frame, converting to packed RGBA when needed.
// Nil or empty images are a caller defect and fail fast.
func NewFrame(img image.Image) (Frame, error) {
	if img == nil {
		return Frame{}, fmt.Errorf("frame image must not be nil")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Frame{}, fmt.Errorf("frame must not be empty, got %dx%d", b.Dx(), b.Dy())
	}
	if rgba, ok := img.(*image.RGBA); ok {
		if rgba.Bounds().Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
			return Frame{img: rgba}, nil
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return Frame{img: dst}, nil
}

// Empty reports whether the frame holds no pixels (zero value).
func (f Frame) Empty() bool {
	return f.img == nil
}

// Width returns the frame width in pixels.
func (f Frame) Width() int {
	if f.img == nil {
		return 0
	}
	return f.img.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f Frame) Height() int {
	if f.img == nil {
		return 0
	}
	return f.img.Bounds().Dy()
}

// Bounds returns the frame rectangle, always zero-based.
func (f Frame) Bounds() image.Rectangle {
	if f.img == nil {
		return image.Rectangle{}
	}
	return f.img.Bounds()
}

// Image exposes the underlying buffer. Read-only by contract.
func (f Frame) Image() *image.RGBA {
	return f.img
}

// Crop returns a new Frame holding a copy of the given region. The rectangle
// is clipped to the frame; a crop entirely outside it is an error.
func (f Frame) Crop(r image.Rectangle) (Frame, error) {
	if f.Empty() {
		return Frame{}, fmt.Errorf("crop of empty frame")
	}
	r = r.Intersect(f.img.Bounds())
	if r.Empty() {
		return Frame{}, fmt.Errorf("crop region lies outside the frame")
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), f.img, r.Min, draw.Src)
	return Frame{img: dst}, nil
}

// CropFrac crops by frame-size fractions, so callers stay resolution
// independent. Fractions are truncated to pixel coordinates.
func (f Frame) CropFrac(x1, y1, x2, y2 float64) (Frame, error) {
	if x1 < 0 || y1 < 0 || x2 > 1 || y2 > 1 || x1 >= x2 || y1 >= y2 {
		return Frame{}, fmt.Errorf("fractional crop (%v,%v)-(%v,%v) is not a sub-unit rectangle", x1, y1, x2, y2)
	}
	w, h := float64(f.Width()), float64(f.Height())
	return f.Crop(image.Rect(int(x1*w), int(y1*h), int(x2*w), int(y2*h)))
}

// MeanBrightness returns the average grayscale intensity (0-255) of a frame
// region. Used by the state classifier's map indicator.
func MeanBrightness(f Frame, r image.Rectangle) (float64, error) {
	crop, err := f.Crop(r)
	if err != nil {
		return 0, err
	}
	gray, err := frameToGray(crop)
	if err != nil {
		return 0, err
	}
	defer gray.Close()
	return gray.Mean().Val1, nil
}

// frameToGray converts a Frame to a single-channel Mat. Caller closes it.
func frameToGray(f Frame) (gocv.Mat, error) {
	rgb, err := gocv.ImageToMatRGB(f.img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert frame to mat: %w", err)
	}
	defer rgb.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)
	return gray, nil
}
