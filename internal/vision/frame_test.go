package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameRejectsNilAndEmpty(t *testing.T) {
	_, err := NewFrame(nil)
	assert.Error(t, err)

	_, err = NewFrame(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestNewFrameRebasesSubimages(t *testing.T) {
	src := gradientImage(40, 30)
	sub := src.SubImage(image.Rect(10, 5, 30, 25)).(*image.RGBA)

	f, err := NewFrame(sub)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 20, 20), f.Bounds())
	assert.Equal(t, src.RGBAAt(10, 5), f.Image().RGBAAt(0, 0))
	assert.Equal(t, src.RGBAAt(29, 24), f.Image().RGBAAt(19, 19))
}

func TestCropCopiesRegion(t *testing.T) {
	f, err := NewFrame(gradientImage(40, 30))
	require.NoError(t, err)

	crop, err := f.Crop(image.Rect(10, 5, 20, 15))
	require.NoError(t, err)

	assert.Equal(t, 10, crop.Width())
	assert.Equal(t, 10, crop.Height())
	assert.Equal(t, f.Image().RGBAAt(10, 5), crop.Image().RGBAAt(0, 0))
	assert.Equal(t, f.Image().RGBAAt(19, 14), crop.Image().RGBAAt(9, 9))

	// Mutating the crop must not touch the source.
	crop.Image().SetRGBA(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	assert.NotEqual(t, crop.Image().RGBAAt(0, 0), f.Image().RGBAAt(10, 5))
}

func TestCropClipsToFrame(t *testing.T) {
	f := testFrame(t, 40, 30)

	crop, err := f.Crop(image.Rect(30, 20, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, 10, crop.Width())
	assert.Equal(t, 10, crop.Height())
}

func TestCropOutsideFrameFails(t *testing.T) {
	f := testFrame(t, 40, 30)

	_, err := f.Crop(image.Rect(50, 50, 60, 60))
	assert.Error(t, err)

	_, err = Frame{}.Crop(image.Rect(0, 0, 10, 10))
	assert.Error(t, err)
}

func TestCropFracTruncatesToPixels(t *testing.T) {
	f := testFrame(t, 400, 200)

	crop, err := f.CropFrac(0.05, 0.05, 0.35, 0.15)
	require.NoError(t, err)

	// 0.05*400=20 .. 0.35*400=140 and 0.05*200=10 .. 0.15*200=30.
	assert.Equal(t, 120, crop.Width())
	assert.Equal(t, 20, crop.Height())
}

func TestCropFracRejectsBadRectangles(t *testing.T) {
	f := testFrame(t, 100, 100)

	for _, tc := range [][4]float64{
		{-0.1, 0, 0.5, 0.5},
		{0, -0.1, 0.5, 0.5},
		{0, 0, 1.1, 0.5},
		{0, 0, 0.5, 1.1},
		{0.5, 0, 0.5, 0.5},
		{0.6, 0, 0.5, 0.5},
		{0, 0.5, 0.5, 0.2},
	} {
		_, err := f.CropFrac(tc[0], tc[1], tc[2], tc[3])
		assert.Error(t, err, "crop (%v,%v)-(%v,%v)", tc[0], tc[1], tc[2], tc[3])
	}
}

func uniformImage(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestMeanBrightness(t *testing.T) {
	dark, err := NewFrame(uniformImage(60, 60, 0))
	require.NoError(t, err)
	bright, err := NewFrame(uniformImage(60, 60, 255))
	require.NoError(t, err)

	region := image.Rect(10, 10, 50, 50)

	mean, err := MeanBrightness(dark, region)
	require.NoError(t, err)
	assert.InDelta(t, 0, mean, 1.0)

	mean, err = MeanBrightness(bright, region)
	require.NoError(t, err)
	assert.InDelta(t, 255, mean, 1.0)
}

func TestMeanBrightnessOutsideFrameFails(t *testing.T) {
	f := testFrame(t, 20, 20)

	_, err := MeanBrightness(f, image.Rect(30, 30, 40, 40))
	assert.Error(t, err)
}
