package vision

import (
	"fmt"
	"image"
	"math"
)

// QuadCentroid estimates the click target of a bounding quadrilateral using
// the corner-offset approximation this project has always shipped: half the
// magnitude of two edge-vector lengths, each computed through a right-triangle
// difference, added to the first corner. The difference under the square root
// can go negative for non-axis-aligned quads and is folded by abs(), so the
// result is an estimate, not a true polygon centroid. Existing click targets
// depend on it; QuadCenter is the exact alternative.
func QuadCentroid(corners []image.Point) (image.Point, error) {
	if len(corners) < 3 {
		return image.Point{}, fmt.Errorf("quad centroid needs at least 3 corners, got %d", len(corners))
	}
	c0, c1, c2 := corners[0], corners[1], corners[2]

	dx, dy := c1.X-c0.X, c1.Y-c0.Y
	lnx := int(math.Round(math.Sqrt(math.Abs(float64(dx*dx-dy*dy))))) / 2

	dx, dy = c2.X-c1.X, c2.Y-c1.Y
	lny := int(math.Round(math.Sqrt(math.Abs(float64(dx*dx-dy*dy))))) / 2

	return image.Point{X: c0.X + lnx, Y: c0.Y + lny}, nil
}

// QuadCenter is the exact corner average.
func QuadCenter(corners []image.Point) (image.Point, error) {
	if len(corners) < 3 {
		return image.Point{}, fmt.Errorf("quad center needs at least 3 corners, got %d", len(corners))
	}
	var sx, sy int
	for _, c := range corners {
		sx += c.X
		sy += c.Y
	}
	return image.Point{X: sx / len(corners), Y: sy / len(corners)}, nil
}

// rectQuad converts an axis-aligned rectangle to corner order TL, TR, BR, BL.
func rectQuad(r image.Rectangle) [4]image.Point {
	return [4]image.Point{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}
}
