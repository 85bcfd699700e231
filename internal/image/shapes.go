package imagepkg

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// kappa places cubic control points to approximate a quarter circle.
const kappa = 0.5522847498

// roundedRectMask returns a w x h coverage mask of a rectangle whose corners
// are rounded with radius r (clamped to half the shorter side).
func roundedRectMask(w, h int, r float64) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return mask
	}
	fw, fh := float32(w), float32(h)
	rr := float32(math.Min(r, math.Min(float64(w), float64(h))/2))
	if rr < 0 {
		rr = 0
	}
	k := rr * kappa

	z := vector.NewRasterizer(w, h)
	z.MoveTo(rr, 0)
	z.LineTo(fw-rr, 0)
	z.CubeTo(fw-rr+k, 0, fw, rr-k, fw, rr)
	z.LineTo(fw, fh-rr)
	z.CubeTo(fw, fh-rr+k, fw-rr+k, fh, fw-rr, fh)
	z.LineTo(rr, fh)
	z.CubeTo(rr-k, fh, 0, fh-rr+k, 0, fh-rr)
	z.LineTo(0, rr)
	z.CubeTo(0, rr-k, rr-k, 0, rr, 0)
	z.ClosePath()
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// circleMask returns a d x d coverage mask of the inscribed circle.
func circleMask(d int) *image.Alpha {
	return roundedRectMask(d, d, float64(d)/2)
}
