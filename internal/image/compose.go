package imagepkg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/youruser/creativeworkshop/internal/workshop"
)

// SourceDecoder resolves an image reference to a decoded bitmap.
type SourceDecoder interface {
	Decode(ctx context.Context, src string) (image.Image, error)
}

// Compositor renders an image and its overlays at the image's original
// resolution.
type Compositor struct {
	sources SourceDecoder
	fonts   *FontBook
	log     logrus.FieldLogger
}

func NewCompositor(sources SourceDecoder, fonts *FontBook, logger logrus.FieldLogger) *Compositor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Compositor{sources: sources, fonts: fonts, log: logger}
}

// Export rasters larger than this are refused before any pixel is allocated.
const (
	MaxTargetSide   = 16384
	MaxTargetPixels = 50_000_000
)

// TargetSize returns the export raster size: the recorded original size when
// both sides are positive, the decoded bitmap size otherwise.
func TargetSize(img workshop.Image, base image.Image) (int, int) {
	if img.OriginalWidth > 0 && img.OriginalHeight > 0 {
		w, h := roundSide(img.OriginalWidth), roundSide(img.OriginalHeight)
		if w > 0 && h > 0 {
			return w, h
		}
	}
	b := base.Bounds()
	return b.Dx(), b.Dy()
}

// roundSide keeps the float to int conversion defined for absurd inputs.
func roundSide(f float64) int {
	return int(math.Round(math.Min(f, math.MaxInt32)))
}

// CheckTargetSize rejects rasters too large to allocate safely.
func CheckTargetSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty bitmap", ErrDecode)
	}
	if w > MaxTargetSide || h > MaxTargetSide || w*h > MaxTargetPixels {
		return fmt.Errorf("%w: target %dx%d exceeds limit", ErrDecode, w, h)
	}
	return nil
}

// Render paints the base bitmap stretched to the target size, then every
// overlay in list order.
func (c *Compositor) Render(ctx context.Context, img workshop.Image, v workshop.Viewer) (*image.NRGBA, error) {
	base, err := c.sources.Decode(ctx, img.Source())
	if err != nil {
		return nil, fmt.Errorf("resolve base image: %w", err)
	}
	w, h := TargetSize(img, base)
	if err := CheckTargetSize(w, h); err != nil {
		return nil, err
	}
	canvas := imaging.Resize(base, w, h, imaging.Lanczos)

	logo := &lazyLogo{viewer: v, sources: c.sources}
	for i, o := range img.Texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind, text := workshop.Plan(o, v)
		x, y := workshop.AbsolutePosition(o, float64(w), float64(h))
		size := o.EffectiveFontSize()

		switch kind {
		case workshop.PaintLogo:
			bmp := logo.get(ctx)
			if bmp == nil {
				if logo.err != nil {
					c.log.WithError(logo.err).WithField("overlay", i).Warn("viewer logo unavailable, skipping")
				}
				continue
			}
			paintLogo(canvas, bmp, x, y, size)
		case workshop.PaintText:
			if err := c.paintText(canvas, o, text, x, y, size); err != nil {
				return nil, fmt.Errorf("overlay %d: %w", i, err)
			}
		}
	}
	return canvas, nil
}

// RenderPNG renders and encodes the result as PNG.
func (c *Compositor) RenderPNG(ctx context.Context, img workshop.Image, v workshop.Viewer) ([]byte, error) {
	canvas, err := c.Render(ctx, img, v)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// lazyLogo decodes the viewer logo at most once, on first use.
type lazyLogo struct {
	viewer  workshop.Viewer
	sources SourceDecoder
	done    bool
	img     image.Image
	err     error
}

func (l *lazyLogo) get(ctx context.Context) image.Image {
	if l.done {
		return l.img
	}
	l.done = true
	src, ok := l.viewer.Logo()
	if !ok {
		return nil
	}
	l.img, l.err = l.sources.Decode(ctx, src)
	return l.img
}

// paintLogo draws logo stretched to a 2*size square at (x, y), clipped to a
// circle.
func paintLogo(dst *image.NRGBA, logo image.Image, x, y, size float64) {
	d := int(math.Round(2 * size))
	if d <= 0 {
		return
	}
	scaled := imaging.Resize(logo, d, d, imaging.Lanczos)
	px, py := int(math.Round(x)), int(math.Round(y))
	r := image.Rect(px, py, px+d, py+d)
	draw.DrawMask(dst, r, scaled, image.Point{}, circleMask(d), image.Point{}, draw.Over)
}

// paintText draws the padded background box, when visible, then the glyphs.
// No border is ever stroked.
func (c *Compositor) paintText(dst *image.NRGBA, o workshop.Overlay, text string, x, y, size float64) error {
	face, err := c.fonts.Face(o.FontFamily, o.Bold, o.Italic, size)
	if err != nil {
		return err
	}
	defer closeFace(face)

	lines := strings.Split(text, "\n")
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	lineHeight := ascent + metrics.Descent.Ceil()

	width := 0
	for _, line := range lines {
		if lw := font.MeasureString(face, line).Ceil(); lw > width {
			width = lw
		}
	}
	height := lineHeight * len(lines)

	pad := workshop.TextPadding
	px, py := int(math.Round(x)), int(math.Round(y))

	if bg, ok := ParseColor(o.BgColor); ok && bg.A > 0 {
		box := image.Rect(px, py, px+width+2*pad, py+height+2*pad)
		fill := image.NewUniform(bg)
		if o.BorderRadius > 0 {
			mask := roundedRectMask(box.Dx(), box.Dy(), o.BorderRadius)
			draw.DrawMask(dst, box, fill, image.Point{}, mask, image.Point{}, draw.Over)
		} else {
			draw.Draw(dst, box, fill, image.Point{}, draw.Over)
		}
	}

	fg, ok := ParseColor(o.Color)
	if !ok {
		fg = color.NRGBA{A: 0xff}
	}
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	for i, line := range lines {
		drawer.Dot = fixed.Point26_6{
			X: fixed.I(px + pad),
			Y: fixed.I(py + pad + ascent + i*lineHeight),
		}
		drawer.DrawString(line)
	}
	return nil
}

func closeFace(face font.Face) {
	if closer, ok := face.(interface{ Close() error }); ok {
		closer.Close()
	}
}
