package workshop

// ScaleFontSize rescales a font size authored at originalWidth to renderedWidth.
// The size is returned unchanged when either width is unknown.
func ScaleFontSize(fontSize, originalWidth, renderedWidth float64) float64 {
	if !(originalWidth > 0) || !(renderedWidth > 0) {
		return fontSize
	}
	return fontSize * (renderedWidth / originalWidth)
}

// AbsolutePosition maps the overlay's fractional position onto a surface of
// width x height, independently per axis.
func AbsolutePosition(o Overlay, width, height float64) (float64, float64) {
	return o.X * width, o.Y * height
}

// ScaleMapper answers size and position questions for the images of one
// composition using the rendered sizes recorded in a Tracker.
type ScaleMapper struct {
	images  []Image
	tracker *Tracker
}

func NewScaleMapper(images []Image, tracker *Tracker) *ScaleMapper {
	return &ScaleMapper{images: images, tracker: tracker}
}

// rendered returns the rendered size of image index. ok is false until the
// image has loaded. Non-positive reported sizes fall back to the effective
// original size.
func (m *ScaleMapper) rendered(index int) (w, h float64, ok bool) {
	if index < 0 || index >= len(m.images) {
		return 0, 0, false
	}
	d, found := m.tracker.State(index)
	if !found || !d.Loaded {
		return 0, 0, false
	}
	ew, eh := m.images[index].EffectiveSize()
	w, h = d.Width, d.Height
	if !(w > 0) {
		w = ew
	}
	if !(h > 0) {
		h = eh
	}
	return w, h, true
}

// ScaledFontSize returns fontSize * renderedWidth / originalWidth for image
// index, or fontSize unchanged while the rendered width is unknown or the
// record has no original width.
func (m *ScaleMapper) ScaledFontSize(fontSize float64, index int) float64 {
	if index < 0 || index >= len(m.images) {
		return fontSize
	}
	d, found := m.tracker.State(index)
	if !found || !d.Loaded {
		return fontSize
	}
	return ScaleFontSize(fontSize, m.images[index].OriginalWidth, d.Width)
}

// Position returns the absolute on-screen position of an overlay of image
// index. ok is false until the image has loaded.
func (m *ScaleMapper) Position(o Overlay, index int) (x, y float64, ok bool) {
	w, h, ok := m.rendered(index)
	if !ok {
		return 0, 0, false
	}
	x, y = AbsolutePosition(o, w, h)
	return x, y, true
}
