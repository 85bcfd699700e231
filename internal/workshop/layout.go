package workshop

// TextPadding is the padding around painted text, in pixels at the original
// resolution.
const TextPadding = 4

// ElementKind identifies what a display list element paints.
type ElementKind string

const (
	ElementText ElementKind = "text"
	ElementLogo ElementKind = "logo"
)

// Element is one positioned item of the live preview. Coordinates and sizes
// are in rendered pixels.
type Element struct {
	Kind    ElementKind `json:"kind"`
	Overlay int         `json:"overlay"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`

	// text
	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Color      string  `json:"color,omitempty"`
	BgColor    string  `json:"bgColor,omitempty"`
	Padding    float64 `json:"padding,omitempty"`

	// logo
	Src  string  `json:"src,omitempty"`
	Size float64 `json:"size,omitempty"`

	BorderRadius float64 `json:"borderRadius,omitempty"`
}

// LayoutImage builds the display list for image index in overlay order.
// Images that have not loaded produce an empty list. No border is ever
// emitted.
func (m *ScaleMapper) LayoutImage(index int, v Viewer) []Element {
	if index < 0 || index >= len(m.images) {
		return nil
	}
	img := m.images[index]
	if _, _, ok := m.rendered(index); !ok {
		return nil
	}
	scale := m.ScaledFontSize(1, index)

	out := make([]Element, 0, len(img.Texts))
	for i, o := range img.Texts {
		kind, text := Plan(o, v)
		if kind == PaintNone {
			continue
		}
		x, y, _ := m.Position(o, index)
		size := m.ScaledFontSize(o.EffectiveFontSize(), index)

		switch kind {
		case PaintLogo:
			logo, _ := v.Logo()
			radius := o.BorderRadius
			if !(radius > 0) {
				radius = size
			}
			out = append(out, Element{
				Kind:         ElementLogo,
				Overlay:      i,
				X:            x,
				Y:            y,
				Src:          logo,
				Size:         2 * size,
				BorderRadius: radius,
			})
		case PaintText:
			out = append(out, Element{
				Kind:         ElementText,
				Overlay:      i,
				X:            x,
				Y:            y,
				Text:         text,
				FontSize:     size,
				FontFamily:   o.FontFamily,
				Bold:         o.Bold,
				Italic:       o.Italic,
				Color:        o.Color,
				BgColor:      o.BgColor,
				Padding:      TextPadding * scale,
				BorderRadius: o.BorderRadius,
			})
		}
	}
	return out
}
