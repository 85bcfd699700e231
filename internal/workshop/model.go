package workshop

import "strings"

// Fallback authoring resolution for image records that carry no usable size.
const (
	DefaultOriginalWidth  = 800
	DefaultOriginalHeight = 600
)

// DefaultFontSize is used for overlays stored without a font size.
const DefaultFontSize = 16

// Composition is one workshop: a named set of base images with overlays.
type Composition struct {
	ID        string  `json:"id"`
	Category  string  `json:"category,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
	Images    []Image `json:"images"`
}

// ImageCount is the number of images in the composition.
func (c *Composition) ImageCount() int {
	if c == nil {
		return 0
	}
	return len(c.Images)
}

// Image returns the image at index or ErrBadIndex.
func (c *Composition) Image(index int) (Image, error) {
	if c == nil || index < 0 || index >= len(c.Images) {
		return Image{}, ErrBadIndex
	}
	return c.Images[index], nil
}

// Image is a base bitmap plus its overlays. Overlay order is paint order.
type Image struct {
	ImageURL       string    `json:"imageUrl,omitempty"`
	ImageBase64    string    `json:"imageBase64,omitempty"`
	OriginalWidth  float64   `json:"originalWidth"`
	OriginalHeight float64   `json:"originalHeight"`
	Texts          []Overlay `json:"texts"`
}

// Source returns the bitmap reference to paint: the inline payload when
// present, the remote URL otherwise.
func (img Image) Source() string {
	if strings.TrimSpace(img.ImageBase64) != "" {
		return img.ImageBase64
	}
	return strings.TrimSpace(img.ImageURL)
}

// EffectiveSize returns the authoring resolution, substituting 800x600 per
// axis when the record has no positive value.
func (img Image) EffectiveSize() (float64, float64) {
	w, h := img.OriginalWidth, img.OriginalHeight
	if !(w > 0) {
		w = DefaultOriginalWidth
	}
	if !(h > 0) {
		h = DefaultOriginalHeight
	}
	return w, h
}

// Overlay is one positioned annotation. X and Y are fractions of the image
// width and height; FontSize is in pixels at the original resolution.
type Overlay struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Text         string  `json:"text"`
	FontSize     float64 `json:"fontSize"`
	FontFamily   string  `json:"fontFamily,omitempty"`
	Bold         bool    `json:"bold,omitempty"`
	Italic       bool    `json:"italic,omitempty"`
	Color        string  `json:"color,omitempty"`
	BgColor      string  `json:"bgColor,omitempty"`
	BorderRadius float64 `json:"borderRadius,omitempty"`
}

// EffectiveFontSize returns FontSize, or DefaultFontSize when unset.
func (o Overlay) EffectiveFontSize() float64 {
	if o.FontSize > 0 {
		return o.FontSize
	}
	return DefaultFontSize
}
