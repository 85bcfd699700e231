package workshop

import "strings"

const (
	TokenUsername   = "{{username}}"
	TokenUsernumber = "{{usernumber}}"
	TokenUserLogo   = "{{userLogo}}"
)

// Substitute replaces the username and usernumber tokens. The logo token is
// left in place; it selects a paint branch rather than text.
func Substitute(text string, v Viewer) string {
	name := v.Name
	if strings.TrimSpace(name) == "" {
		name = DefaultViewerName
	}
	r := strings.NewReplacer(TokenUsername, name, TokenUsernumber, v.PhoneNumber)
	return r.Replace(text)
}

// IsLogoToken reports whether text is exactly the logo token once trimmed.
func IsLogoToken(text string) bool {
	return strings.TrimSpace(text) == TokenUserLogo
}

// PaintKind says how an overlay is painted for a given viewer.
type PaintKind int

const (
	PaintNone PaintKind = iota
	PaintText
	PaintLogo
)

func (k PaintKind) String() string {
	switch k {
	case PaintText:
		return "text"
	case PaintLogo:
		return "logo"
	default:
		return "none"
	}
}

// Plan decides the paint branch for an overlay and returns the text to paint.
// Logo overlays paint only when the viewer has a logo. Text that is empty or
// only whitespace after substitution paints nothing, background box included,
// so a field left blank for a viewer leaves no stray box behind.
func Plan(o Overlay, v Viewer) (PaintKind, string) {
	text := Substitute(o.Text, v)
	if IsLogoToken(text) {
		if _, ok := v.Logo(); ok {
			return PaintLogo, ""
		}
		return PaintNone, ""
	}
	text = strings.ReplaceAll(text, TokenUserLogo, "")
	if strings.TrimSpace(text) == "" {
		return PaintNone, ""
	}
	return PaintText, text
}
