package workshop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultViewerName replaces a missing viewer name.
const DefaultViewerName = "User"

// Viewer is the identity placeholders are substituted from.
type Viewer struct {
	Name         string  `json:"name"`
	PhoneNumber  string  `json:"phoneNumber"`
	ProfileImage *string `json:"profileImage"`
}

// DefaultViewer is the identity used when no session data is available.
func DefaultViewer() Viewer {
	return Viewer{Name: DefaultViewerName}
}

// ParseViewer decodes the session JSON object. Absent fields default to
// "User", "" and no logo.
func ParseViewer(data []byte) (Viewer, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return DefaultViewer(), nil
	}
	var v Viewer
	if err := json.Unmarshal(data, &v); err != nil {
		return DefaultViewer(), fmt.Errorf("parse viewer: %w", err)
	}
	return v.withDefaults(), nil
}

func (v Viewer) withDefaults() Viewer {
	if strings.TrimSpace(v.Name) == "" {
		v.Name = DefaultViewerName
	}
	if v.ProfileImage != nil && strings.TrimSpace(*v.ProfileImage) == "" {
		v.ProfileImage = nil
	}
	return v
}

// Logo returns the viewer's logo reference, if any.
func (v Viewer) Logo() (string, bool) {
	if v.ProfileImage == nil {
		return "", false
	}
	logo := strings.TrimSpace(*v.ProfileImage)
	return logo, logo != ""
}
