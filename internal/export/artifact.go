package export

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrExport = errors.New("export failed")

// Artifact is one exported raster ready to be saved.
type Artifact struct {
	Name          string    `json:"name"`
	CompositionID string    `json:"compositionId"`
	Index         int       `json:"index"`
	ContentType   string    `json:"contentType"`
	Size          int       `json:"size"`
	CreatedAt     time.Time `json:"createdAt"`
	Data          []byte    `json:"-"`
}

// FileName builds workshop-<id>-image-<index+1>-<unixMillis>.png.
func FileName(compositionID string, index int, at time.Time) string {
	return fmt.Sprintf("workshop-%s-image-%d-%d.png", safeID(compositionID), index+1, at.UnixMilli())
}

// safeID keeps an id usable inside a file name.
func safeID(id string) string {
	id = strings.TrimSpace(id)
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
