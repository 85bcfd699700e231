package imagepkg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	FamilyGo     = "go"
	FamilyGoMono = "go mono"
)

const (
	styleRegular = iota
	styleBold
	styleItalic
	styleBoldItalic
)

func styleOf(bold, italic bool) int {
	switch {
	case bold && italic:
		return styleBoldItalic
	case bold:
		return styleBold
	case italic:
		return styleItalic
	default:
		return styleRegular
	}
}

type family [4]*opentype.Font

// pick returns the requested style, falling back to the closest one present.
func (f *family) pick(style int) *opentype.Font {
	order := map[int][]int{
		styleRegular:    {styleRegular, styleBold, styleItalic, styleBoldItalic},
		styleBold:       {styleBold, styleRegular, styleBoldItalic, styleItalic},
		styleItalic:     {styleItalic, styleRegular, styleBoldItalic, styleBold},
		styleBoldItalic: {styleBoldItalic, styleBold, styleItalic, styleRegular},
	}[style]
	for _, s := range order {
		if f[s] != nil {
			return f[s]
		}
	}
	return nil
}

var (
	builtinOnce sync.Once
	builtin     map[string]*family
	builtinErr  error
)

// loadBuiltin parses the embedded Go fonts once.
func loadBuiltin() (map[string]*family, error) {
	builtinOnce.Do(func() {
		sources := map[string][4][]byte{
			FamilyGo:     {goregular.TTF, gobold.TTF, goitalic.TTF, gobolditalic.TTF},
			FamilyGoMono: {gomono.TTF, gomonobold.TTF, gomonoitalic.TTF, gomonobolditalic.TTF},
		}
		out := make(map[string]*family, len(sources))
		for name, ttfs := range sources {
			fam := &family{}
			for style, ttf := range ttfs {
				parsed, err := opentype.Parse(ttf)
				if err != nil {
					builtinErr = fmt.Errorf("parse embedded font %s: %w", name, err)
					return
				}
				fam[style] = parsed
			}
			out[name] = fam
		}
		builtin = out
	})
	return builtin, builtinErr
}

// FontBook maps CSS font-family lists to parsed fonts. The Go fonts are always
// available; other families can be registered from font files.
type FontBook struct {
	mu       sync.RWMutex
	families map[string]*family
}

func NewFontBook() (*FontBook, error) {
	base, err := loadBuiltin()
	if err != nil {
		return nil, err
	}
	b := &FontBook{families: make(map[string]*family, len(base))}
	for name, fam := range base {
		copied := *fam
		b.families[name] = &copied
	}
	return b, nil
}

// Register adds one style of a family from TrueType/OpenType data.
func (b *FontBook) Register(name string, bold, italic bool, data []byte) error {
	key := normalizeFamily(name)
	if key == "" {
		return fmt.Errorf("register font: empty family name")
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("register font %q: %w", name, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fam, ok := b.families[key]
	if !ok {
		fam = &family{}
		b.families[key] = fam
	}
	fam[styleOf(bold, italic)] = parsed
	return nil
}

// LoadDir registers every .ttf and .otf file in dir. The family and style
// come from the file name, e.g. "Poppins-BoldItalic.ttf".
func (b *FontBook) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read font dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, fmt.Errorf("read font %s: %w", e.Name(), err)
		}
		name, bold, italic := parseFontFileName(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if err := b.Register(name, bold, italic, data); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func parseFontFileName(base string) (name string, bold, italic bool) {
	name = base
	style := ""
	if idx := strings.LastIndex(base, "-"); idx > 0 {
		name, style = base[:idx], strings.ToLower(base[idx+1:])
	}
	bold = strings.Contains(style, "bold")
	italic = strings.Contains(style, "italic") || strings.Contains(style, "oblique")
	return name, bold, italic
}

// Resolve picks the font for a CSS font-family list and style.
func (b *FontBook) Resolve(families string, bold, italic bool) *opentype.Font {
	style := styleOf(bold, italic)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, part := range strings.Split(families, ",") {
		key := normalizeFamily(part)
		if key == "" {
			continue
		}
		if fam, ok := b.families[key]; ok {
			if f := fam.pick(style); f != nil {
				return f
			}
		}
		if isMonospace(key) {
			return b.families[FamilyGoMono].pick(style)
		}
	}
	return b.families[FamilyGo].pick(style)
}

// Face returns a face at size pixels. Callers close it when done.
func (b *FontBook) Face(families string, bold, italic bool, size float64) (font.Face, error) {
	if !(size > 0) {
		return nil, fmt.Errorf("font size must be positive, got %v", size)
	}
	face, err := opentype.NewFace(b.Resolve(families, bold, italic), &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

func normalizeFamily(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.ToLower(strings.TrimSpace(s))
}

func isMonospace(key string) bool {
	switch key {
	case "monospace", "courier", "courier new", "consolas", "menlo", "monaco":
		return true
	}
	return strings.Contains(key, "mono")
}
