package workshop

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirLoader reads compositions from <dir>/<id>.json, each holding the same
// envelope the API returns. It serves offline exports and fixtures.
type DirLoader struct {
	dir string
}

func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

func (d *DirLoader) FetchComposition(ctx context.Context, id string) (*Composition, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	id = strings.TrimSpace(id)
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("%w: invalid composition id %q", ErrLoad, id)
	}

	path := filepath.Join(d.dir, id+".json")
	fp, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w: %s", ErrLoad, ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer fp.Close()

	comp, err := decodeComposition(id, fp)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return comp, nil
}

// IDs lists the composition ids present in the directory, sorted.
func (d *DirLoader) IDs() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(ids)
	return ids, nil
}
