package template

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirStore reads templates from <dir>/<name>.html on every load
type DirStore struct {
	dir string
}

// NewDirStore creates a store rooted at dir
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Load implements Store
func (s *DirStore) Load(ctx context.Context, name string) (*Template, error) {
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return nil, fmt.Errorf("invalid template name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name+".html"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s.html", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	html := string(data)
	return &Template{
		Name:         name,
		HTML:         html,
		Placeholders: Placeholders(html),
	}, nil
}
