package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mondb-dev/x402-wp/internal/mimes"
)

// Filesystem serves content from files below a root directory.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) *Filesystem {
	return &Filesystem{root: root}
}

func (fs *Filesystem) Fetch(ctx context.Context, location string) (*Object, error) {
	path, err := fs.resolve(location)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}

	return &Object{
		Name:        filepath.Base(path),
		ContentType: mimes.FromFilenameOrDefault(path),
		Data:        data,
	}, nil
}

// resolve keeps location inside the root directory.
func (fs *Filesystem) resolve(location string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(location, "file://"))
	path := filepath.Join(fs.root, clean)

	rel, err := filepath.Rel(fs.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q is outside the content root", ErrNotFound, location)
	}
	return path, nil
}
