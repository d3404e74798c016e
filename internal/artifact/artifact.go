// Package artifact stores generated report files.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists a generated file and returns where it can be fetched from.
type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Local writes artifacts into a directory.
type Local struct {
	Dir string
}

func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Local{Dir: abs}, nil
}

// Save writes data to Dir/name and returns the file path.
func (l *Local) Save(ctx context.Context, name, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	path := filepath.Join(l.Dir, clean)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}
