package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidPath = errors.New("invalid_storage_path")

// LocalProvider keeps objects under a root directory.
type LocalProvider struct {
	root string
}

func NewLocalProvider(root string) *LocalProvider {
	return &LocalProvider{root: root}
}

func (p *LocalProvider) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(path))
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(p.root, clean), nil
}

func (p *LocalProvider) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	full, err := p.resolve(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrContentUnavailable, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrContentUnavailable, path, err)
	}
	return data, nil
}

func (p *LocalProvider) Put(ctx context.Context, path string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := p.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}
