package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/soundvault/backend/internal/errs"
)

// Local stores objects as files below a root directory.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) path(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

// Save streams r to a temporary file and renames it into place, so a
// reader never observes a partially written object.
func (l *Local) Save(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	absPath, err := l.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return 0, err
	}

	tmp := absPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	if err := f.Sync(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

func (l *Local) Stat(ctx context.Context, key string) (int64, error) {
	absPath, err := l.path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("object %s: %w", key, errs.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("object %s: %w", key, errs.ErrNotFound)
	}
	return info.Size(), nil
}

func (l *Local) Open(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	absPath, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %s: %w", key, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	return readCloser{Reader: io.LimitReader(f, length), Closer: f}, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	absPath, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(absPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
