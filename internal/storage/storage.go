// Package storage holds uploaded audio and image bytes, addressed by key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/errs"
)

// Object kinds, used as key prefixes.
const (
	KindAudio         = "audio"
	KindCover         = "covers"
	KindPlaylistCover = "playlist-covers"
)

// Store is a flat key/value byte store. Missing keys are reported as
// errs.ErrNotFound by Stat and Open.
type Store interface {
	// Save writes r under key and returns the number of bytes stored.
	Save(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	// Stat returns the stored size of key.
	Stat(ctx context.Context, key string) (int64, error)
	// Open returns a reader over length bytes starting at offset.
	Open(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// BuildObjectKey creates a namespaced key that keeps the upload's extension.
func BuildObjectKey(kind, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%s/%s%s", kind, uuid.New().String(), ext)
}

// Exists reports whether key is present.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// validKey rejects keys that could escape the store's namespace.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("storage key %q: %w", key, errs.ErrInvalidInput)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("storage key %q: %w", key, errs.ErrInvalidInput)
		}
	}
	return nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
