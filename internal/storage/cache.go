package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/logger"
	"golang.org/x/sync/singleflight"
)

// Cached keeps a local disk copy of objects read from a remote store.
// The first Open of a key downloads the whole object; later range reads
// are served from disk. Writes go to the remote store only.
type Cached struct {
	remote Store
	local  *Local

	// downloads collapses concurrent fills of one key into a single
	// remote read. It keeps no entry once a fill returns.
	downloads singleflight.Group
}

func NewCached(remote Store, local *Local) *Cached {
	return &Cached{remote: remote, local: local}
}

func (c *Cached) isCached(ctx context.Context, key string) bool {
	ok, err := Exists(ctx, c.local, key)
	return err == nil && ok
}

func (c *Cached) Save(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	return c.remote.Save(ctx, key, r, contentType)
}

func (c *Cached) Stat(ctx context.Context, key string) (int64, error) {
	if size, err := c.local.Stat(ctx, key); err == nil {
		return size, nil
	}
	return c.remote.Stat(ctx, key)
}

// Open serves from the cache, filling it first when needed. If the fill
// fails the range is read from the remote store directly.
func (c *Cached) Open(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	if c.isCached(ctx, key) {
		return c.local.Open(ctx, key, offset, length)
	}

	if err := c.fill(ctx, key); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		logger.Warn("cache fill failed, reading remote object", logger.String("key", key), logger.ErrorField(err))
		return c.remote.Open(ctx, key, offset, length)
	}
	return c.local.Open(ctx, key, offset, length)
}

func (c *Cached) fill(ctx context.Context, key string) error {
	_, err, _ := c.downloads.Do(key, func() (interface{}, error) {
		return nil, c.download(ctx, key)
	})
	return err
}

func (c *Cached) download(ctx context.Context, key string) error {
	// Another request may have filled it between our check and the flight.
	if c.isCached(ctx, key) {
		return nil
	}

	size, err := c.remote.Stat(ctx, key)
	if err != nil {
		return err
	}
	src, err := c.remote.Open(ctx, key, 0, size)
	if err != nil {
		return err
	}
	defer src.Close()

	n, err := c.local.Save(ctx, key, src, "")
	if err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	if n != size {
		_ = c.local.Delete(ctx, key)
		return fmt.Errorf("cached %d of %d bytes for %s", n, size, key)
	}
	logger.Debug("object cached", logger.String("key", key), logger.Int64("bytes", n))
	return nil
}

// Delete removes the object remotely and from the cache.
func (c *Cached) Delete(ctx context.Context, key string) error {
	if err := c.remote.Delete(ctx, key); err != nil {
		return err
	}
	return c.local.Delete(ctx, key)
}
