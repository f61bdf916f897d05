// Package sparsefile owns the local image file (C3): pre-sizing it to the
// volume's logical size and performing concurrent-safe positional writes of
// individual blocks.
package sparsefile

import (
	"fmt"
	"os"

	"github.com/RhinoSecurityLabs/dsnap/pkg/dsnaperr"
)

// Prepare creates (or truncates) the image at path to exactly size bytes.
// If path already exists and force is false, it fails with
// dsnaperr.KindOutputExists without touching the file. The parent directory
// of path must already exist.
func Prepare(path string, size int64, force bool) error {
	if _, err := os.Stat(path); err == nil {
		if !force {
			return dsnaperr.New(dsnaperr.KindOutputExists, fmt.Errorf("output path %q already exists", path))
		}
	} else if !os.IsNotExist(err) {
		return dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("stat %q: %w", path, err))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("create %q: %w", path, err))
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		return dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("truncate %q to %d bytes: %w", path, size, err))
	}
	if err := f.Sync(); err != nil {
		return dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("sync %q: %w", path, err))
	}
	return nil
}

// WriteAt opens path write-only, writes data at offset with a positional
// write (no seek), syncs, and closes — a fresh file descriptor per call. Concurrent callers each use a
// private open; the OS serializes the underlying positional writes, so no
// in-process locking is required here. Returns the number of bytes written.
func WriteAt(path string, offset int64, data []byte) (int, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return 0, dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("open %q: %w", path, err))
	}
	defer f.Close()

	n, err := f.WriteAt(data, offset)
	if err != nil {
		return n, dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("write_at %q offset %d: %w", path, offset, err))
	}
	if err := f.Sync(); err != nil {
		return n, dsnaperr.New(dsnaperr.KindIO, fmt.Errorf("sync %q: %w", path, err))
	}
	return n, nil
}
