// Package files manages the scratch directory where uploads and generated
// documents are staged before they land in permanent storage.
package files

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultMaxIdle is how long a scratch file may go untouched before the
// cleanup sweep removes it.
const DefaultMaxIdle = 24 * time.Hour

// Cleanup sweeps the scratch directory, deleting files that have sat idle
// longer than MaxIdle. Subdirectories named in Keep hold permanent artifacts
// and are never entered.
type Cleanup struct {
	Root    string
	Keep    []string
	MaxIdle time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// NewCleanup constructs a sweep over root protecting the keep directories.
func NewCleanup(root string, keep []string, logger *slog.Logger) *Cleanup {
	return &Cleanup{
		Root:    root,
		Keep:    keep,
		MaxIdle: DefaultMaxIdle,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (c *Cleanup) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

func (c *Cleanup) kept(name string) bool {
	for _, k := range c.Keep {
		if name == k {
			return true
		}
	}
	return false
}

// RemoveIdleFiles deletes every file under Root outside the keep
// directories whose modification time is older than MaxIdle. A missing root
// is not an error; the directory appears with the first upload.
func (c *Cleanup) RemoveIdleFiles(ctx context.Context) error {
	cutoff := c.now().Add(-c.MaxIdle)
	removed := 0

	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.Root && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != c.Root && c.kept(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		c.logger.Info("scratch files swept",
			slog.String("root", c.Root),
			slog.Int("removed", removed),
		)
	}
	return nil
}
