package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/freekieb7/storefront/filesystem"
)

// DiskStore writes files into a directory served as static content.
type DiskStore struct {
	dir string
	fs  filesystem.Filesystem
	now func() time.Time
}

func NewDiskStore(dir string, fs filesystem.Filesystem) *DiskStore {
	return &DiskStore{dir: dir, fs: fs, now: time.Now}
}

func (s *DiskStore) Dir() string {
	return s.dir
}

// Put writes data as <unix-ms>-<basename> and returns that name.
func (s *DiskStore) Put(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := SafeName(s.now(), filename, contentType)

	target, err := filesystem.Within(s.dir, name)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	if err := s.fs.WriteFile(target, data); err != nil {
		return "", fmt.Errorf("upload: writing %s: %w", name, err)
	}

	return filepath.Base(target), nil
}
