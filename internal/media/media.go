// Package media deletes uploaded blobs referenced by purged messages.
// Uploads themselves are handled by an external service that hands the
// engine a ready-made media URL.
package media

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// BlobStore removes media blobs by their stored URL. Deletion is always
// best-effort: a dangling blob is acceptable, a dangling DB row is not.
type BlobStore interface {
	// Remove deletes the blob behind url. Removing a blob that is already
	// gone is not an error.
	Remove(url string) error
}

// DirStore removes blobs from a local upload directory, resolving a URL to
// a file by its base name so path segments in the URL cannot escape the dir.
type DirStore struct {
	dir string
}

// NewDirStore creates a DirStore rooted at dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &DirStore{dir: dir}, nil
}

// Remove deletes the file the URL refers to, if it exists.
func (s *DirStore) Remove(url string) error {
	name := filepath.Base(url)
	if name == "." || name == string(filepath.Separator) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Discard is a BlobStore that drops every request. Used when no media
// directory is configured.
type Discard struct{}

func (Discard) Remove(string) error { return nil }
