// Package cache implements the Cache Store component (spec §4.2): the
// client's on-disk cache directory, with atomic whole-file replacement,
// size/mtime queries, resize and delete, all delegated to ordinary host
// filesystem primitives (spec §1, "on-disk byte storage ... delegated to the
// host operating system's ordinary file primitives").
package cache

import (
	"io"
	"os"
	"path/filepath"

	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
	"github.com/golang/glog"
)

// Store owns operations against files under a client's cache root. It holds
// no state of its own beyond the root path: all bookkeeping about what is
// cached lives in the Metadata Map (pkg/client).
type Store struct {
	root string
}

// NewStore constructs a Store rooted at root, creating it if necessary.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, afserrors.FromHostError("mkdir", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

// CreateDirs ensures the parent directory of cachePath exists.
func (s *Store) CreateDirs(cachePath string) error {
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return afserrors.FromHostError("mkdir", dir, err)
	}
	return nil
}

// Size returns the current size in bytes of the cache file, or NotFound.
func (s *Store) Size(cachePath string) (int64, error) {
	fi, err := os.Stat(cachePath)
	if err != nil {
		return 0, afserrors.FromHostError("stat", cachePath, err)
	}
	return fi.Size(), nil
}

// Mtime returns the modification time of the cache file, in nanoseconds
// since epoch.
func (s *Store) Mtime(cachePath string) (int64, error) {
	fi, err := os.Stat(cachePath)
	if err != nil {
		return 0, afserrors.FromHostError("stat", cachePath, err)
	}
	return fi.ModTime().UnixNano(), nil
}

// ReadBytes reads up to len bytes at offset from the cache file.
func (s *Store) ReadBytes(cachePath string, offset int64, length int) ([]byte, error) {
	f, err := os.Open(cachePath)
	if err != nil {
		return nil, afserrors.FromHostError("open", cachePath, err)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, afserrors.FromHostError("read", cachePath, err)
	}
	return buf[:n], nil
}

// WriteBytes writes data at offset into the cache file, creating it if
// necessary. Writing past the current end of file extends it with
// unspecified filler bytes; hole semantics beyond that are whatever the
// host filesystem provides (spec §4.2).
func (s *Store) WriteBytes(cachePath string, offset int64, data []byte) error {
	if err := s.CreateDirs(cachePath); err != nil {
		return err
	}
	f, err := os.OpenFile(cachePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return afserrors.FromHostError("open", cachePath, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return afserrors.FromHostError("write", cachePath, err)
	}
	return nil
}

// Truncate resizes the cache file to size bytes.
func (s *Store) Truncate(cachePath string, size int64) error {
	if err := os.Truncate(cachePath, size); err != nil {
		return afserrors.FromHostError("truncate", cachePath, err)
	}
	return nil
}

// AtomicReplace fully overwrites the cache file with the content read from
// src, via a temp file plus rename so that the file at cachePath is always
// either the whole old content or the whole new content, never a
// half-written file. A handle opened before this call stays on the old,
// replaced file and does not see the new content until it is closed and
// reopened -- callers are required to close and reopen handles around
// invalidation, which is exactly why invalidation is skipped while a file
// is open locally (spec §4.6 I3).
func (s *Store) AtomicReplace(cachePath string, src io.Reader) error {
	if err := s.CreateDirs(cachePath); err != nil {
		return err
	}
	dir := filepath.Dir(cachePath)
	tmp, err := os.CreateTemp(dir, ".afscache-*")
	if err != nil {
		return afserrors.FromHostError("create-temp", cachePath, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return afserrors.FromHostError("write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return afserrors.FromHostError("close", tmpPath, err)
	}
	if err := os.Rename(tmpPath, cachePath); err != nil {
		return afserrors.FromHostError("rename", cachePath, err)
	}
	tmpPath = "" // renamed away, nothing left to clean up
	s.logf("cache: replaced %s", cachePath)
	return nil
}

// Remove deletes the cache file if present. Removing an absent file is not
// an error.
func (s *Store) Remove(cachePath string) error {
	if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
		return afserrors.FromHostError("remove", cachePath, err)
	}
	return nil
}

// Exists reports whether the cache file is present.
func (s *Store) Exists(cachePath string) bool {
	_, err := os.Stat(cachePath)
	return err == nil
}

func (s *Store) logf(format string, args ...interface{}) {
	if glog.V(2) {
		glog.Infof(format, args...)
	}
}
