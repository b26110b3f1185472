package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
)

func TestNewStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	s, err := NewStore(root)
	require.NoError(t, err)
	require.Equal(t, root, s.Root())

	fi, err := os.Stat(root)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestWriteAndReadBytes(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cp := filepath.Join(s.Root(), "a", "b", "file")
	require.NoError(t, s.WriteBytes(cp, 0, []byte("hello")))

	got, err := s.ReadBytes(cp, 0, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestWriteBytesPartialOverwrite(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cp := filepath.Join(s.Root(), "file")
	require.NoError(t, s.WriteBytes(cp, 0, []byte("hello world")))
	require.NoError(t, s.WriteBytes(cp, 6, []byte("there")))

	got, err := s.ReadBytes(cp, 0, 11)
	require.NoError(t, err)
	require.Equal(t, []byte("hello there"), got)
}

func TestSizeAndMtime(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cp := filepath.Join(s.Root(), "file")
	require.NoError(t, s.WriteBytes(cp, 0, []byte("0123456789")))

	size, err := s.Size(cp)
	require.NoError(t, err)
	require.EqualValues(t, 10, size)

	mtime, err := s.Mtime(cp)
	require.NoError(t, err)
	require.Greater(t, mtime, int64(0))
}

func TestSizeOnMissingFileIsNotFound(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Size(filepath.Join(s.Root(), "nope"))
	require.True(t, afserrors.Is(err, afserrors.NotFound))
}

func TestTruncate(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cp := filepath.Join(s.Root(), "file")
	require.NoError(t, s.WriteBytes(cp, 0, []byte("0123456789")))
	require.NoError(t, s.Truncate(cp, 4))

	size, err := s.Size(cp)
	require.NoError(t, err)
	require.EqualValues(t, 4, size)
}

func TestAtomicReplace(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cp := filepath.Join(s.Root(), "sub", "file")
	require.NoError(t, s.WriteBytes(cp, 0, []byte("stale content")))

	require.NoError(t, s.AtomicReplace(cp, bytes.NewReader([]byte("fresh"))))

	got, err := s.ReadBytes(cp, 0, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), got)

	// no leftover temp file in the same directory
	entries, err := os.ReadDir(filepath.Dir(cp))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRemoveMissingIsNotAnError(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Remove(filepath.Join(s.Root(), "nope")))
}

func TestExists(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	cp := filepath.Join(s.Root(), "file")
	require.False(t, s.Exists(cp))
	require.NoError(t, s.WriteBytes(cp, 0, []byte("x")))
	require.True(t, s.Exists(cp))
	require.NoError(t, s.Remove(cp))
	require.False(t, s.Exists(cp))
}
