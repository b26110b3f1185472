package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/cache"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

// newBareClient builds a *Client with no live RPC stub, for exercising the
// parts of the bridge-facing API that don't need the network: path
// resolution, cache-hit fast paths, and attribute-snapshot bookkeeping.
func newBareClient(t *testing.T) *Client {
	t.Helper()
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	return &Client{
		root:      "/export",
		cacheRoot: store.Root(),
		st:        newState(),
		cache:     store,
	}
}

func TestResolveWithName(t *testing.T) {
	c := newBareClient(t)
	require.Equal(t, "/export/dir/file", c.resolve("/dir", "file"))
}

func TestResolveDirOnly(t *testing.T) {
	c := newBareClient(t)
	require.Equal(t, "/export/dir", c.resolve("/dir", ""))
}

func TestGetAttributesCacheHitSkipsRPC(t *testing.T) {
	c := newBareClient(t)
	path := c.resolve("/dir", "file")
	c.st.a[path] = wire.Attr{Size: 42}

	attr, err := c.GetAttributes("/dir", "file")
	require.NoError(t, err)
	require.EqualValues(t, 42, attr.Size)
}

func TestRefreshAttrLockedComputesSizeAndTimestamps(t *testing.T) {
	c := newBareClient(t)
	cachePath := filepath.Join(c.cache.Root(), "file")
	require.NoError(t, os.WriteFile(cachePath, []byte("0123456789"), 0644))

	c.st.mu.Lock()
	c.refreshAttrLocked("/file", cachePath, 1000)
	c.st.mu.Unlock()

	attr := c.st.a["/file"]
	require.EqualValues(t, 10, attr.Size)
	require.EqualValues(t, 1000, attr.Mtime)
	require.EqualValues(t, 1000, attr.Ctime)
	require.NotZero(t, attr.Mode)
	require.EqualValues(t, 1, attr.Nlink)
}

// refreshAttrLocked must stamp the invoking user's own uid/gid, overriding
// whatever the server-reported attribute carried (spec §3 ownership
// rewrite), never the server process's identity.
func TestRefreshAttrLockedRewritesOwnerToLocalUser(t *testing.T) {
	c := newBareClient(t)
	cachePath := filepath.Join(c.cache.Root(), "file")
	require.NoError(t, os.WriteFile(cachePath, []byte("x"), 0644))

	c.st.a["/file"] = wire.Attr{Uid: 99999, Gid: 99999}
	c.st.mu.Lock()
	c.refreshAttrLocked("/file", cachePath, 5)
	c.st.mu.Unlock()

	attr := c.st.a["/file"]
	require.EqualValues(t, os.Getuid(), attr.Uid)
	require.EqualValues(t, os.Getgid(), attr.Gid)
}

func TestRefreshAttrLockedPreservesExistingMode(t *testing.T) {
	c := newBareClient(t)
	cachePath := filepath.Join(c.cache.Root(), "file")
	require.NoError(t, os.WriteFile(cachePath, []byte("x"), 0644))

	c.st.a["/file"] = wire.Attr{Mode: 0755, Nlink: 3}
	c.st.mu.Lock()
	c.refreshAttrLocked("/file", cachePath, 5)
	c.st.mu.Unlock()

	attr := c.st.a["/file"]
	require.EqualValues(t, 0755, attr.Mode)
	require.EqualValues(t, 3, attr.Nlink)
}

func TestStampLocalOwner(t *testing.T) {
	attr := wire.Attr{Uid: 12345, Gid: 12345}
	stampLocalOwner(&attr)
	require.EqualValues(t, os.Getuid(), attr.Uid)
	require.EqualValues(t, os.Getgid(), attr.Gid)
}

func TestAppendFileWithoutCachedAttrIsInvalidState(t *testing.T) {
	c := newBareClient(t)
	_, err := c.AppendFile("/dir", "file", []byte("x"))
	require.True(t, afserrors.Is(err, afserrors.InvalidState))
}

func TestReadFileWithoutOpenHandleIsInvalidState(t *testing.T) {
	c := newBareClient(t)
	_, err := c.ReadFile("/dir", "file", make([]byte, 4), 0)
	require.True(t, afserrors.Is(err, afserrors.InvalidState))
}

func TestWriteFileWithoutOpenHandleIsInvalidState(t *testing.T) {
	c := newBareClient(t)
	_, err := c.WriteFile("/dir", "file", []byte("x"), 0)
	require.True(t, afserrors.Is(err, afserrors.InvalidState))
}
