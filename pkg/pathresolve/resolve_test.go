package pathresolve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerPath(t *testing.T) {
	require.Equal(t, "/export/foo/bar", ServerPath("/export", "foo/bar"))
	require.Equal(t, "/export/foo/bar", ServerPath("/export", "/foo/bar"))
	require.Equal(t, "/export", ServerPath("/export", "/"))
	require.Equal(t, "/export", ServerPath("/export", ""))
	require.Equal(t, "/a/b", ServerPath("a", "b"))
}

func TestCachePath(t *testing.T) {
	require.Equal(t, "/cache/foo/bar", CachePath("/cache", "/foo/bar"))
	require.Equal(t, "/cache/foo/bar", CachePath("/cache/", "foo/bar"))
}

func TestBaseAndDirName(t *testing.T) {
	require.Equal(t, "bar", BaseName("/foo/bar"))
	require.Equal(t, "/foo", DirName("/foo/bar"))
}

func TestJoin(t *testing.T) {
	require.Equal(t, "/foo/bar", Join("/foo", "bar"))
}

func TestHasPrefix(t *testing.T) {
	require.True(t, HasPrefix("/a/b", "/a"))
	require.True(t, HasPrefix("/a", "/a"))
	require.False(t, HasPrefix("/ab", "/a"))
	require.False(t, HasPrefix("/a/b", "/x"))
}

func TestReprefixMatching(t *testing.T) {
	require.Equal(t, "/new/b", Reprefix("/old/b", "/old", "/new"))
	require.Equal(t, "/new", Reprefix("/old", "/old", "/new"))
	require.Equal(t, "/new/deep/nested", Reprefix("/old/deep/nested", "/old", "/new"))
}

// Reprefix must be a no-op identity function on paths that do not sit
// under oldPrefix, since rekeyLocked calls it unconditionally across every
// entry of a map instead of pre-filtering by prefix.
func TestReprefixNonMatchingIsNoOp(t *testing.T) {
	require.Equal(t, "/unrelated/b", Reprefix("/unrelated/b", "/old", "/new"))
	require.Equal(t, "/oldish/b", Reprefix("/oldish/b", "/old", "/new"))
	require.Equal(t, "/old2", Reprefix("/old2", "/old", "/new"))
}
