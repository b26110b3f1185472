package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/pathresolve"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

func TestNewStateIsEmpty(t *testing.T) {
	s := newState()
	require.Empty(t, s.m)
	require.Empty(t, s.o)
	require.Empty(t, s.a)
}

func TestIsOpen(t *testing.T) {
	s := newState()
	require.False(t, s.isOpen("/a"))
	s.o["/a"] = &openFile{}
	require.True(t, s.isOpen("/a"))
}

func TestCheckInvariant1PanicsWhenOpenWithoutCacheEntry(t *testing.T) {
	s := newState()
	s.o["/a"] = &openFile{}
	require.Panics(t, func() { s.checkInvariant1("/a") })
}

func TestCheckInvariant1OKWhenBothPresent(t *testing.T) {
	s := newState()
	s.o["/a"] = &openFile{}
	s.m["/a"] = &cacheEntry{}
	require.NotPanics(t, func() { s.checkInvariant1("/a") })
}

func TestEvictLockedRemovesClosedEntry(t *testing.T) {
	s := newState()
	s.m["/a"] = &cacheEntry{}
	s.a["/a"] = wire.Attr{Size: 5}

	ok := s.evictLocked("/a")
	require.True(t, ok)
	_, cached := s.m["/a"]
	require.False(t, cached)
	_, attred := s.a["/a"]
	require.False(t, attred)
}

func TestEvictLockedSkipsOpenEntry(t *testing.T) {
	s := newState()
	s.m["/a"] = &cacheEntry{}
	s.o["/a"] = &openFile{}

	ok := s.evictLocked("/a")
	require.False(t, ok)
	_, cached := s.m["/a"]
	require.True(t, cached, "I3: open entries must not be evicted")
}

func TestRekeyLockedMovesMatchingEntries(t *testing.T) {
	s := newState()
	s.m["/old/a"] = &cacheEntry{name: "a"}
	s.m["/old/sub/b"] = &cacheEntry{name: "b"}
	s.m["/unrelated"] = &cacheEntry{name: "u"}
	s.a["/old/a"] = wire.Attr{Size: 1}

	s.rekeyLocked("/old", "/new", pathresolve.Reprefix)

	_, oldGone := s.m["/old/a"]
	require.False(t, oldGone)
	moved, ok := s.m["/new/a"]
	require.True(t, ok)
	require.Equal(t, "a", moved.name)

	movedSub, ok := s.m["/new/sub/b"]
	require.True(t, ok)
	require.Equal(t, "b", movedSub.name)

	_, unrelatedStillThere := s.m["/unrelated"]
	require.True(t, unrelatedStillThere)

	_, attrMoved := s.a["/new/a"]
	require.True(t, attrMoved)
}

// A file renamed while still open on this client must keep its handle
// pair reachable under the new path: rekeyLocked has to move O alongside
// M/A or a later ReadFile/WriteFile/CloseFile against the new name fails
// with InvalidState even though the file is genuinely open (I1).
func TestRekeyLockedMovesOpenHandle(t *testing.T) {
	s := newState()
	s.m["/old/a"] = &cacheEntry{name: "a"}
	of := &openFile{path: "/old/a", cachePath: "/cache/old/a"}
	s.o["/old/a"] = of

	s.rekeyLocked("/old", "/new", pathresolve.Reprefix)

	_, oldStillOpen := s.o["/old/a"]
	require.False(t, oldStillOpen)

	moved, ok := s.o["/new/a"]
	require.True(t, ok, "renamed-while-open file must still be reachable via O under its new path")
	require.Same(t, of, moved)
	require.Equal(t, "/new/a", moved.path)

	require.NotPanics(t, func() { s.checkInvariant1("/new/a") })
}

func TestRekeyLockedLeavesUnrelatedOpenHandleAlone(t *testing.T) {
	s := newState()
	s.m["/unrelated"] = &cacheEntry{name: "u"}
	of := &openFile{path: "/unrelated", cachePath: "/cache/unrelated"}
	s.o["/unrelated"] = of

	s.rekeyLocked("/old", "/new", pathresolve.Reprefix)

	still, ok := s.o["/unrelated"]
	require.True(t, ok)
	require.Equal(t, "/unrelated", still.path)
}
