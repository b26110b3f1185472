// Package client implements the client side of the system: the Metadata
// Map, Open-File Table and Attribute snapshot map of spec §4.3, the
// open/compare and close protocols of §4.5/§4.6, the Notification
// Subscriber of §4.7, and the top-level Client bridge API of §6.
package client

import (
	"sync"

	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
	"github.com/golang/glog"
)

// cacheEntry is one entry of the Metadata Map M (spec §4.3).
type cacheEntry struct {
	name             string // basename(path), kept for convenience only
	timestamp        int64  // last known server timestamp
	locallyModified  bool
}

// state holds the three maps spec §4.3 requires and the single coarse mutex
// guarding all of them: a flat registry keyed by server-absolute path,
// since this system has no inode numbers of its own.
type state struct {
	mu sync.Mutex

	m map[string]*cacheEntry     // M: path -> cache entry
	o map[string]*openFile       // O: path -> open-file handle pair
	a map[string]wire.Attr       // A: path -> attribute snapshot
}

func newState() *state {
	return &state{
		m: make(map[string]*cacheEntry),
		o: make(map[string]*openFile),
		a: make(map[string]wire.Attr),
	}
}

// isOpen reports whether path currently has an entry in O. Caller must hold
// s.mu.
func (s *state) isOpen(path string) bool {
	_, ok := s.o[path]
	return ok
}

// checkInvariant1 is a best-effort, panic-on-violation assertion of I1
// (O[p] exists ⇒ M[p] exists), run under s.mu after every mutation that
// touches O or M. Kept cheap: a single map lookup, not a full walk.
func (s *state) checkInvariant1(path string) {
	if _, open := s.o[path]; open {
		if _, cached := s.m[path]; !cached {
			panic(afserrors.Of(afserrors.InvalidState,
				"I1 violated: %s open without a cache entry", path))
		}
	}
}

// evictLocked removes path from M and A, provided it is not currently open
// (I3). It reports whether the eviction actually happened, so callers can
// log the skip case distinctly (spec §4.3 I3, §4.7).
func (s *state) evictLocked(path string) bool {
	if s.isOpen(path) {
		if glog.V(1) {
			glog.Infof("client: skipping invalidation of %s, open locally (I3)", path)
		}
		return false
	}
	delete(s.m, path)
	delete(s.a, path)
	return true
}

// rekeyLocked moves every entry in M, A and O keyed at or under oldPath to
// the corresponding key under newPath, per spec §8 property 6. reprefix is
// injected so this package does not need to import pkg/pathresolve for a
// single string operation; pkg/client/client.go supplies pathresolve.Reprefix.
//
// O must move alongside M/A: a file renamed while still open on this
// client keeps its handle pair, so a rename can never orphan an open()
// against the pre-rename path and violate I1 (O[p] exists ⇒ M[p] exists).
func (s *state) rekeyLocked(oldPath, newPath string, reprefix func(p, oldPrefix, newPrefix string) string) {
	for p, ce := range s.m {
		if np := reprefix(p, oldPath, newPath); np != p {
			delete(s.m, p)
			s.m[np] = ce
		}
	}
	for p, attr := range s.a {
		if np := reprefix(p, oldPath, newPath); np != p {
			delete(s.a, p)
			s.a[np] = attr
		}
	}
	for p, of := range s.o {
		if np := reprefix(p, oldPath, newPath); np != p {
			delete(s.o, p)
			of.path = np
			s.o[np] = of
		}
	}
}
