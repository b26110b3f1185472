package client

import (
	"bytes"
	"os"

	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/pathresolve"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
	"github.com/golang/glog"
)

// openOrCompare implements the open/compare protocol of spec §4.5. path is
// already the server-absolute path S; cachePath is C = cache_root ⊕ S.
//
// The coarse mutex is held only for the map consultations/mutations at the
// start and end of each branch; the network and disk I/O in between runs
// unlocked (spec §5, "MUST NOT hold any mutex across a network operation").
func (c *Client) openOrCompare(path string) error {
	c.st.mu.Lock()
	entry, cached := c.st.m[path]
	if cached && c.st.isOpen(path) {
		// idempotent open (spec §9, "ambiguous already-open policy" resolved
		// as: repeated open is a successful no-op).
		c.st.mu.Unlock()
		return nil
	}
	c.st.mu.Unlock()

	cachePath := pathresolve.CachePath(c.cacheRoot, path)

	if !cached {
		return c.freshOpen(path, cachePath)
	}
	return c.compareAndRefresh(path, cachePath, entry.timestamp)
}

// freshOpen streams the whole file from the server into a new cache file
// and allocates a handle pair, the "M[S] absent" branch of spec §4.5.
func (c *Client) freshOpen(path, cachePath string) error {
	if err := c.cache.CreateDirs(cachePath); err != nil {
		return err
	}

	f, err := os.OpenFile(cachePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return afserrors.FromHostError("open", cachePath, err)
	}

	timestamp, _, err := c.rpc.Open(path, f)
	closeErr := f.Close()
	if err != nil {
		os.Remove(cachePath)
		return err
	}
	if closeErr != nil {
		return afserrors.FromHostError("close", cachePath, closeErr)
	}

	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	c.st.m[path] = &cacheEntry{
		name:      pathresolve.BaseName(path),
		timestamp: timestamp,
	}
	of, err := openHandlePair(path, cachePath)
	if err != nil {
		delete(c.st.m, path)
		return err
	}
	c.st.o[path] = of
	c.refreshAttrLocked(path, cachePath, timestamp)
	c.st.checkInvariant1(path)
	return nil
}

// compareAndRefresh implements the "M[S] present, S ∉ O" branch: it asks
// the server whether the cached copy at clientTS is still current, and
// atomically replaces the cache file if not.
func (c *Client) compareAndRefresh(path, cachePath string, clientTS int64) error {
	var buf bytes.Buffer
	res, err := c.rpc.Compare(path, clientTS, &buf)
	if err != nil {
		return err
	}

	c.st.mu.Lock()
	entry, ok := c.st.m[path]
	if !ok {
		// evicted by a racing notification between the unlock above and
		// here; treat as a fresh open.
		c.st.mu.Unlock()
		return c.freshOpen(path, cachePath)
	}
	c.st.mu.Unlock()

	if res.Updated {
		if err := c.cache.AtomicReplace(cachePath, &buf); err != nil {
			return err
		}
	}

	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	entry.timestamp = res.Timestamp
	entry.locallyModified = false

	of, err := openHandlePair(path, cachePath)
	if err != nil {
		return err
	}
	c.st.o[path] = of
	c.refreshAttrLocked(path, cachePath, res.Timestamp)
	c.st.checkInvariant1(path)
	return nil
}

// closeFile implements the close protocol of spec §4.6.
func (c *Client) closeFile(path string) error {
	c.st.mu.Lock()
	of, open := c.st.o[path]
	entry, cached := c.st.m[path]
	if !open || !cached {
		c.st.mu.Unlock()
		return afserrors.Of(afserrors.InvalidState, "close of %s without an open handle", path)
	}
	modified := entry.locallyModified
	c.st.mu.Unlock()

	if !modified {
		of.closeDiscard()
		c.st.mu.Lock()
		delete(c.st.o, path)
		c.st.mu.Unlock()
		return nil
	}

	streamF, err := of.closeForFlush()
	if err != nil {
		return err
	}
	defer streamF.Close()

	fi, err := streamF.Stat()
	if err != nil {
		return afserrors.FromHostError("stat", of.cachePath, err)
	}

	timestamp, err := c.rpc.CloseFile(path, streamF, fi.Size())
	if err != nil {
		return err
	}

	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	entry.timestamp = timestamp
	entry.locallyModified = false
	c.refreshAttrLocked(path, of.cachePath, timestamp)
	delete(c.st.o, path)

	if glog.V(1) {
		glog.Infof("client: closed %s, flushed %d bytes, server ts=%d", path, fi.Size(), timestamp)
	}
	return nil
}

// refreshAttrLocked recomputes A[path].size/mtime/ctime from the cache file
// and the server timestamp, satisfying I2/I4. Caller must hold c.st.mu.
func (c *Client) refreshAttrLocked(path, cachePath string, serverTS int64) {
	size, err := c.cache.Size(cachePath)
	if err != nil {
		glog.Warningf("client: refreshAttr stat %s: %+v", cachePath, err)
		return
	}
	attr := c.st.a[path]
	attr.Size = uint64(size)
	attr.Mtime = serverTS
	attr.Ctime = serverTS
	if attr.Mode == 0 {
		attr.Mode = 0644
		attr.Nlink = 1
	}
	stampLocalOwner(&attr)
	c.st.a[path] = attr
}

// stampLocalOwner rewrites attr's uid/gid to the invoking user's own,
// overriding whatever the server reported (spec §3, "rewritten to the
// local invoking user"; mirrored from getuid()/getgid() at the point the
// original client cached an attribute).
func stampLocalOwner(attr *wire.Attr) {
	attr.Uid = uint32(os.Getuid())
	attr.Gid = uint32(os.Getgid())
}
