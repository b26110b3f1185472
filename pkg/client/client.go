package client

import (
	"io"
	"sync/atomic"

	"github.com/google/uuid"

	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/cache"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/pathresolve"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/rpc"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

// rpcClient is the subset of *rpc.ClientStub that Client drives. Extracted
// so the open/compare/close decision logic in protocol.go can be tested
// with a fake standing in for a live two-sided HBI connection.
type rpcClient interface {
	RequestRoot() (rootPath string, err error)
	Open(path string, w io.Writer) (timestamp, size int64, err error)
	Compare(path string, clientTS int64, w io.Writer) (res wire.CompareResult, err error)
	CloseFile(path string, r io.Reader, size int64) (timestamp int64, err error)
	Getattr(path string) (attr wire.Attr, err error)
	Ls(path string) (entries []wire.DirEntry, err error)
	Mkdir(path string, mode uint32) error
	Rename(oldPath, newPath string) error
	Unlink(path string) error
	Truncate(path string, size int64) error
	Subscribe(handler func(wire.Notification)) error
	Close()
}

// Client is the top-level object a file-system bridge drives (spec §6): it
// owns the client-local state (pkg/client/state.go), the on-disk cache
// (pkg/cache), the RPC stub to the server (pkg/rpc), and the notification
// subscriber goroutine.
//
// One Client corresponds to one mounted connection, mirroring jdfc's
// fileSystem in role (jdfc/client.go) though keyed by path rather than
// FUSE inode, since this system has no inode numbers of its own.
type Client struct {
	id        string
	root      string // server export root, as told by RequestRoot
	cacheRoot string

	st    *state
	cache *cache.Store
	rpc   rpcClient

	subscriberDone chan struct{}
	closed         int32
}

// NewClient dials connect, mints a client identifier (spec §3, "process-
// wide state initialized once and immutable thereafter"), asks the server
// for its export root, and starts the notification subscriber.
func NewClient(connect rpc.Connector, cacheRoot string) (*Client, error) {
	id := uuid.NewString()

	store, err := cache.NewStore(cacheRoot)
	if err != nil {
		return nil, err
	}

	stub, err := rpc.Dial(connect, id, nil)
	if err != nil {
		return nil, err
	}

	root, err := stub.RequestRoot()
	if err != nil {
		stub.Close()
		return nil, err
	}

	c := &Client{
		id:             id,
		root:           root,
		cacheRoot:      cacheRoot,
		st:             newState(),
		cache:          store,
		rpc:            stub,
		subscriberDone: make(chan struct{}),
	}

	go c.runSubscriber()

	return c, nil
}

// Close cancels the subscription and joins its task (spec §5, "client
// destructor cancels the subscription RPC and joins its task"), then
// disconnects the RPC stub.
func (c *Client) Close() {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	c.rpc.Close()
	<-c.subscriberDone
}

func (c *Client) closing() bool {
	return atomic.LoadInt32(&c.closed) != 0
}

// resolve turns a bridge-supplied (name, dir) pair into the server-absolute
// path S, per spec §4.1.
func (c *Client) resolve(dir, name string) string {
	if name == "" {
		return pathresolve.ServerPath(c.root, dir)
	}
	return pathresolve.Join(pathresolve.ServerPath(c.root, dir), name)
}

// GetAttributes serves the getattr system call (spec §6).
func (c *Client) GetAttributes(dir, name string) (wire.Attr, error) {
	path := c.resolve(dir, name)

	c.st.mu.Lock()
	if attr, ok := c.st.a[path]; ok {
		c.st.mu.Unlock()
		return attr, nil
	}
	c.st.mu.Unlock()

	attr, err := c.rpc.Getattr(path)
	if err != nil {
		return wire.Attr{}, err
	}
	stampLocalOwner(&attr)

	c.st.mu.Lock()
	c.st.a[path] = attr
	c.st.mu.Unlock()

	return attr, nil
}

// LsContents serves the readdir system call (spec §6): "success ⇒ emit .,
// .., then entries". The "." and ".." synthesis is the bridge's job; this
// returns just the server's entries, mapping a NotFound directory to a
// NotFound error rather than an empty listing (spec §4.8, "ls_contents
// NotFound semantics").
func (c *Client) LsContents(dir string) ([]wire.DirEntry, error) {
	path := pathresolve.ServerPath(c.root, dir)
	return c.rpc.Ls(path)
}

// OpenFile serves the open system call (spec §6), including the O_TRUNC
// convenience of first truncating server-side before running the open/
// compare protocol.
func (c *Client) OpenFile(dir, name string, truncate bool) error {
	path := c.resolve(dir, name)
	if truncate {
		if err := c.rpc.Truncate(path, 0); err != nil {
			return err
		}
	}
	return c.openOrCompare(path)
}

// CreateFile serves the create system call: mkdir-of-parent is assumed
// already satisfied by the bridge's namespace, so this is exactly OpenFile
// against a path expected not to exist yet — the server's open() handles a
// missing file by treating it as zero-length (see pkg/server/fsd.go).
func (c *Client) CreateFile(dir, name string) error {
	return c.OpenFile(dir, name, false)
}

// ReadFile serves the read system call, returning bytes actually copied.
func (c *Client) ReadFile(dir, name string, buf []byte, offset int64) (int, error) {
	path := c.resolve(dir, name)

	c.st.mu.Lock()
	of, open := c.st.o[path]
	c.st.mu.Unlock()
	if !open {
		return 0, afserrors.Of(afserrors.InvalidState, "read of %s without an open handle", path)
	}
	return of.ReadAt(buf, offset)
}

// WriteFile serves the write system call, returning bytes written and
// refreshing A[path].size to satisfy I2 before returning.
func (c *Client) WriteFile(dir, name string, data []byte, offset int64) (int, error) {
	path := c.resolve(dir, name)

	c.st.mu.Lock()
	of, open := c.st.o[path]
	c.st.mu.Unlock()
	if !open {
		return 0, afserrors.Of(afserrors.InvalidState, "write of %s without an open handle", path)
	}

	n, err := of.WriteAt(data, offset)
	if err != nil {
		return n, err
	}

	c.st.mu.Lock()
	if entry, ok := c.st.m[path]; ok {
		entry.locallyModified = true
	}
	c.refreshAttrLocked(path, of.cachePath, c.st.a[path].Mtime)
	c.st.mu.Unlock()

	return n, nil
}

// AppendFile is a convenience helper with no direct system-call counterpart
// in spec §6: it writes data at the file's current cached size, letting a
// caller append without first querying the size itself.
func (c *Client) AppendFile(dir, name string, data []byte) (int, error) {
	path := c.resolve(dir, name)

	c.st.mu.Lock()
	attr, ok := c.st.a[path]
	c.st.mu.Unlock()
	if !ok {
		return 0, afserrors.Of(afserrors.InvalidState, "append to %s without a cached attribute snapshot", path)
	}
	return c.WriteFile(dir, name, data, int64(attr.Size))
}

// CloseFile serves the release system call, which always returns 0
// regardless of internal outcome (spec §6); errors are still returned to
// the caller in case it wants to log them, but the bridge mapping ignores
// them.
func (c *Client) CloseFile(dir, name string) error {
	path := c.resolve(dir, name)
	return c.closeFile(path)
}

// MakeDirectory serves the mkdir system call.
func (c *Client) MakeDirectory(dir string, mode uint32) error {
	path := pathresolve.ServerPath(c.root, dir)
	return c.rpc.Mkdir(path, mode)
}

// RenameFile serves the rename system call, re-keying local state
// eagerly (rather than waiting for the server's RENAME notification) so
// that a caller observing this Client's own state right after the call
// already sees the new name (spec §8 property 6).
func (c *Client) RenameFile(fromName, toName, oldDir, newDir string) error {
	oldPath := c.resolve(oldDir, fromName)
	newPath := c.resolve(newDir, toName)

	if err := c.rpc.Rename(oldPath, newPath); err != nil {
		return err
	}

	c.st.mu.Lock()
	c.st.rekeyLocked(oldPath, newPath, pathresolve.Reprefix)
	c.st.mu.Unlock()

	return nil
}

// DeleteFile serves the unlink/rmdir system calls.
func (c *Client) DeleteFile(fullPath string) error {
	path := pathresolve.ServerPath(c.root, fullPath)
	if err := c.rpc.Unlink(path); err != nil {
		return err
	}

	c.st.mu.Lock()
	c.st.evictLocked(path)
	delete(c.st.o, path) // deletion of an open file: drop bookkeeping outright
	c.st.mu.Unlock()

	cachePath := pathresolve.CachePath(c.cacheRoot, path)
	return c.cache.Remove(cachePath)
}

// TruncateFile serves the truncate system call.
func (c *Client) TruncateFile(dir, name string, size int64) error {
	path := c.resolve(dir, name)
	if err := c.rpc.Truncate(path, size); err != nil {
		return err
	}

	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	if of, open := c.st.o[path]; open {
		if err := of.wf.Truncate(size); err != nil {
			return afserrors.FromHostError("truncate", of.cachePath, err)
		}
		if entry, ok := c.st.m[path]; ok {
			entry.locallyModified = true
		}
		c.refreshAttrLocked(path, of.cachePath, c.st.a[path].Mtime)
	}
	return nil
}
