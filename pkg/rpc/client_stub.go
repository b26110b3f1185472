// Package rpc implements the RPC Client Stub (spec §4.4) and the connection
// bootstrap shared by client and server: unary, server-streaming and
// client-streaming calls carried over an HBI connection, with the 3-attempt
// retry policy spec §4.4 requires for the idempotent open/compare/close
// calls.
package rpc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/complyue/hbi"
	"github.com/complyue/hbi/interop"
	"github.com/golang/glog"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/bufpool"
	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

// Connector dials a fresh HBI connection given the hosting environment the
// caller wants exposed to the far side. It matches jdfc.DataFileServerConnector
// in shape: something ConnTCP-style plugs in.
type Connector func(he *hbi.HostingEnv) (po *hbi.PostingEnd, ho *hbi.HostingEnd, err error)

// ConnTCP returns a Connector that dials serverAddr over TCP, the same
// wiring jdfc.ConnTCP performs.
func ConnTCP(serverAddr string) Connector {
	return func(he *hbi.HostingEnv) (po *hbi.PostingEnd, ho *hbi.HostingEnd, err error) {
		return hbi.DialTCP(serverAddr, he)
	}
}

// ClientStub is the RPC Client Stub of spec §4.4: it owns the HBI
// posting/hosting ends to the server and exposes one method per wire
// operation, doing its own chunking and retries.
type ClientStub struct {
	po *hbi.PostingEnd
	ho *hbi.HostingEnd

	clientID string
	bufs     *bufpool.Pool
}

// Dial establishes the HBI connection, exposing reactor (if non-nil) as the
// surface the server can call back into. NewClient passes nil: evictions
// ride the Subscribe conversation rather than a server-initiated call — see
// pkg/client/subscriber.go.
func Dial(connect Connector, clientID string, reactor interface{}) (*ClientStub, error) {
	he := hbi.NewHostingEnv()
	interop.ExposeInterOpValues(he)
	if reactor != nil {
		he.ExposeReactor(reactor)
	}

	po, ho, err := connect(he)
	if err != nil {
		return nil, afserrors.Wrapped(afserrors.BackendUnavailable, err, "dial jdfs server")
	}

	return &ClientStub{po: po, ho: ho, clientID: clientID, bufs: &bufpool.Pool{}}, nil
}

// Close disconnects from the server.
func (c *ClientStub) Close() {
	if c.po != nil && !c.po.Disconnected() {
		c.po.Close()
	}
}

// withRetry runs attempt up to wire.MaxRetries times, discarding all state
// between attempts (spec §4.4: "re-establish a fresh request context each
// attempt; discard any partial buffer; only a terminal-OK status counts").
func withRetry(op string, attempt func() error) error {
	var lastErr error
	for i := 0; i < wire.MaxRetries; i++ {
		if err := attempt(); err != nil {
			lastErr = err
			glog.Warningf("jdfs rpc %s attempt %d/%d failed: %+v", op, i+1, wire.MaxRetries, err)
			continue
		}
		return nil
	}
	return afserrors.Wrapped(afserrors.BackendUnavailable, lastErr, "%s failed after %d attempts", op, wire.MaxRetries)
}

// RequestRoot asks the server for the export root path. Unary, no retry
// (spec §4.4 table).
func (c *ClientStub) RequestRoot() (rootPath string, err error) {
	co, err := c.po.NewCo()
	if err != nil {
		return "", afserrors.Wrapped(afserrors.BackendUnavailable, err, "request_root")
	}
	defer co.Close()

	if err = co.SendCode(fmt.Sprintf("RequestRoot(%#v)", c.clientID)); err != nil {
		return "", afserrors.Wrapped(afserrors.BackendUnavailable, err, "request_root")
	}
	if err = co.StartRecv(); err != nil {
		return "", afserrors.Wrapped(afserrors.BackendUnavailable, err, "request_root")
	}
	obj, err := co.RecvObj()
	if err != nil {
		return "", afserrors.Wrapped(afserrors.BackendUnavailable, err, "request_root")
	}
	return obj.(string), nil
}

// Open streams the full content of path into w. Server-stream, up to 3
// attempts (spec §4.4/§4.5).
func (c *ClientStub) Open(path string, w io.Writer) (timestamp, size int64, err error) {
	err = withRetry("open", func() error {
		co, e := c.po.NewCo()
		if e != nil {
			return e
		}
		defer co.Close()

		if e = co.SendCode(fmt.Sprintf("Open(%#v, %#v)", c.clientID, path)); e != nil {
			return e
		}
		if e = co.StartRecv(); e != nil {
			return e
		}
		sizeObj, e := co.RecvObj()
		if e != nil {
			return e
		}
		tsObj, e := co.RecvObj()
		if e != nil {
			return e
		}
		size = int64(sizeObj.(hbi.LitIntType))
		timestamp = int64(tsObj.(hbi.LitIntType))

		var part bytes.Buffer
		if e = c.recvChunks(co, &part, size); e != nil {
			return e
		}
		_, e = part.WriteTo(w)
		return e
	})
	return
}

// Compare asks the server whether path is still current as of clientTS. If
// stale, the server streams the fresh content into w. Server-stream, up to
// 3 attempts (spec §4.4/§4.5).
func (c *ClientStub) Compare(path string, clientTS int64, w io.Writer) (res wire.CompareResult, err error) {
	err = withRetry("compare", func() error {
		co, e := c.po.NewCo()
		if e != nil {
			return e
		}
		defer co.Close()

		if e = co.SendCode(fmt.Sprintf("Compare(%#v, %#v, %d)", c.clientID, path, clientTS)); e != nil {
			return e
		}
		if e = co.StartRecv(); e != nil {
			return e
		}
		updObj, e := co.RecvObj()
		if e != nil {
			return e
		}
		tsObj, e := co.RecvObj()
		if e != nil {
			return e
		}
		res = wire.CompareResult{
			Updated:   updObj.(hbi.LitIntType) != 0,
			Timestamp: int64(tsObj.(hbi.LitIntType)),
		}
		if !res.Updated {
			return nil
		}
		sizeObj, e := co.RecvObj()
		if e != nil {
			return e
		}
		res.Size = int64(sizeObj.(hbi.LitIntType))
		var part bytes.Buffer
		if e = c.recvChunks(co, &part, res.Size); e != nil {
			return e
		}
		_, e = part.WriteTo(w)
		return e
	})
	return
}

// CloseFile streams the modified content of path (read from r, size bytes)
// back to the server. Client-stream, up to 3 attempts (spec §4.4/§4.6).
func (c *ClientStub) CloseFile(path string, r io.Reader, size int64) (timestamp int64, err error) {
	err = withRetry("close", func() error {
		co, e := c.po.NewCo()
		if e != nil {
			return e
		}
		defer co.Close()

		// a retry resends the content from the start, not from wherever a
		// failed attempt stopped reading r
		if s, ok := r.(io.Seeker); ok {
			if _, e = s.Seek(0, io.SeekStart); e != nil {
				return e
			}
		}

		if e = co.SendCode(fmt.Sprintf("Close(%#v, %#v, %d)", c.clientID, path, size)); e != nil {
			return e
		}
		if e = c.sendChunks(co, r, size); e != nil {
			return e
		}
		if e = co.StartRecv(); e != nil {
			return e
		}
		tsObj, e := co.RecvObj()
		if e != nil {
			return e
		}
		timestamp = int64(tsObj.(hbi.LitIntType))
		return nil
	})
	return
}

// Getattr returns the attribute snapshot for path. Unary, no retry.
func (c *ClientStub) Getattr(path string) (attr wire.Attr, err error) {
	co, err := c.po.NewCo()
	if err != nil {
		return attr, afserrors.Wrapped(afserrors.BackendUnavailable, err, "getattr")
	}
	defer co.Close()

	if err = co.SendCode(fmt.Sprintf("Getattr(%#v)", path)); err != nil {
		return attr, afserrors.Wrapped(afserrors.BackendUnavailable, err, "getattr")
	}
	if err = co.StartRecv(); err != nil {
		return attr, afserrors.Wrapped(afserrors.BackendUnavailable, err, "getattr")
	}
	foundObj, err := co.RecvObj()
	if err != nil {
		return attr, afserrors.Wrapped(afserrors.BackendUnavailable, err, "getattr")
	}
	if foundObj.(hbi.LitIntType) == 0 {
		return attr, afserrors.Of(afserrors.NotFound, "getattr %s", path)
	}
	litObj, err := co.RecvObj()
	if err != nil {
		return attr, afserrors.Wrapped(afserrors.BackendUnavailable, err, "getattr")
	}
	return DecodeAttr(litObj), nil
}

// Ls lists the contents of path. Unary, no retry.
func (c *ClientStub) Ls(path string) (entries []wire.DirEntry, err error) {
	co, err := c.po.NewCo()
	if err != nil {
		return nil, afserrors.Wrapped(afserrors.BackendUnavailable, err, "ls")
	}
	defer co.Close()

	if err = co.SendCode(fmt.Sprintf("Ls(%#v)", path)); err != nil {
		return nil, afserrors.Wrapped(afserrors.BackendUnavailable, err, "ls")
	}
	if err = co.StartRecv(); err != nil {
		return nil, afserrors.Wrapped(afserrors.BackendUnavailable, err, "ls")
	}
	foundObj, err := co.RecvObj()
	if err != nil {
		return nil, afserrors.Wrapped(afserrors.BackendUnavailable, err, "ls")
	}
	if foundObj.(hbi.LitIntType) == 0 {
		return nil, afserrors.Of(afserrors.NotFound, "ls %s", path)
	}
	litObj, err := co.RecvObj()
	if err != nil {
		return nil, afserrors.Wrapped(afserrors.BackendUnavailable, err, "ls")
	}
	return DecodeDirEntries(litObj), nil
}

// Mkdir creates a directory. Unary, no retry.
func (c *ClientStub) Mkdir(path string, mode uint32) error {
	return c.ack(fmt.Sprintf("Mkdir(%#v, %d)", path, mode), "mkdir")
}

// Rename moves oldPath to newPath. Unary, no retry.
func (c *ClientStub) Rename(oldPath, newPath string) error {
	return c.ack(fmt.Sprintf("Rename(%#v, %#v, %#v)", oldPath, newPath, c.clientID), "rename")
}

// Unlink removes path. Unary, no retry.
func (c *ClientStub) Unlink(path string) error {
	return c.ack(fmt.Sprintf("Unlink(%#v, %#v)", path, c.clientID), "unlink")
}

// Truncate resizes path to size bytes. Unary, no retry.
func (c *ClientStub) Truncate(path string, size int64) error {
	return c.ack(fmt.Sprintf("Truncate(%#v, %d)", path, size), "truncate")
}

func (c *ClientStub) ack(code, op string) error {
	co, err := c.po.NewCo()
	if err != nil {
		return afserrors.Wrapped(afserrors.BackendUnavailable, err, op)
	}
	defer co.Close()

	if err = co.SendCode(code); err != nil {
		return afserrors.Wrapped(afserrors.BackendUnavailable, err, op)
	}
	if err = co.StartRecv(); err != nil {
		return afserrors.Wrapped(afserrors.BackendUnavailable, err, op)
	}
	okObj, err := co.RecvObj()
	if err != nil {
		return afserrors.Wrapped(afserrors.BackendUnavailable, err, op)
	}
	if okObj.(hbi.LitIntType) == 0 {
		return afserrors.Of(afserrors.NotFound, op)
	}
	return nil
}

// Subscribe opens the long-lived notification stream and invokes handler
// for each Notification pushed by the server, until the connection is
// closed or ctx-equivalent cancellation tears down the posting end (spec
// §4.4's "subscribe(client_id) -> stream<Notification>, long-lived").
//
// The teacher's demonstrated conversations are all one request/one reply;
// this generalizes that shape to a single conversation held open for
// repeated StartRecv/RecvObj rounds, matching the server side's mirrored
// loop of StartSend/SendObj (see pkg/server/session.go) — a reactor method,
// like any of jdfs's, is free to block on I/O for as long as it wants
// before it's done responding.
func (c *ClientStub) Subscribe(handler func(wire.Notification)) error {
	co, err := c.po.NewCo()
	if err != nil {
		return afserrors.Wrapped(afserrors.BackendUnavailable, err, "subscribe")
	}
	defer co.Close()

	if err = co.SendCode(fmt.Sprintf("Subscribe(%#v)", c.clientID)); err != nil {
		return afserrors.Wrapped(afserrors.BackendUnavailable, err, "subscribe")
	}

	for {
		if err := co.StartRecv(); err != nil {
			return afserrors.Wrapped(afserrors.BackendUnavailable, err, "subscribe recv")
		}
		obj, err := co.RecvObj()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return afserrors.Wrapped(afserrors.BackendUnavailable, err, "subscribe recv")
		}
		handler(DecodeNotification(obj))
	}
}

// recvChunks reads exactly total bytes from co in wire.ChunkSize pieces and
// copies them to w, mirroring dfa.go's ReadJDF chunked SendData pattern
// generalized across multiple chunks instead of one unsized transfer.
func (c *ClientStub) recvChunks(co *hbi.PoCo, w io.Writer, total int64) error {
	remaining := total
	for remaining > 0 {
		n := wire.ChunkSize
		if int64(n) > remaining {
			n = int(remaining)
		}
		buf := c.bufs.Get(n)
		if err := co.RecvData(buf); err != nil {
			c.bufs.Put(buf)
			return err
		}
		if _, err := w.Write(buf); err != nil {
			c.bufs.Put(buf)
			return err
		}
		c.bufs.Put(buf)
		remaining -= int64(n)
	}
	return co.FinishRecv()
}

// sendChunks streams total bytes read from r to co in wire.ChunkSize
// pieces, mirroring dfa.go's WriteJDF SendData pattern generalized across
// multiple chunks.
func (c *ClientStub) sendChunks(co *hbi.PoCo, r io.Reader, total int64) error {
	if err := co.StartSend(); err != nil {
		return err
	}
	remaining := total
	for remaining > 0 {
		n := wire.ChunkSize
		if int64(n) > remaining {
			n = int(remaining)
		}
		buf := c.bufs.Get(n)
		if _, err := io.ReadFull(r, buf); err != nil {
			c.bufs.Put(buf)
			return err
		}
		if err := co.SendData(buf); err != nil {
			c.bufs.Put(buf)
			return err
		}
		c.bufs.Put(buf)
		remaining -= int64(n)
	}
	return nil
}
