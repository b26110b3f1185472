package server

import (
	"time"

	"github.com/complyue/hbi"

	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/rpc"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
	"github.com/golang/glog"
)

// watchdogInterval is how often the subscribe handler's watchdog checks
// for a dropped connection (spec §4.9 step 2, "spawn a watchdog that
// periodically observes the RPC's cancellation signal").
const watchdogInterval = 2 * time.Second

// session is the exported-filesystem reactor bound to one HBI connection:
// the path-keyed wire protocol of spec §4.4/§6.
type session struct {
	srv *Server

	po *hbi.PostingEnd
	ho *hbi.HostingEnd

	clientID string
}

// NamesToExpose lists the reactor's callable surface, mirroring
// exportedFileSystem.NamesToExpose.
func (s *session) NamesToExpose() []string {
	return []string{
		"RequestRoot", "Open", "Compare", "Close",
		"Getattr", "Ls", "Mkdir", "Rename", "Unlink", "Truncate",
		"Subscribe",
	}
}

// RequestRoot is the session's first call: it records clientID and answers
// with the export root path (spec §4.4 request_root, §6 request_dir).
func (s *session) RequestRoot(clientID string) {
	co := s.ho.Co()
	if err := co.FinishRecv(); err != nil {
		panic(err)
	}

	s.clientID = clientID
	s.srv.reg.registerClient(clientID)

	if err := co.StartSend(); err != nil {
		panic(err)
	}
	if err := co.SendObj(hbi.Repr(s.srv.root)); err != nil {
		panic(err)
	}
}

// Open streams the full content of path, tagged with the authoritative
// mtime, and records (path, client) interest (spec §4.8 open).
func (s *session) Open(clientID, path string) {
	co := s.ho.Co()
	if err := co.FinishRecv(); err != nil {
		panic(err)
	}

	file, size, ts, err := s.srv.fsd.openForRead(path)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	s.srv.reg.addFileInterest(path, clientID)
	s.srv.reg.addOpenInterest(path, clientID)

	if err := co.StartSend(); err != nil {
		panic(err)
	}
	if err := co.SendObj(hbi.Repr(size)); err != nil {
		panic(err)
	}
	if err := co.SendObj(hbi.Repr(ts)); err != nil {
		panic(err)
	}
	if err := sendChunks(co, file, size); err != nil {
		panic(err)
	}
}

// Compare answers whether path changed since clientTS, streaming fresh
// content when it has (spec §4.8 compare).
func (s *session) Compare(clientID, path string, clientTS int64) {
	co := s.ho.Co()
	if err := co.FinishRecv(); err != nil {
		panic(err)
	}

	updated, ts, err := s.srv.fsd.compare(path, clientTS)
	if err != nil {
		panic(err)
	}

	s.srv.reg.addFileInterest(path, clientID)

	if err := co.StartSend(); err != nil {
		panic(err)
	}
	if !updated {
		if err := co.SendObj(hbi.Repr(0)); err != nil {
			panic(err)
		}
		if err := co.SendObj(hbi.Repr(ts)); err != nil {
			panic(err)
		}
		return
	}

	file, size, freshTS, err := s.srv.fsd.openForRead(path)
	if err != nil {
		panic(err)
	}
	defer file.Close()

	s.srv.reg.addOpenInterest(path, clientID)

	if err := co.SendObj(hbi.Repr(1)); err != nil {
		panic(err)
	}
	if err := co.SendObj(hbi.Repr(freshTS)); err != nil {
		panic(err)
	}
	if err := co.SendObj(hbi.Repr(size)); err != nil {
		panic(err)
	}
	if err := sendChunks(co, file, size); err != nil {
		panic(err)
	}
}

// Close receives the modified content of path, writes it to disk, then
// fans out an UPDATE notification to every other interested client (spec
// §4.8 close).
func (s *session) Close(clientID, path string, size int64) {
	co := s.ho.Co()

	pr, pw := newChunkPipe()
	recvDone := make(chan error, 1)
	go func() {
		recvDone <- recvChunks(co, pw, size)
		pw.Close()
	}()

	ts, writeErr := s.srv.fsd.writeFromStream(path, pr, size)
	pr.Close()
	if recvErr := <-recvDone; recvErr != nil {
		panic(recvErr)
	}
	if writeErr != nil {
		panic(writeErr)
	}

	s.srv.reg.removeOpenInterest(path, clientID)
	s.srv.reg.fanOut(path, clientID, wire.Notification{
		Kind:      wire.NotifyUpdate,
		Path:      path,
		Timestamp: ts,
	})

	if err := co.StartSend(); err != nil {
		panic(err)
	}
	if err := co.SendObj(hbi.Repr(ts)); err != nil {
		panic(err)
	}
}

// Getattr answers the attribute snapshot for path, or found=0 silently for
// a missing path (spec §4.8 getattr).
func (s *session) Getattr(path string) {
	co := s.ho.Co()
	if err := co.FinishRecv(); err != nil {
		panic(err)
	}

	attr, ok, err := s.srv.fsd.getattr(path)
	if err != nil {
		panic(err)
	}

	if err := co.StartSend(); err != nil {
		panic(err)
	}
	if !ok {
		if err := co.SendObj(hbi.Repr(0)); err != nil {
			panic(err)
		}
		return
	}
	if err := co.SendObj(hbi.Repr(1)); err != nil {
		panic(err)
	}
	if err := co.SendObj(hbi.Repr(rpc.EncodeAttr(attr))); err != nil {
		panic(err)
	}
}

// Ls answers the directory listing for path, or found=0 for a missing
// directory (spec §4.8 ls).
func (s *session) Ls(path string) {
	co := s.ho.Co()
	if err := co.FinishRecv(); err != nil {
		panic(err)
	}

	entries, ok, err := s.srv.fsd.ls(path)
	if err != nil {
		panic(err)
	}

	if err := co.StartSend(); err != nil {
		panic(err)
	}
	if !ok {
		if err := co.SendObj(hbi.Repr(0)); err != nil {
			panic(err)
		}
		return
	}
	if err := co.SendObj(hbi.Repr(1)); err != nil {
		panic(err)
	}
	if err := co.SendObj(hbi.Repr(rpc.EncodeDirEntries(entries))); err != nil {
		panic(err)
	}
}

// Mkdir creates a directory (spec §4.8 mkdir).
func (s *session) Mkdir(path string, mode uint32) {
	s.ackCall(s.srv.fsd.mkdir(path, mode))
}

// Rename moves oldPath to newPath, re-keys interest and fans out RENAME
// (spec §4.8 rename).
func (s *session) Rename(oldPath, newPath, clientID string) {
	err := s.srv.fsd.rename(oldPath, newPath)
	if err == nil {
		s.srv.reg.rekeyFileInterest(oldPath, newPath)
		s.srv.reg.fanOut(newPath, clientID, wire.Notification{
			Kind:    wire.NotifyRename,
			Path:    oldPath,
			NewPath: newPath,
		})
	}
	s.ackCall(err)
}

// Unlink removes path, fans out DELETE, drops its interest entry (spec
// §4.8 unlink).
func (s *session) Unlink(path, clientID string) {
	err := s.srv.fsd.unlink(path)
	if err == nil {
		s.srv.reg.fanOut(path, clientID, wire.Notification{
			Kind: wire.NotifyDelete,
			Path: path,
		})
		s.srv.reg.interestMu.Lock()
		delete(s.srv.reg.fileInterest, path)
		s.srv.reg.interestMu.Unlock()
	}
	s.ackCall(err)
}

// Truncate resizes path on the server (spec §4.8 truncate).
func (s *session) Truncate(path string, size int64) {
	s.ackCall(s.srv.fsd.truncate(path, size))
}

// ackCall replies with the found=0/1 convention every ack-style call uses:
// NotFound surfaces as a clean 0 rather than tearing down the conversation,
// any other error still panics.
func (s *session) ackCall(err error) {
	co := s.ho.Co()
	if e := co.FinishRecv(); e != nil {
		panic(e)
	}
	if err := co.StartSend(); err != nil {
		panic(err)
	}
	if err != nil {
		if afserrors.Is(err, afserrors.NotFound) {
			if e := co.SendObj(hbi.Repr(0)); e != nil {
				panic(e)
			}
			return
		}
		panic(err)
	}
	if e := co.SendObj(hbi.Repr(1)); e != nil {
		panic(e)
	}
}

// Subscribe is the long-lived subscription RPC handler of spec §4.9: it
// creates the client's queue, starts the disconnect watchdog, then loops
// pop-and-send until the queue reports shutdown or a send fails, finally
// running cleanup_client.
func (s *session) Subscribe(clientID string) {
	co := s.ho.Co()
	if err := co.FinishRecv(); err != nil {
		panic(err)
	}

	q := s.srv.reg.subscribe(clientID, defaultQueueCapacity)

	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		ticker := time.NewTicker(watchdogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if s.po.Disconnected() {
					q.Shutdown()
					return
				}
			case <-watchdogDone:
				return
			}
		}
	}()

	defer s.srv.reg.cleanupClient(clientID)

	for {
		n, ok := q.Pop()
		if !ok {
			return
		}
		if err := co.StartSend(); err != nil {
			glog.Warningf("server: subscribe %s send failed, dropping: %+v", clientID, err)
			q.Shutdown()
			return
		}
		if err := co.SendObj(hbi.Repr(rpc.EncodeNotification(n))); err != nil {
			glog.Warningf("server: subscribe %s send failed, dropping: %+v", clientID, err)
			q.Shutdown()
			return
		}
	}
}
