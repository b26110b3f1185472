package client

import (
	"io"
	"os"

	afserrors "github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
)

// openFile is the "handle pair" spec §9 calls for: one opaque abstraction
// exposing independent read and write cursors against the same cache file,
// so a bridge-driven read does not perturb a concurrent write's position.
// One struct owns two *os.File onto the same path rather than one.
type openFile struct {
	path      string
	cachePath string

	rf *os.File
	wf *os.File
}

// openHandlePair opens independent read and write file descriptors against
// cachePath. Both must already exist on disk (the open/compare protocol
// always materializes the cache file before allocating a handle pair).
func openHandlePair(path, cachePath string) (*openFile, error) {
	rf, err := os.OpenFile(cachePath, os.O_RDONLY, 0644)
	if err != nil {
		return nil, afserrors.FromHostError("open", cachePath, err)
	}
	wf, err := os.OpenFile(cachePath, os.O_RDWR, 0644)
	if err != nil {
		rf.Close()
		return nil, afserrors.FromHostError("open", cachePath, err)
	}
	return &openFile{path: path, cachePath: cachePath, rf: rf, wf: wf}, nil
}

// ReadAt serves a read against the read cursor's file descriptor without
// touching the write descriptor's position.
func (of *openFile) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := of.rf.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return n, afserrors.FromHostError("read", of.cachePath, err)
	}
	return n, nil
}

// WriteAt serves a write against the write cursor's file descriptor.
func (of *openFile) WriteAt(buf []byte, offset int64) (int, error) {
	n, err := of.wf.WriteAt(buf, offset)
	if err != nil {
		return n, afserrors.FromHostError("write", of.cachePath, err)
	}
	return n, nil
}

// closeForFlush flushes and closes the write handle, then closes the read
// handle, per the close protocol's "flush-then-close the write handle;
// close the read handle" step (spec §4.6). Returns a fresh *os.File opened
// for streaming read of the now-final cache content.
func (of *openFile) closeForFlush() (*os.File, error) {
	if err := of.wf.Sync(); err != nil {
		of.wf.Close()
		of.rf.Close()
		return nil, afserrors.FromHostError("sync", of.cachePath, err)
	}
	if err := of.wf.Close(); err != nil {
		of.rf.Close()
		return nil, afserrors.FromHostError("close", of.cachePath, err)
	}
	if err := of.rf.Close(); err != nil {
		return nil, afserrors.FromHostError("close", of.cachePath, err)
	}

	streamF, err := os.OpenFile(of.cachePath, os.O_RDONLY, 0644)
	if err != nil {
		return nil, afserrors.FromHostError("open", of.cachePath, err)
	}
	return streamF, nil
}

// closeDiscard drops both handles without flushing, used when the file was
// never locally modified (spec §4.6, "if not M[S].modified: drop handle
// pair; done").
func (of *openFile) closeDiscard() {
	of.wf.Close()
	of.rf.Close()
}
