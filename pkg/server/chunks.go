package server

import (
	"io"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/bufpool"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

// wireBufs is shared by every session's chunked transfers, the server-side
// counterpart of pkg/rpc's bufpool.Pool use, both grounded on
// jdfs/pkg/jdfs/bufpool.go.
var wireBufs bufpool.Pool

// sendChunks streams total bytes read from r to co in wire.ChunkSize
// pieces, the server-side mirror of pkg/rpc.ClientStub's sendChunks/
// recvChunks pair (dfa.go's ReadJDF/WriteJDF generalized across multiple
// chunks instead of one unsized transfer).
func sendChunks(co interface {
	SendData([]byte) error
}, r io.Reader, total int64) error {
	remaining := total
	for remaining > 0 {
		n := wire.ChunkSize
		if int64(n) > remaining {
			n = int(remaining)
		}
		buf := wireBufs.Get(n)
		if _, err := io.ReadFull(r, buf); err != nil {
			wireBufs.Put(buf)
			return err
		}
		if err := co.SendData(buf); err != nil {
			wireBufs.Put(buf)
			return err
		}
		wireBufs.Put(buf)
		remaining -= int64(n)
	}
	return nil
}

// recvChunks reads exactly total bytes from co in wire.ChunkSize pieces and
// copies them to w, then finishes the incoming half of the conversation.
func recvChunks(co interface {
	RecvData([]byte) error
	FinishRecv() error
}, w io.Writer, total int64) error {
	remaining := total
	for remaining > 0 {
		n := wire.ChunkSize
		if int64(n) > remaining {
			n = int(remaining)
		}
		buf := wireBufs.Get(n)
		if err := co.RecvData(buf); err != nil {
			wireBufs.Put(buf)
			return err
		}
		if _, err := w.Write(buf); err != nil {
			wireBufs.Put(buf)
			return err
		}
		wireBufs.Put(buf)
		remaining -= int64(n)
	}
	return co.FinishRecv()
}

// newChunkPipe hands back the two ends of an in-process pipe used to
// stream Close's incoming bytes straight to disk without buffering the
// whole file in memory: one goroutine drains the wire into the write end
// while the fsd write path reads from the read end.
func newChunkPipe() (*io.PipeReader, *io.PipeWriter) {
	return io.Pipe()
}
