// Package bufpool provides a free list of byte buffers for the RPC chunk
// transfers of pkg/rpc and pkg/server: both stream open/compare/close
// content in wire.ChunkSize pieces and need to do so without an allocation
// per chunk.
package bufpool

import (
	"os"
	"sync"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/errors"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

// chunkCap is the page-aligned capacity every pooled buffer is allocated
// at: enough for one full wire.ChunkSize transfer chunk, the only size
// this system's streaming ever asks for. A trailing short chunk at the
// end of a transfer just slices a chunkCap buffer down to the remaining
// byte count, so unlike a general-purpose allocator this pool never needs
// more than one size class.
var chunkCap = alignCap(wire.ChunkSize)

func alignCap(n int) int {
	pageSize := os.Getpagesize()
	rem := n % pageSize
	if rem > 0 {
		return n + pageSize - rem
	}
	return n
}

// Pool is a free list of chunkCap-capacity byte buffers. The zero value is
// ready to use.
type Pool struct {
	mu   sync.Mutex
	free [][]byte
}

// Get returns a byte slice of exactly length bytes, backed by a
// chunkCap-capacity buffer. length must not exceed wire.ChunkSize.
func (p *Pool) Get(length int) []byte {
	if length <= 0 {
		return nil
	}
	if length > chunkCap {
		panic(errors.Errorf("bufpool: requested %d bytes exceeds chunk capacity %d", length, chunkCap))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		buf := p.free[n-1][0:length:chunkCap]
		p.free = p.free[:n-1]
		return buf
	}
	return make([]byte, length, chunkCap)
}

// Put returns buf to the pool. Its capacity must be chunkCap, i.e. it must
// have come from Get.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != chunkCap {
		panic(errors.Errorf("buffer [:%d:%d] returned to pool, want capacity %d", len(buf), cap(buf), chunkCap))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, buf[0:0:chunkCap])
}
