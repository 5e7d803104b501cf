//go:build go1.22

package alloc

import (
	"unsafe"

	"github.com/lhh0461/mem-pool/internal/debug"
	"github.com/lhh0461/mem-pool/pkg/vmem"
	"github.com/lhh0461/mem-pool/pkg/xunsafe"
)

// chunk is the fixed-size arena page that backs small and big blocks. It is
// never returned to the OS; once mapped it lives until process teardown.
//
// Layout: the header sits at the chunk's base, immediately followed by the
// bytes it carves out to callers. used is a byte offset from the chunk's
// base, not from the end of the header, so header-relative and
// chunk-relative arithmetic never have to be reconciled.
type chunk struct {
	next xunsafe.Addr[chunk]
	used int
}

const chunkHeaderSize = int(unsafe.Sizeof(chunk{}))

// newChunk maps a fresh chunk from vmem, reserves the first reserve bytes
// past the header for the caller, and appends it to the manager's chunk
// list. It returns the address of the reserved region, or the zero address
// if the OS mapping failed.
func (m *Manager) newChunk(reserve int) xunsafe.Addr[byte] {
	p, ok := vmem.Map(ChunkSize)
	if !ok {
		return 0
	}

	c := (*chunk)(p)
	c.next = 0
	c.used = chunkHeaderSize + reserve

	addr := xunsafe.AddrOf(c)
	if m.chunkHead == 0 {
		m.chunkHead = addr
	}
	if tail := m.chunkTail.AssertValid(); tail != nil {
		tail.next = addr
	}
	m.chunkTail = addr

	debug.Log(nil, "new_chunk", "addr=%v reserve=%d used=%d", addr, reserve, c.used)

	return xunsafe.Addr[byte](addr).ByteAdd(chunkHeaderSize)
}

// bumpFromTail advances the tail chunk's used counter by n bytes and
// returns the start of the freshly reserved region, or the zero address if
// the tail chunk does not have n free bytes (or there is no tail chunk
// yet).
func (m *Manager) bumpFromTail(n int) xunsafe.Addr[byte] {
	c := m.chunkTail.AssertValid()
	if c == nil {
		return 0
	}
	if c.used+n > ChunkSize {
		return 0
	}

	p := xunsafe.Addr[byte](m.chunkTail).ByteAdd(c.used)
	c.used += n

	return p
}
