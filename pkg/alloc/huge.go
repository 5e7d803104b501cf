//go:build go1.22

package alloc

import (
	"unsafe"

	"github.com/lhh0461/mem-pool/pkg/vmem"
	"github.com/lhh0461/mem-pool/pkg/xunsafe"
)

// hugeHeader fronts a huge block's own, dedicated OS mapping. Huge blocks
// are never carved from a chunk; they live and die one mmap call at a time,
// threaded into a doubly linked ring via a fixed sentinel so insertion and
// removal never special-case an empty list.
type hugeHeader struct {
	size uintptr
	prev xunsafe.Addr[hugeHeader]
	next xunsafe.Addr[hugeHeader]
}

const hugeHeaderSize = int(unsafe.Sizeof(hugeHeader{}))

func hugeHeaderFromPayload(p xunsafe.Addr[byte]) *hugeHeader {
	return xunsafe.Cast[hugeHeader](p.ByteAdd(-hugeHeaderSize).AssertValid())
}

func (h *hugeHeader) addr() xunsafe.Addr[hugeHeader] { return xunsafe.AddrOf(h) }

func (h *hugeHeader) payload() xunsafe.Addr[byte] {
	return xunsafe.Addr[byte](h.addr()).ByteAdd(hugeHeaderSize)
}

// initHugeRing points the sentinel at itself, so the ring is never
// genuinely empty: allocHuge and freeHuge always have a real prev/next to
// splice against.
func (m *Manager) initHugeRing() {
	s := m.hugeSentinel.addr()
	m.hugeSentinel.next = s
	m.hugeSentinel.prev = s
}

// allocHuge maps a dedicated region for an n-byte request and links it
// into the ring right after the sentinel.
func (m *Manager) allocHuge(n int) xunsafe.Addr[byte] {
	total := hugeHeaderSize + n

	p, ok := vmem.Map(total)
	if !ok {
		return 0
	}

	h := (*hugeHeader)(p)
	h.size = uintptr(n)

	sentinel := m.hugeSentinel.addr()
	first := m.hugeSentinel.next

	h.prev = sentinel
	h.next = first
	first.AssertValid().prev = h.addr()
	m.hugeSentinel.next = h.addr()

	return h.payload()
}

// freeHuge unlinks the block fronting p from the ring and unmaps its
// backing region.
func (m *Manager) freeHuge(p xunsafe.Addr[byte]) {
	h := hugeHeaderFromPayload(p)

	h.prev.AssertValid().next = h.next
	h.next.AssertValid().prev = h.prev

	vmem.Unmap(unsafe.Pointer(h.addr().AssertValid()), hugeHeaderSize+int(h.size))
}

// reallocHuge grows or shrinks a huge block in place via vmem.Remap,
// re-splicing its neighbors if the mapping moved. It returns the zero
// address if the remap failed, leaving the original block untouched.
func (m *Manager) reallocHuge(p xunsafe.Addr[byte], nsize int) xunsafe.Addr[byte] {
	h := hugeHeaderFromPayload(p)
	oldTotal := hugeHeaderSize + int(h.size)
	newTotal := hugeHeaderSize + nsize

	np, ok := vmem.Remap(unsafe.Pointer(h.addr().AssertValid()), oldTotal, newTotal)
	if !ok {
		return 0
	}

	nh := (*hugeHeader)(np)
	nh.size = uintptr(nsize)

	nh.prev.AssertValid().next = nh.addr()
	nh.next.AssertValid().prev = nh.addr()

	return nh.payload()
}
