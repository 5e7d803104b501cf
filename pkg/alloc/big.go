//go:build go1.22

package alloc

import "github.com/lhh0461/mem-pool/pkg/xunsafe"

// bigHeader is the in-band header of a big-tier block: a single machine
// word holding the on-heap size (header included), rounded up to a
// multiple of 8. In-use blocks carry nothing else; free blocks reuse the
// first word of what would otherwise be payload to store the free-list
// next pointer, so no storage is wasted tracking liveness.
type bigHeader struct {
	size uintptr
}

const bigHeaderSize = wordSize

// bigHeaderAt reinterprets the header-sized region starting at addr as a
// bigHeader.
func bigHeaderAt(addr xunsafe.Addr[byte]) *bigHeader {
	return xunsafe.Cast[bigHeader](addr.AssertValid())
}

// bigHeaderFromPayload recovers the header address from a payload pointer.
func bigHeaderFromPayload(p xunsafe.Addr[byte]) *bigHeader {
	return bigHeaderAt(p.ByteAdd(-bigHeaderSize))
}

func (b *bigHeader) addr() xunsafe.Addr[bigHeader] { return xunsafe.AddrOf(b) }

func (b *bigHeader) payload() xunsafe.Addr[byte] {
	return xunsafe.Addr[byte](b.addr()).ByteAdd(bigHeaderSize)
}

// getNext reads the free-list link overlapping b's payload. Only valid
// while b is free.
func (b *bigHeader) getNext() xunsafe.Addr[bigHeader] {
	return *xunsafe.Cast[xunsafe.Addr[bigHeader]](b.payload().AssertValid())
}

func (b *bigHeader) setNext(n xunsafe.Addr[bigHeader]) {
	*xunsafe.Cast[xunsafe.Addr[bigHeader]](b.payload().AssertValid()) = n
}

// allocBig serves an n-byte big request. sz is the on-heap size: n plus the
// header, rounded up to a multiple of 8.
//
// Order: tail-chunk bump fast path, then a bounded free-list search, then a
// fresh chunk.
func (m *Manager) allocBig(n int) xunsafe.Addr[byte] {
	sz := alignUp8(n + wordSize)

	if p := m.bumpFromTail(sz); p != 0 {
		h := bigHeaderAt(p)
		h.size = uintptr(sz)
		return h.payload()
	}

	if h := m.lookupBig(sz); h != nil {
		return h.payload()
	}

	p := m.newChunk(sz)
	if p == 0 {
		return 0
	}
	h := bigHeaderAt(p)
	h.size = uintptr(sz)
	return h.payload()
}

// lookupBig searches the big free list for a block of at least sz bytes
// (header included), splitting and redistributing the remainder as
// described by the big-tier design. It returns nil if no block of
// sufficient size is found within BigSearchDepth visits (or the list is
// empty).
func (m *Manager) lookupBig(sz int) *bigHeader {
	if m.bigHead == 0 {
		return nil
	}

	if m.bigHead == m.bigTail {
		b := m.bigHead.AssertValid()
		if int(b.size) < sz {
			return nil
		}

		left := int(b.size) - sz
		if left == 0 {
			m.bigHead, m.bigTail = 0, 0
			return b
		}

		b.size = uintptr(sz)
		remAddr := xunsafe.Addr[byte](b.addr()).ByteAdd(sz)

		if idx := smallClassOf(left); idx < SmallLevels {
			m.freeSmall(remAddr, left)
			m.bigHead, m.bigTail = 0, 0
		} else {
			rem := bigHeaderAt(remAddr)
			rem.size = uintptr(left)
			m.bigHead, m.bigTail = rem.addr(), rem.addr()
		}
		return b
	}

	term := m.bigHead
	n := 0
	for {
		b := m.bigHead.AssertValid()
		m.bigHead = b.getNext()

		if int(b.size) >= sz {
			if int(b.size) == sz {
				return b
			}

			left := int(b.size) - sz
			b.size = uintptr(sz)
			m.placeBigRemainder(b, sz, left)
			return b
		}

		b.setNext(0)
		m.bigTail.AssertValid().setNext(xunsafe.AddrOf(b))
		m.bigTail = xunsafe.AddrOf(b)

		n++
		if m.bigHead == term || n >= BigSearchDepth {
			return nil
		}
	}
}

// placeBigRemainder splits off a remainder during the rotating search and
// places it per the placement rule: bigger-than-the-request remainders go
// to the head (so the next search sees the fresher, bigger block first),
// smaller ones go to the tail (so the search frontier skips them next
// time). A remainder small enough to be a small block is routed to the
// small tier instead and never rejoins the big list.
func (m *Manager) placeBigRemainder(b *bigHeader, satisfiedSz, left int) {
	remAddr := xunsafe.Addr[byte](b.addr()).ByteAdd(satisfiedSz)

	if idx := smallClassOf(left); idx < SmallLevels {
		m.freeSmall(remAddr, left)
		return
	}

	rem := bigHeaderAt(remAddr)
	rem.size = uintptr(left)
	remA := rem.addr()

	if left > satisfiedSz {
		rem.setNext(m.bigHead)
		m.bigHead = remA
	} else {
		rem.setNext(0)
		m.bigTail.AssertValid().setNext(remA)
		m.bigTail = remA
	}
}

// freeBig prepends a block to the big free list, recovering its header
// from the payload pointer. No coalescing with neighboring blocks is
// performed.
func (m *Manager) freeBig(p xunsafe.Addr[byte]) {
	b := bigHeaderFromPayload(p)

	if m.bigHead == 0 {
		b.setNext(0)
		m.bigHead, m.bigTail = b.addr(), b.addr()
		return
	}

	b.setNext(m.bigHead)
	m.bigHead = b.addr()
}
