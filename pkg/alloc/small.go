//go:build go1.22

package alloc

import "github.com/lhh0461/mem-pool/pkg/xunsafe"

// smallNode is the free-list link threaded through a freed small block. A
// block's size is implicit in the class index that holds it, so no size
// field is stored.
type smallNode struct {
	next xunsafe.Addr[smallNode]
}

// smallClassOf returns the size-class index serving n bytes, for
// n in (0, smallMax].
func smallClassOf(n int) int {
	return (n - 1) / SmallUnit
}

// allocSmall serves an n-byte small request (idx == smallClassOf(n)), in
// the order described by the small-tier allocation policy:
//
//  1. pop the matching class's free list if non-empty;
//  2. bump from the first chunk (head to tail) with enough tail space;
//  3. pop from the smallest larger non-empty class and redistribute the
//     surplus back into the small free lists;
//  4. allocate a fresh chunk reserving exactly the needed bytes.
func (m *Manager) allocSmall(idx int) xunsafe.Addr[byte] {
	if node := m.smallFree[idx].AssertValid(); node != nil {
		m.smallFree[idx] = node.next
		return xunsafe.Addr[byte](xunsafe.AddrOf(node))
	}

	need := (idx + 1) * SmallUnit

	for c := m.chunkHead.AssertValid(); c != nil; c = c.next.AssertValid() {
		if c.used+need <= ChunkSize {
			p := xunsafe.Addr[byte](xunsafe.AddrOf(c)).ByteAdd(c.used)
			c.used += need
			return p
		}
	}

	for i := idx + 1; i < SmallLevels; i++ {
		node := m.smallFree[i].AssertValid()
		if node == nil {
			continue
		}
		m.smallFree[i] = node.next

		p := xunsafe.Addr[byte](xunsafe.AddrOf(node))
		have := (i + 1) * SmallUnit
		m.splitSmall(p.ByteAdd(need), have-need)
		return p
	}

	return m.newChunk(need)
}

// splitSmall carves a surplus region of remaining bytes (always a positive
// multiple of SmallUnit) into successive small free-list nodes, largest
// class first.
func (m *Manager) splitSmall(p xunsafe.Addr[byte], remaining int) {
	for remaining > 0 {
		j := smallClassOf(remaining)
		size := (j + 1) * SmallUnit

		node := xunsafe.Cast[smallNode](p.AssertValid())
		node.next = m.smallFree[j]
		m.smallFree[j] = xunsafe.AddrOf(node)

		p = p.ByteAdd(size)
		remaining -= size
	}
}

// freeSmall returns a block of osize bytes to its class's free list. No
// coalescing is performed.
func (m *Manager) freeSmall(p xunsafe.Addr[byte], osize int) {
	idx := smallClassOf(osize)

	node := xunsafe.Cast[smallNode](p.AssertValid())
	node.next = m.smallFree[idx]
	m.smallFree[idx] = xunsafe.AddrOf(node)
}
