//go:build go1.22

package alloc

import (
	"fmt"
	"io"
	"sync"
	"unsafe"

	"github.com/lhh0461/mem-pool/internal/debug"
	"github.com/lhh0461/mem-pool/pkg/xunsafe"
)

// Manager holds the three tiers' list heads. It is the unexported engine
// behind Pool; splitting the two lets Pool stay a thin, safe-looking
// facade over raw address arithmetic.
type Manager struct {
	smallFree [SmallLevels]xunsafe.Addr[smallNode]

	chunkHead xunsafe.Addr[chunk]
	chunkTail xunsafe.Addr[chunk]

	bigHead xunsafe.Addr[bigHeader]
	bigTail xunsafe.Addr[bigHeader]

	hugeSentinel hugeHeader

	hugeCount int
}

func newManager() *Manager {
	m := &Manager{}
	m.initHugeRing()
	return m
}

// allocate dispatches an n-byte request to the tier that serves it. n must
// be positive.
func (m *Manager) allocate(n int) xunsafe.Addr[byte] {
	switch {
	case n <= smallMax:
		return m.allocSmall(smallClassOf(n))
	case n <= HugeThreshold:
		return m.allocBig(n)
	default:
		p := m.allocHuge(n)
		if p != 0 {
			m.hugeCount++
		}
		return p
	}
}

// free returns a previously allocated block of osize bytes to its owning
// tier. osize must be the size originally requested for p.
func (m *Manager) free(p xunsafe.Addr[byte], osize int) {
	switch {
	case osize <= smallMax:
		m.freeSmall(p, osize)
	case osize <= HugeThreshold:
		m.freeBig(p)
	default:
		m.hugeCount--
		m.freeHuge(p)
	}
}

// reallocate resizes a block from osize to nsize bytes. When both sizes are
// in the huge tier the block is remapped (growing or shrinking, possibly
// moving it); otherwise shrinking (nsize <= osize) is a no-op returning p
// unchanged, and growing allocates fresh, copies osize bytes, and frees the
// original.
func (m *Manager) reallocate(p xunsafe.Addr[byte], osize, nsize int) xunsafe.Addr[byte] {
	if osize > HugeThreshold && nsize > HugeThreshold {
		if q := m.reallocHuge(p, nsize); q != 0 {
			return q
		}
		return 0
	}

	if nsize <= osize {
		return p
	}

	q := m.allocate(nsize)
	if q == 0 {
		return 0
	}

	copy(unsafe.Slice((*byte)(q.AssertValid()), osize), unsafe.Slice((*byte)(p.AssertValid()), osize))

	m.free(p, osize)

	return q
}

// Pool is a handle to one independent allocator instance. The zero Pool is
// not usable; construct one with NewPool.
//
// A Pool is not safe for concurrent use by multiple goroutines without
// external synchronization, the same contract the teacher's arena type
// documents for itself.
type Pool struct {
	m *Manager
}

// NewPool constructs an empty, ready-to-use Pool.
func NewPool() *Pool {
	return &Pool{m: newManager()}
}

var defaultPool = sync.OnceValue(NewPool)

// Default returns the process-wide Pool, constructing it on first use.
func Default() *Pool {
	return defaultPool()
}

// Allocate reserves n bytes and returns a pointer to the start of the
// reservation, or nil if n is not positive or the backing OS mapping
// failed. tag is logged at debug build time only; it carries no runtime
// behavior.
func (p *Pool) Allocate(n int, tag ...any) unsafe.Pointer {
	if n <= 0 {
		return nil
	}

	addr := p.m.allocate(n)
	debug.Log(tag, "allocate", "n=%d addr=%v", n, addr)

	return unsafe.Pointer(addr.AssertValid())
}

// Free returns the block at ptr, previously obtained from Allocate with
// size osize, to the pool. osize must match the size originally requested;
// the pool does not track live block sizes itself.
func (p *Pool) Free(ptr unsafe.Pointer, osize int) {
	if ptr == nil {
		return
	}
	debug.Assert(osize > 0, "alloc: freed size must be positive, got %d", osize)

	p.m.free(xunsafe.AddrOf((*byte)(ptr)), osize)
}

// Reallocate resizes the block at ptr from osize to nsize bytes, copying
// min(osize, nsize) bytes of content into the result. A nil ptr behaves
// like Allocate(nsize); a zero or negative nsize frees ptr and returns nil.
func (p *Pool) Reallocate(ptr unsafe.Pointer, osize, nsize int) unsafe.Pointer {
	if ptr == nil {
		return p.Allocate(nsize)
	}
	if nsize <= 0 {
		p.Free(ptr, osize)
		return nil
	}

	addr := p.m.reallocate(xunsafe.AddrOf((*byte)(ptr)), osize, nsize)
	debug.Log(nil, "reallocate", "osize=%d nsize=%d addr=%v", osize, nsize, addr)

	return unsafe.Pointer(addr.AssertValid())
}

// Dump writes a human-readable snapshot of the pool's internal state: one
// chunk_used line per arena chunk, small-class free-list lengths, big
// free-list length, and live huge-block count. It is meant for diagnostics
// and tests, not for parsing.
func (p *Pool) Dump(w io.Writer) {
	m := p.m

	for c := m.chunkHead.AssertValid(); c != nil; c = c.next.AssertValid() {
		fmt.Fprintf(w, "chunk_used=%d\n", c.used)
	}

	fmt.Fprint(w, "small free lists:")
	for i := 0; i < SmallLevels; i++ {
		n := 0
		for node := m.smallFree[i].AssertValid(); node != nil; node = node.next.AssertValid() {
			n++
		}
		if n > 0 {
			fmt.Fprintf(w, " [%d]=%d", (i+1)*SmallUnit, n)
		}
	}
	fmt.Fprintln(w)

	nbig := 0
	seen := map[xunsafe.Addr[bigHeader]]bool{}
	for b := m.bigHead; b != 0 && !seen[b]; b = b.AssertValid().getNext() {
		seen[b] = true
		nbig++
	}
	fmt.Fprintf(w, "big free list: %d blocks\n", nbig)

	fmt.Fprintf(w, "huge blocks live: %d\n", m.hugeCount)
}
