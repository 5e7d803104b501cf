//go:build go1.20

package xunsafe

import (
	"fmt"
	"unsafe"

	"github.com/lhh0461/mem-pool/pkg/xunsafe/layout"
)

// Addr is a typed address: a uintptr that remembers what it points at,
// without holding a live (GC-tracked) pointer.
//
// The allocator tiers in pkg/alloc use Addr rather than unsafe.Pointer for
// every in-band header and free-list link, so that offset arithmetic goes
// through one place instead of being scattered across call sites.
type Addr[T any] uintptr

// AddrOf returns the address of p.
func AddrOf[T any](p *T) Addr[T] {
	return Addr[T](unsafe.Pointer(p))
}

// EndOf returns the address just past the last element of s.
func EndOf[S ~[]E, E any](s S) Addr[E] {
	return AddrOf(unsafe.SliceData(s)).Add(len(s))
}

// AssertValid returns the pointer this address refers to, or nil if the
// address is the zero address.
func (a Addr[T]) AssertValid() *T {
	if a == 0 {
		return nil
	}
	return (*T)(unsafe.Pointer(uintptr(a)))
}

// Add advances the address by n elements of T.
func (a Addr[T]) Add(n int) Addr[T] {
	var z T
	return a + Addr[T](uintptr(n)*unsafe.Sizeof(z))
}

// ByteAdd advances the address by n bytes, unscaled.
func (a Addr[T]) ByteAdd(n int) Addr[T] {
	return a + Addr[T](n)
}

// Sub returns the number of T-sized elements between a and other.
func (a Addr[T]) Sub(other Addr[T]) int {
	var z T
	return int(uintptr(a)-uintptr(other)) / int(unsafe.Sizeof(z))
}

// Padding returns how many bytes must be added to a to reach the next
// multiple of align, which must be a power of two.
func (a Addr[T]) Padding(align int) int {
	return int(layout.Padding(uintptr(a), uintptr(align)))
}

// RoundUpTo rounds the address up to the next multiple of align, which must
// be a power of two.
func (a Addr[T]) RoundUpTo(align int) Addr[T] {
	return Addr[T](layout.RoundUp(uintptr(a), uintptr(align)))
}

// SignBit reports whether the address's top bit is set.
func (a Addr[T]) SignBit() bool {
	return a.SignBitMask() != 0
}

// SignBitMask returns all-ones if the top bit is set, all-zeros otherwise.
func (a Addr[T]) SignBitMask() Addr[T] {
	return Addr[T](int(a) >> (unsafe.Sizeof(uintptr(0))*8 - 1))
}

// ClearSignBit returns a with the top bit cleared.
func (a Addr[T]) ClearSignBit() Addr[T] {
	return a &^ (Addr[T](1) << (unsafe.Sizeof(uintptr(0))*8 - 1))
}

// Format implements fmt.Formatter, printing the address in hexadecimal.
func (a Addr[T]) Format(f fmt.State, verb rune) {
	switch verb {
	case 'x':
		_, _ = fmt.Fprintf(f, "%x", uintptr(a))
	case 'X':
		_, _ = fmt.Fprintf(f, "%X", uintptr(a))
	default:
		_, _ = fmt.Fprintf(f, "0x%x", uintptr(a))
	}
}
