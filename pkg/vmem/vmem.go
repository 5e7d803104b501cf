//go:build linux

// Package vmem wraps the operating system's anonymous private-mapping
// primitive: fresh zero-filled pages, release, and in-place grow/shrink
// that is permitted to relocate the mapping.
//
// This is the leaf of the allocator: every chunk the arena hands out and
// every huge block's own mapping passes through here. Failure is reported
// by a false ok, never a panic or an error value, so that it composes with
// the allocator's "null on OOM" contract without an extra unwrap at every
// call site.
package vmem

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/lhh0461/mem-pool/internal/debug"
)

// Map returns a fresh, zero-initialized, anonymous, private mapping of
// exactly n bytes, readable and writable by the caller.
func Map(n int) (unsafe.Pointer, bool) {
	if n <= 0 {
		return nil, false
	}

	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		debug.Log(nil, "map", "n=%d: %v", n, err)
		return nil, false
	}

	return unsafe.Pointer(unsafe.SliceData(b)), true
}

// Unmap releases a mapping of n bytes previously returned by Map or Remap.
func Unmap(p unsafe.Pointer, n int) bool {
	if p == nil || n <= 0 {
		return false
	}

	b := unsafe.Slice((*byte)(p), n)
	if err := unix.Munmap(b); err != nil {
		debug.Log(nil, "unmap", "p=%p, n=%d: %v", p, n, err)
		return false
	}

	return true
}

// Remap grows or shrinks a mapping of oldN bytes at p to newN bytes,
// possibly moving it. Callers must discard p and use the returned address
// instead, even when it happens to be unchanged.
func Remap(p unsafe.Pointer, oldN, newN int) (unsafe.Pointer, bool) {
	if p == nil || oldN <= 0 || newN <= 0 {
		return nil, false
	}

	old := unsafe.Slice((*byte)(p), oldN)

	np, err := unix.Mremap(old, newN, unix.MREMAP_MAYMOVE)
	if err != nil {
		debug.Log(nil, "remap", "p=%p, old=%d, new=%d: %v", p, oldN, newN, err)
		return nil, false
	}

	return unsafe.Pointer(unsafe.SliceData(np)), true
}
