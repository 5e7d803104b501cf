// Command mem-pool-dump runs a small fixed allocation script against the
// default pool and prints its internal state before and after freeing,
// mirroring the allocate/dump/free/dump smoke test the pool's reference
// implementation used to exercise by hand.
package main

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/lhh0461/mem-pool/pkg/alloc"
)

type user struct {
	age  int32
	name [200]byte
	ptr  unsafe.Pointer
}

func main() {
	p := alloc.Default()

	const n = 1000
	size := int(unsafe.Sizeof(user{})) * n

	ptr := p.Allocate(size)
	if ptr == nil {
		fmt.Fprintln(os.Stderr, "allocate failed")
		os.Exit(1)
	}
	fmt.Println("allocate")

	u := (*user)(ptr)
	u.age = 123

	fmt.Println("--- before free ---")
	p.Dump(os.Stdout)

	p.Free(ptr, size)

	fmt.Println("--- after free ---")
	p.Dump(os.Stdout)
}
