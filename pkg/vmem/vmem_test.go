//go:build linux

package vmem_test

import (
	"testing"
	"unsafe"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/lhh0461/mem-pool/pkg/vmem"
)

func TestMap(t *testing.T) {
	Convey("Given a request for a fresh mapping", t, func() {
		Convey("A positive size succeeds and is zero-filled", func() {
			p, ok := vmem.Map(4096)
			So(ok, ShouldBeTrue)
			So(p, ShouldNotBeNil)

			b := unsafe.Slice((*byte)(p), 4096)
			for _, v := range b {
				So(v, ShouldEqual, 0)
			}

			So(vmem.Unmap(p, 4096), ShouldBeTrue)
		})

		Convey("A zero or negative size fails", func() {
			_, ok := vmem.Map(0)
			So(ok, ShouldBeFalse)

			_, ok = vmem.Map(-1)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRemap(t *testing.T) {
	Convey("Given an existing mapping", t, func() {
		p, ok := vmem.Map(4096)
		So(ok, ShouldBeTrue)

		b := unsafe.Slice((*byte)(p), 4096)
		b[0] = 0xAB

		Convey("Growing it preserves the prefix", func() {
			np, ok := vmem.Remap(p, 4096, 8192)
			So(ok, ShouldBeTrue)

			nb := unsafe.Slice((*byte)(np), 8192)
			So(nb[0], ShouldEqual, byte(0xAB))

			So(vmem.Unmap(np, 8192), ShouldBeTrue)
		})

		Convey("Shrinking it preserves the retained prefix", func() {
			np, ok := vmem.Remap(p, 4096, 2048)
			So(ok, ShouldBeTrue)

			nb := unsafe.Slice((*byte)(np), 2048)
			So(nb[0], ShouldEqual, byte(0xAB))

			So(vmem.Unmap(np, 2048), ShouldBeTrue)
		})
	})
}
