// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"errors"
	"testing"

	"github.com/platinasystems/devtree/internal/fdttest"
)

func TestRegions(t *testing.T) {
	tree := pi5(t)
	regions, err := tree.Regions()
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		kind       RegionKind
		addr, size uint64
		path       string
	}{
		{Memory, 0, 0x1_0000_0000, "/memory@0"},
		{Reserved, 0x3b400000, 0x4c00000, ""},
		{Reserved, 0, 0x80000, "/reserved-memory/atf@0"},
	}
	if len(regions) != len(want) {
		t.Fatal("wrong:", regions)
	}
	for i, r := range regions {
		w := want[i]
		if r.Kind != w.kind || r.Address != w.addr || r.Size != w.size ||
			r.Node.Path() != w.path {
			t.Error("wrong:", i, r)
		}
	}
	if s := regions[0].String(); s != "memory 0x0-0xffffffff" {
		t.Error("wrong:", s)
	}
}

func TestEachRegionStops(t *testing.T) {
	tree := pi5(t)
	stop := errors.New("stop")
	calls := 0
	err := tree.EachRegion(func(r Region) error {
		calls++
		return stop
	})
	if err != stop || calls != 1 {
		t.Error("wrong:", err, calls)
	}
}

func TestMemoryNodes(t *testing.T) {
	b := fdttest.New()
	b.Begin("")
	b.Cells("#address-cells", 1)
	b.Cells("#size-cells", 1)
	b.Begin("memory@40000000")
	b.Cells("reg", 0x40000000, 0x20000000, 0x80000000, 0x20000000)
	b.End()
	b.Begin("sram@10000")
	b.Strings("device_type", "memory")
	b.Cells("reg", 0x10000, 0x1000)
	b.Strings("status", "disabled")
	b.End()
	b.Begin("soc")
	b.Begin("memory@0")
	b.Cells("x", 0)
	b.End()
	b.End()
	b.End()
	tree, err := Parse(b.Build())
	if err != nil {
		t.Fatal(err)
	}
	regions, err := tree.Regions()
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 2 || regions[1].Address != 0x80000000 {
		t.Error("wrong:", regions)
	}
	if !IsMemory(tree.NodeByPath("/sram")) {
		t.Error("device_type memory")
	}
	if IsMemory(tree.NodeByPath("/soc/memory@0")) {
		t.Error("memory below the root")
	}
}
