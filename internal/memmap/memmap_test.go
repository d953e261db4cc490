// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package memmap

import (
	"strings"
	"testing"

	"github.com/platinasystems/devtree/fdt"
	"github.com/platinasystems/devtree/internal/fdttest"
)

const iomem = `00000000-3b3fffff : System RAM
  00210000-0112ffff : Kernel code
3b400000-3fffffff : reserved
40000000-fbffffff : System RAM
fc000000-ffffffff : System RAM
107d001000-107d0011ff : serial@7d001000
`

func TestReaderToMap(t *testing.T) {
	m, err := ReaderToMap(strings.NewReader(iomem))
	if err != nil {
		t.Fatal(err)
	}
	ram := m[SystemRAM]
	if len(ram.Ranges) != 3 || ram.Ranges[2].End != 0xffffffff {
		t.Error("wrong:", ram)
	}
	if k := m["Kernel code"]; len(k.Ranges) != 1 || k.Ranges[0].Start != 0x210000 {
		t.Error("wrong:", k)
	}
	if s := m["serial@7d001000"]; s.Ranges[0].Start != 0x107d001000 {
		t.Error("wrong:", s)
	}
	if _, err = ReaderToMap(strings.NewReader("nonsense\n")); err == nil {
		t.Error("expected error")
	}
	if _, err = ReaderToMap(strings.NewReader("zz : x\n")); err == nil {
		t.Error("expected error")
	}
}

func TestFromTree(t *testing.T) {
	tree, err := fdt.Parse(fdttest.Pi5())
	if err != nil {
		t.Fatal(err)
	}
	m, err := FromTree(tree)
	if err != nil {
		t.Fatal(err)
	}
	if s := m[SystemRAM].String(); s != "System RAM: [0-ffffffff]" {
		t.Error("wrong:", s)
	}
	if s := m[Reserved].String(); s != "reserved: [0-7ffff 3b400000-3fffffff]" {
		t.Error("wrong:", s)
	}
}

func TestUncovered(t *testing.T) {
	tree, err := fdt.Parse(fdttest.Pi5())
	if err != nil {
		t.Fatal(err)
	}
	want, err := FromTree(tree)
	if err != nil {
		t.Fatal(err)
	}
	have, err := ReaderToMap(strings.NewReader(iomem))
	if err != nil {
		t.Fatal(err)
	}
	missing := have.Uncovered(want)
	// RAM is split in three by the kernel, and the firmware's 0-7ffff
	// isn't listed.
	if len(missing) != 2 {
		t.Fatal("wrong:", missing)
	}
	if s := missing[0].String(); s != "System RAM: [0-ffffffff]" {
		t.Error("wrong:", s)
	}
	if s := missing[1].String(); s != "reserved: [0-7ffff]" {
		t.Error("wrong:", s)
	}
	if l := want.Uncovered(want); len(l) != 0 {
		t.Error("wrong:", l)
	}
}
