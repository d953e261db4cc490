// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"errors"
	"reflect"
	"testing"

	"github.com/platinasystems/devtree/internal/fdttest"
)

var cells = fdttest.CellBytes

func TestDecodeReg(t *testing.T) {
	for _, x := range []struct {
		name   string
		raw    []byte
		ac, sc uint32
		want   []Reg
		bad    bool
	}{
		{"2+2", cells(0x1, 0x2000, 0x0, 0x1000), 2, 2,
			[]Reg{{Address: 0x1_0000_2000, Size: 0x1000}}, false},
		{"12 bytes with 2+2", cells(0x1, 0x2000, 0x1000), 2, 2,
			nil, true},
		{"2+1", cells(0x1, 0x2000, 0x1000), 2, 1,
			[]Reg{{Address: 0x1_0000_2000, Size: 0x1000}}, false},
		{"memory@0", cells(0x0, 0x0, 0x1, 0x0), 2, 2,
			[]Reg{{Address: 0, Size: 0x1_0000_0000}}, false},
		{"1+1 pairs", cells(0x1000, 0x10, 0x2000, 0x20), 1, 1,
			[]Reg{{0x1000, 0x10, 0}, {0x2000, 0x20, 0}}, false},
		{"1+0", cells(3), 1, 0,
			[]Reg{{Address: 3}}, false},
		{"3+2", cells(0x82000000, 0x0, 0x600000, 0x0, 0x1000), 3, 2,
			[]Reg{{Address: 0x600000, Size: 0x1000, Hi: 0x82000000}},
			false},
		{"4 address cells", cells(1, 2, 3, 4, 5), 4, 1, nil, true},
		{"3 size cells", cells(1, 2, 3, 4), 1, 3, nil, true},
		{"zero width", cells(1), 0, 0, nil, true},
		{"empty", nil, 2, 1, []Reg{}, false},
	} {
		regs, err := DecodeReg(x.raw, x.ac, x.sc)
		if x.bad {
			if !errors.Is(err, ErrBadValue) {
				t.Error(x.name, "expected bad value, got", regs, err)
			}
			continue
		}
		if err != nil {
			t.Error(x.name, err)
			continue
		}
		if len(regs) != len(x.want) ||
			(len(regs) > 0 && !reflect.DeepEqual(regs, x.want)) {
			t.Error(x.name, "wrong:", regs)
		}
	}
}

func TestDecodeRanges(t *testing.T) {
	r, err := DecodeRanges(nil, 1, 2, 1)
	if err != nil || r != nil {
		t.Error("empty ranges:", r, err)
	}
	r, err = DecodeRanges(cells(0x7c000000, 0x10, 0x7c000000, 0x04000000),
		1, 2, 1)
	want := []Range{{
		Child:  0x7c000000,
		Parent: 0x10_7c000000,
		Size:   0x04000000,
	}}
	if err != nil || !reflect.DeepEqual(r, want) {
		t.Error("wrong:", r, err)
	}
	r, err = DecodeRanges(cells(0x02000000, 0x0, 0xc0000000,
		0x0, 0xc0000000,
		0x0, 0x40000000), 3, 2, 2)
	want = []Range{{
		ChildHi: 0x02000000,
		Child:   0xc0000000,
		Parent:  0xc0000000,
		Size:    0x40000000,
	}}
	if err != nil || !reflect.DeepEqual(r, want) {
		t.Error("wrong pci:", r, err)
	}
	if _, err = DecodeRanges(cells(1, 2, 3), 1, 2, 1); !errors.Is(err, ErrBadValue) {
		t.Error("short ranges:", err)
	}
	for _, b := range [][]byte{
		// parent side wraps
		cells(0x0, 0xffffffff, 0xffff0000, 0x100000),
		// child side wraps
		cells(0xffffffff, 0xffff0000, 0x0, 0x0, 0x100000),
	} {
		cc := uint32(1)
		if len(b) == 20 {
			cc = 2
		}
		if r, err = DecodeRanges(b, cc, 2, 1); !errors.Is(err, ErrBadValue) {
			t.Error("wrapping window:", r, err)
		}
	}
	// A window ending at the last byte is fine.
	r, err = DecodeRanges(cells(0x0, 0xffffffff, 0xffff0000, 0x10000), 1, 2, 1)
	if err != nil || len(r) != 1 {
		t.Error("top window:", r, err)
	}
}

func TestDecodeInterrupts(t *testing.T) {
	irqs, err := DecodeInterrupts(cells(0, 121, 4, 0, 122, 4), 3)
	want := []Interrupt{{0, 121, 4}, {0, 122, 4}}
	if err != nil || !reflect.DeepEqual(irqs, want) {
		t.Error("wrong:", irqs, err)
	}
	if _, err = DecodeInterrupts(cells(0, 121), 3); !errors.Is(err, ErrBadValue) {
		t.Error("partial specifier:", err)
	}
	if _, err = DecodeInterrupts(cells(5), 0); !errors.Is(err, ErrBadValue) {
		t.Error("no cells:", err)
	}
}

func TestDecodeStrings(t *testing.T) {
	ss, err := DecodeStrings([]byte("raspberrypi,5-model-b\x00brcm,bcm2712\x00"))
	if err != nil || !reflect.DeepEqual(ss, []string{
		"raspberrypi,5-model-b",
		"brcm,bcm2712",
	}) {
		t.Error("wrong:", ss, err)
	}
	for _, b := range [][]byte{nil, []byte("abc")} {
		if _, err = DecodeStrings(b); !errors.Is(err, ErrBadValue) {
			t.Errorf("%q: %v", b, err)
		}
	}
}

func TestDecode(t *testing.T) {
	ctx := Context{
		AddressCells:      1,
		SizeCells:         1,
		ChildAddressCells: 1,
		ChildSizeCells:    1,
		InterruptCells:    2,
	}
	for _, x := range []struct {
		name string
		raw  []byte
		kind Kind
		bad  bool
	}{
		{"compatible", []byte("a\x00b\x00"), KindStrings, false},
		{"clock-names", []byte("uartclk\x00"), KindStrings, false},
		{"status", []byte("okay\x00"), KindString, false},
		{"status", []byte("okay\x00extra\x00"), KindString, true},
		{"reg", cells(1, 2), KindReg, false},
		{"ranges", nil, KindRanges, false},
		{"dma-ranges", cells(0, 0, 0x1000), KindRanges, false},
		{"interrupts", cells(1, 2), KindInterrupts, false},
		{"phandle", cells(7), KindPhandle, false},
		{"interrupt-parent", cells(1, 2), KindPhandle, true},
		{"interrupt-controller", nil, KindBool, false},
		{"#gpio-cells", cells(2), KindU32, false},
		{"#gpio-cells", cells(), KindU32, true},
		{"clock-frequency", cells(48000000), KindU32, false},
		{"clock-frequency", cells(0, 48000000), KindU64, false},
		{"clock-frequency", []byte{1, 2}, KindU32, true},
		{"vendor,blob", []byte{1, 2, 3}, KindBytes, false},
		{"vendor,cells", cells(1, 2), KindCells, false},
		{"vendor,one", cells(1), KindU32, false},
		{"vendor,flag", nil, KindBool, false},
		{"vendor,text", []byte("hello\x00"), KindString, false},
		{"vendor,texts", []byte("a\x00b\x00"), KindStrings, false},
	} {
		v, err := Decode(x.name, x.raw, ctx)
		if x.bad != (err != nil) {
			t.Error(x.name, x.raw, "wrong error:", err)
			continue
		}
		if x.bad {
			if !errors.Is(err, ErrBadValue) {
				t.Error(x.name, "wrong kind:", err)
			}
			continue
		}
		if v.Kind != x.kind {
			t.Error(x.name, "wrong kind:", v.Kind, "want", x.kind)
		}
	}
}

func TestDecodeValues(t *testing.T) {
	v, _ := Decode("clock-frequency", cells(0, 48000000), Context{})
	if v.U64 != 48000000 {
		t.Error("wrong:", v.U64)
	}
	v, _ = Decode("phandle", cells(7), Context{})
	if v.U32() != 7 {
		t.Error("wrong:", v.U32())
	}
	v, _ = Decode("model", []byte("Raspberry Pi 5\x00"), Context{})
	if v.String() != "Raspberry Pi 5" {
		t.Error("wrong:", v.String())
	}
}
