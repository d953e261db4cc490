// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"fmt"
	"strings"
)

const (
	maxAddressCells = 3
	maxSizeCells    = 2
)

type Kind int

const (
	KindBytes Kind = iota
	KindBool
	KindU32
	KindU64
	KindString
	KindStrings
	KindCells
	KindReg
	KindRanges
	KindInterrupts
	KindPhandle
	KindPhandleArgs
)

var kindNames = [...]string{
	KindBytes:       "bytes",
	KindBool:        "bool",
	KindU32:         "u32",
	KindU64:         "u64",
	KindString:      "string",
	KindStrings:     "strings",
	KindCells:       "cells",
	KindReg:         "reg",
	KindRanges:      "ranges",
	KindInterrupts:  "interrupts",
	KindPhandle:     "phandle",
	KindPhandleArgs: "phandle-args",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprint("kind(", int(k), ")")
}

// Reg is one (address, size) pair of a reg property. Three cell addresses
// keep their leading cell, e.g. the PCI phys.hi, in Hi.
type Reg struct {
	Address uint64
	Size    uint64
	Hi      uint32
}

// Range maps [Child, Child+Size) of a bus onto Parent in its parent's
// address space.
type Range struct {
	Child    uint64
	Parent   uint64
	Size     uint64
	ChildHi  uint32
	ParentHi uint32
}

// Interrupt is one specifier, #interrupt-cells of the interrupt parent wide.
type Interrupt []uint32

// PhandleArgs is one entry of a phandle list with arguments such as
// clocks or *-gpios. A zero phandle marks an empty slot.
type PhandleArgs struct {
	Phandle uint32
	Node    *Node
	Args    []uint32
}

// Value is a decoded property. Only the fields matching Kind are set; Raw is
// always the payload. Slices are shared and must not be modified.
type Value struct {
	Kind        Kind
	Raw         []byte
	Bool        bool
	U64         uint64
	Strings     []string
	Cells       []uint32
	Reg         []Reg
	Ranges      []Range
	Interrupts  []Interrupt
	PhandleArgs []PhandleArgs
}

// U32 returns U64 truncated, for KindU32 and KindPhandle values.
func (v Value) U32() uint32 { return uint32(v.U64) }

// String returns the first string of a string or string list value.
func (v Value) String() string {
	if len(v.Strings) > 0 {
		return v.Strings[0]
	}
	return ""
}

// Context is the cell size context a property is decoded in.
type Context struct {
	// Of the parent bus, used by reg and the parent side of ranges.
	AddressCells, SizeCells uint32
	// Of the node itself, used by the child side of ranges.
	ChildAddressCells, ChildSizeCells uint32
	// Of the interrupt parent; zero when there is none.
	InterruptCells uint32
}

var boolProps = map[string]bool{
	"interrupt-controller": true,
	"gpio-controller":      true,
	"msi-controller":       true,
	"dma-coherent":         true,
	"dma-noncoherent":      true,
	"no-map":               true,
	"reusable":             true,
	"big-endian":           true,
	"little-endian":        true,
	"native-endian":        true,
	"wakeup-source":        true,
	"always-on":            true,
}

var u32Props = map[string]bool{
	"#address-cells":   true,
	"#size-cells":      true,
	"#interrupt-cells": true,
	"#clock-cells":     true,
	"#gpio-cells":      true,
	"#reset-cells":     true,
	"#dma-cells":       true,
	"#pwm-cells":       true,
	"#msi-cells":       true,
	"reg-shift":        true,
	"reg-io-width":     true,
	"ngpios":           true,
	"virtual-reg":      true,
	"cache-line-size":  true,
	"cache-size":       true,
	"cache-sets":       true,
	"cache-block-size": true,
	"cache-level":      true,
	"current-speed":    true,
	"linux,pci-domain": true,
}

var phandleProps = map[string]bool{
	"phandle":          true,
	"linux,phandle":    true,
	"interrupt-parent": true,
	"next-level-cache": true,
}

var stringProps = map[string]bool{
	"model":         true,
	"status":        true,
	"device_type":   true,
	"bootargs":      true,
	"stdout-path":   true,
	"label":         true,
	"method":        true,
	"enable-method": true,
	"name":          true,
}

// Decode interprets a property payload by name. Phandle lists that need
// the tree (clocks, *-gpios, interrupts-extended) decode here as plain
// cells; Tree.Property resolves them.
func Decode(name string, raw []byte, ctx Context) (v Value, err error) {
	v.Raw = raw
	switch {
	case name == "compatible" || strings.HasSuffix(name, "-names"):
		v.Kind = KindStrings
		v.Strings, err = DecodeStrings(raw)
	case stringProps[name]:
		v.Kind = KindString
		v.Strings, err = DecodeStrings(raw)
		if err == nil && len(v.Strings) != 1 {
			err = valueErr("%d strings where one was expected",
				len(v.Strings))
		}
	case name == "reg":
		v.Kind = KindReg
		v.Reg, err = DecodeReg(raw, ctx.AddressCells, ctx.SizeCells)
	case name == "ranges" || name == "dma-ranges":
		v.Kind = KindRanges
		v.Ranges, err = DecodeRanges(raw, ctx.ChildAddressCells,
			ctx.AddressCells, ctx.ChildSizeCells)
	case name == "interrupts":
		v.Kind = KindInterrupts
		v.Interrupts, err = DecodeInterrupts(raw, ctx.InterruptCells)
	case phandleProps[name]:
		v.Kind = KindPhandle
		var u uint32
		u, err = DecodeU32(raw)
		v.U64 = uint64(u)
	case boolProps[name]:
		v.Kind = KindBool
		v.Bool = true
	case u32Props[name]:
		v.Kind = KindU32
		var u uint32
		u, err = DecodeU32(raw)
		v.U64 = uint64(u)
	case name == "clock-frequency" || name == "timebase-frequency" ||
		name == "cpu-release-addr":
		v.Kind, v.U64, err = decodeU32OrU64(raw)
	default:
		v = decodeGeneric(raw)
	}
	return
}

// DecodeStrings splits a list of NUL terminated strings.
func DecodeStrings(b []byte) ([]string, error) {
	if len(b) == 0 {
		return nil, valueErr("empty string list")
	}
	if b[len(b)-1] != 0 {
		return nil, valueErr("string list is not NUL terminated")
	}
	return strings.Split(string(b[:len(b)-1]), "\x00"), nil
}

func DecodeU32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, valueErr("%d bytes where one cell was expected", len(b))
	}
	return be32(b), nil
}

func DecodeU64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, valueErr("%d bytes where two cells were expected",
			len(b))
	}
	return be64(b), nil
}

func decodeU32OrU64(b []byte) (Kind, uint64, error) {
	switch len(b) {
	case 4:
		return KindU32, uint64(be32(b)), nil
	case 8:
		return KindU64, be64(b), nil
	}
	return KindU32, 0, valueErr("%d bytes where one or two cells were expected",
		len(b))
}

func DecodeCells(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, valueErr("%d bytes is not a whole number of cells",
			len(b))
	}
	cells := make([]uint32, len(b)/4)
	for i := range cells {
		cells[i] = be32(b[4*i:])
	}
	return cells, nil
}

// readNumber concatenates n big-endian cells. Cells beyond the low two are
// returned as hi; callers bound n to three.
func readNumber(b []byte, n uint32) (hi uint32, v uint64) {
	switch n {
	case 0:
	case 1:
		v = uint64(be32(b))
	case 2:
		v = be64(b)
	default:
		hi = be32(b)
		v = be64(b[4*(n-2):])
	}
	return
}

func checkCells(ac, sc uint32) error {
	if ac > maxAddressCells {
		return valueErr("#address-cells %d is not supported", ac)
	}
	if sc > maxSizeCells {
		return valueErr("#size-cells %d is not supported", sc)
	}
	return nil
}

// DecodeReg decodes (address, size) pairs with the cell sizes of the
// parent bus.
func DecodeReg(b []byte, addressCells, sizeCells uint32) ([]Reg, error) {
	if err := checkCells(addressCells, sizeCells); err != nil {
		return nil, err
	}
	w := int(addressCells+sizeCells) * 4
	if w == 0 {
		if len(b) != 0 {
			return nil, valueErr("%d bytes with zero width entries",
				len(b))
		}
		return nil, nil
	}
	if len(b)%w != 0 {
		return nil, valueErr("%d bytes is not a multiple of %d byte entries (%d+%d cells)",
			len(b), w, addressCells, sizeCells)
	}
	regs := make([]Reg, 0, len(b)/w)
	for i := 0; i < len(b); i += w {
		var r Reg
		r.Hi, r.Address = readNumber(b[i:], addressCells)
		_, r.Size = readNumber(b[i+4*int(addressCells):], sizeCells)
		regs = append(regs, r)
	}
	return regs, nil
}

// DecodeRanges decodes (child, parent, size) triples. An empty payload is
// the identity mapping and decodes to no ranges.
func DecodeRanges(b []byte, childCells, parentCells, sizeCells uint32) ([]Range, error) {
	if err := checkCells(childCells, sizeCells); err != nil {
		return nil, err
	}
	if err := checkCells(parentCells, 0); err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	w := int(childCells+parentCells+sizeCells) * 4
	if w == 0 || len(b)%w != 0 {
		return nil, valueErr("%d bytes is not a multiple of %d byte entries (%d+%d+%d cells)",
			len(b), w, childCells, parentCells, sizeCells)
	}
	ranges := make([]Range, 0, len(b)/w)
	for i := 0; i < len(b); i += w {
		var r Range
		o := i
		r.ChildHi, r.Child = readNumber(b[o:], childCells)
		o += 4 * int(childCells)
		r.ParentHi, r.Parent = readNumber(b[o:], parentCells)
		o += 4 * int(parentCells)
		_, r.Size = readNumber(b[o:], sizeCells)
		if r.Size > 0 && (r.Child+(r.Size-1) < r.Child ||
			r.Parent+(r.Size-1) < r.Parent) {
			return nil, valueErr("window 0x%x 0x%x size 0x%x wraps past the end of the address space",
				r.Child, r.Parent, r.Size)
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// DecodeInterrupts splits interrupt specifiers of the given width.
func DecodeInterrupts(b []byte, cells uint32) ([]Interrupt, error) {
	if cells == 0 {
		return nil, valueErr("no #interrupt-cells for %d bytes", len(b))
	}
	w := int(cells) * 4
	if len(b)%w != 0 {
		return nil, valueErr("%d bytes is not a multiple of %d byte specifiers",
			len(b), w)
	}
	all, _ := DecodeCells(b)
	irqs := make([]Interrupt, 0, len(all)/int(cells))
	for i := 0; i < len(all); i += int(cells) {
		irqs = append(irqs, Interrupt(all[i:i+int(cells):i+int(cells)]))
	}
	return irqs, nil
}

// decodeGeneric guesses the type of a property nobody registered: empty is
// a marker, printable NUL terminated text is a string list, whole cells are
// cells and anything else stays bytes.
func decodeGeneric(b []byte) Value {
	v := Value{Raw: b}
	if len(b) == 0 {
		v.Kind = KindBool
		v.Bool = true
		return v
	}
	if ss, ok := printableStrings(b); ok {
		v.Kind = KindStrings
		if len(ss) == 1 {
			v.Kind = KindString
		}
		v.Strings = ss
		return v
	}
	if len(b)%4 == 0 {
		v.Kind = KindCells
		v.Cells, _ = DecodeCells(b)
		if len(b) == 4 {
			v.Kind = KindU32
			v.U64 = uint64(v.Cells[0])
		}
		return v
	}
	v.Kind = KindBytes
	return v
}

func printableStrings(b []byte) ([]string, bool) {
	if len(b) == 0 || b[len(b)-1] != 0 || b[0] == 0 {
		return nil, false
	}
	for i, c := range b {
		if c == 0 {
			if i > 0 && b[i-1] == 0 {
				return nil, false
			}
			continue
		}
		if c < 0x20 || c > 0x7e {
			return nil, false
		}
	}
	ss, _ := DecodeStrings(b)
	return ss, true
}
