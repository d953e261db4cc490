// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import "fmt"

// Bits of a three cell address's leading cell that select the address
// space, e.g. PCI configuration, I/O, 32 or 64 bit memory.
const SpaceMask = 0x03000000

// Translate converts an address on n's parent bus into a CPU physical
// address. Each ancestor bus with ranges maps the address into its own
// parent's space; an empty ranges is the identity. The walk stops at the
// root or at a bus without ranges, whose addresses aren't translated
// further. An address outside every window of a bus is
// ErrAddressNotMapped.
func (t *Tree) Translate(n *Node, addr uint64) (uint64, error) {
	_, a, err := t.TranslateCells(n, 0, addr)
	return a, err
}

// TranslateCells is Translate for buses with three address cells; hi is
// the leading cell. A window only maps addresses in its own space, as
// SpaceMask selects, and the leading cell returned is that of the last
// bus reached.
func (t *Tree) TranslateCells(n *Node, hi uint32, addr uint64) (uint32, uint64, error) {
	for bus := n.Parent; bus != nil && bus.Parent != nil; bus = bus.Parent {
		if w := bus.Warning("ranges"); w != nil {
			return 0, 0, &Error{
				Kind:   ErrAddressNotMapped,
				Offset: -1,
				Path:   bus.Path(),
				Prop:   "ranges",
				Msg:    w.Error(),
			}
		}
		if !bus.HasRanges {
			return hi, addr, nil
		}
		if len(bus.Ranges) == 0 {
			continue
		}
		mapped := false
		for _, r := range bus.Ranges {
			if (hi^r.ChildHi)&SpaceMask != 0 {
				continue
			}
			if addr >= r.Child && addr-r.Child < r.Size {
				hi = r.ParentHi
				addr = r.Parent + (addr - r.Child)
				mapped = true
				break
			}
		}
		if !mapped {
			return 0, 0, &Error{
				Kind:   ErrAddressNotMapped,
				Offset: -1,
				Path:   bus.Path(),
				Prop:   "ranges",
				Msg: fmt.Sprintf("0x%x 0x%x from %s is outside every window",
					hi, addr, n.Path()),
			}
		}
	}
	return hi, addr, nil
}

// RegAddress returns the i'th reg entry of n with its address translated.
func (t *Tree) RegAddress(n *Node, i int) (Reg, error) {
	if i < 0 || i >= len(n.Reg) {
		if w := n.Warning("reg"); w != nil {
			return Reg{}, w
		}
		return Reg{}, &Error{
			Kind:   ErrNotFound,
			Offset: -1,
			Path:   n.Path(),
			Prop:   "reg",
			Msg:    fmt.Sprintf("no entry %d", i),
		}
	}
	r := n.Reg[i]
	hi, a, err := t.TranslateCells(n, r.Hi, r.Address)
	if err != nil {
		return Reg{}, err
	}
	r.Hi, r.Address = hi, a
	return r, nil
}
