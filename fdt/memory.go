// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import "fmt"

type RegionKind int

const (
	Memory RegionKind = iota
	Reserved
)

func (k RegionKind) String() string {
	if k == Reserved {
		return "reserved"
	}
	return "memory"
}

// Region is a physical address range for the memory manager. Node is nil
// for entries of the header's reservation block.
type Region struct {
	Kind    RegionKind
	Address uint64
	Size    uint64
	Node    *Node
}

func (r Region) String() string {
	return fmt.Sprintf("%s 0x%x-0x%x", r.Kind, r.Address,
		r.Address+r.Size-1)
}

// IsMemory reports whether n describes system RAM.
func IsMemory(n *Node) bool {
	if n.PropString("device_type") == "memory" {
		return true
	}
	return n.Parent != nil && n.Parent.Parent == nil &&
		n.BaseName() == "memory"
}

// EachRegion calls f with every enabled memory node reg entry, then every
// reservation block entry, then every /reserved-memory child reg entry.
// It stops at the first error f or address translation returns.
func (t *Tree) EachRegion(f func(r Region) error) error {
	emit := func(kind RegionKind, n *Node) error {
		for i := range n.Reg {
			r, err := t.RegAddress(n, i)
			if err != nil {
				return err
			}
			err = f(Region{
				Kind:    kind,
				Address: r.Address,
				Size:    r.Size,
				Node:    n,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range t.nodes {
		if IsMemory(n) && n.Enabled() {
			if err := emit(Memory, n); err != nil {
				return err
			}
		}
	}
	for _, r := range t.Reservations {
		err := f(Region{
			Kind:    Reserved,
			Address: r.Address,
			Size:    r.Size,
		})
		if err != nil {
			return err
		}
	}
	if rm := t.Root.Child("reserved-memory"); rm != nil {
		for _, n := range rm.Children {
			if !n.Enabled() {
				continue
			}
			if err := emit(Reserved, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Regions collects EachRegion.
func (t *Tree) Regions() (regions []Region, err error) {
	err = t.EachRegion(func(r Region) error {
		regions = append(regions, r)
		return nil
	})
	return
}
