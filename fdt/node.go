// Copyright © 2015-2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"errors"
	"strings"
	"sync/atomic"
)

type Property struct {
	Name  string
	Value []byte // view into the blob
}

// Node is one node of a parsed tree. Everything but the bind status is set
// by Parse and must not be modified afterwards.
type Node struct {
	Name       string
	Depth      int
	Parent     *Node
	Children   []*Node
	Properties []Property

	// Zero if the node has no phandle.
	Phandle uint32
	// Most specific first.
	Compatible []string

	// Effective cell sizes, inherited from the parent unless the node
	// declares its own.
	AddressCells   uint32
	SizeCells      uint32
	InterruptCells uint32

	// Decoded with the parent's cell sizes.
	Reg []Reg
	// HasRanges with no Ranges is an identity mapping.
	HasRanges bool
	Ranges    []Range

	InterruptParent *Node
	Interrupts      []Interrupt

	// Property decode failures, each an *Error of kind ErrBadValue.
	Warnings []error

	id     int
	offset int
	path   string
	sealed bool
	bind   atomic.Pointer[BindStatus]
}

// ID is the node's pre-order index in its tree.
func (n *Node) ID() int { return n.id }

// Offset of the node's BEGIN_NODE token in the blob.
func (n *Node) Offset() int { return n.offset }

func (n *Node) Path() string {
	if n == nil {
		return ""
	}
	return n.path
}

// BaseName is the node name without the unit address.
func (n *Node) BaseName() string {
	if i := strings.IndexByte(n.Name, '@'); i >= 0 {
		return n.Name[:i]
	}
	return n.Name
}

func (n *Node) UnitAddress() string {
	if i := strings.IndexByte(n.Name, '@'); i >= 0 {
		return n.Name[i+1:]
	}
	return ""
}

// Prop returns the raw payload of the named property.
func (n *Node) Prop(name string) ([]byte, bool) {
	for i := range n.Properties {
		if n.Properties[i].Name == name {
			return n.Properties[i].Value, true
		}
	}
	return nil, false
}

func (n *Node) HasProp(name string) bool {
	_, found := n.Prop(name)
	return found
}

// PropString returns the first string of a string property, or "".
func (n *Node) PropString(name string) string {
	b, found := n.Prop(name)
	if !found {
		return ""
	}
	ss, err := DecodeStrings(b)
	if err != nil {
		return ""
	}
	return ss[0]
}

// PropU32 returns a single cell property.
func (n *Node) PropU32(name string) (uint32, bool) {
	b, found := n.Prop(name)
	if !found || len(b) != 4 {
		return 0, false
	}
	return be32(b), true
}

// Warning returns the decode failure recorded for the named property.
func (n *Node) Warning(name string) error {
	for _, w := range n.Warnings {
		var e *Error
		if errors.As(w, &e) && e.Prop == name {
			return w
		}
	}
	return nil
}

// Enabled is false for nodes whose status is neither "okay" nor "ok".
func (n *Node) Enabled() bool {
	if !n.HasProp("status") {
		return true
	}
	switch n.PropString("status") {
	case "okay", "ok":
		return true
	}
	return false
}

// IsCompatible reports whether c is one of the node's compatible strings.
func (n *Node) IsCompatible(c string) bool {
	for _, s := range n.Compatible {
		if s == c {
			return true
		}
	}
	return false
}

// Child returns the child with the given name. A name without unit address
// matches a child whose base name equals it, when exactly one does.
func (n *Node) Child(name string) *Node {
	var match *Node
	matches := 0
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
		if strings.IndexByte(name, '@') < 0 && c.BaseName() == name {
			match = c
			matches++
		}
	}
	if matches == 1 {
		return match
	}
	return nil
}

// Context returns the cell size context the node's properties decode in.
func (n *Node) Context() Context {
	ctx := Context{
		AddressCells:      defaultAddressCells,
		SizeCells:         defaultSizeCells,
		ChildAddressCells: n.AddressCells,
		ChildSizeCells:    n.SizeCells,
	}
	if n.Parent != nil {
		ctx.AddressCells = n.Parent.AddressCells
		ctx.SizeCells = n.Parent.SizeCells
	}
	if n.InterruptParent != nil {
		ctx.InterruptCells = n.InterruptParent.InterruptCells
	}
	return ctx
}

type BindState int32

const (
	Unbound BindState = iota
	Probing
	Bound
	BindFailed
)

func (s BindState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Probing:
		return "probing"
	case Bound:
		return "bound"
	case BindFailed:
		return "bind-failed"
	}
	return "unknown"
}

// BindStatus records which driver, if any, owns a node.
type BindStatus struct {
	State  BindState
	Driver uint32
	Err    error
}

var unbound = &BindStatus{}

func (n *Node) BindStatus() BindStatus {
	if p := n.bind.Load(); p != nil {
		return *p
	}
	return BindStatus{}
}

// transition moves the bind status from one state to another with a
// compare-and-swap so concurrent dispatchers can't both win.
func (n *Node) transition(from BindState, to *BindStatus) bool {
	for {
		p := n.bind.Load()
		cur := Unbound
		if p != nil {
			cur = p.State
		}
		if cur != from {
			return false
		}
		if n.bind.CompareAndSwap(p, to) {
			return true
		}
	}
}

// Claim moves an unbound node to probing; only one caller succeeds.
func (n *Node) Claim() bool {
	return n.transition(Unbound, &BindStatus{State: Probing})
}

// Reclaim moves a bound or failed node back to probing for unbind or
// retry.
func (n *Node) Reclaim(from BindState) bool {
	if from != Bound && from != BindFailed {
		return false
	}
	return n.transition(from, &BindStatus{State: Probing})
}

// Release returns a probing node to unbound.
func (n *Node) Release() bool {
	return n.transition(Probing, unbound)
}

func (n *Node) SetBound(driver uint32) bool {
	return n.transition(Probing, &BindStatus{
		State:  Bound,
		Driver: driver,
	})
}

func (n *Node) SetBindFailed(driver uint32, err error) bool {
	return n.transition(Probing, &BindStatus{
		State:  BindFailed,
		Driver: driver,
		Err:    err,
	})
}
