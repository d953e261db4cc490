// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import "strings"

// Property returns the decoded value of a node's property. A missing
// property is ErrNotFound; a property that failed to decode returns its
// raw bytes with the recorded ErrBadValue. Results are memoized in the
// tree's cache.
func (t *Tree) Property(n *Node, name string) (Value, error) {
	return t.cache.Lookup(t, n, name, func() (Value, error) {
		return t.decode(n, name)
	})
}

// Cache is the property cache Property uses.
func (t *Tree) Cache() *Cache { return t.cache }

// SetCache shares a cache between trees; it drops entries of other parses.
func (t *Tree) SetCache(c *Cache) { t.cache = c }

func (t *Tree) decode(n *Node, name string) (Value, error) {
	raw, found := n.Prop(name)
	if !found {
		return Value{}, &Error{
			Kind:   ErrNotFound,
			Offset: -1,
			Path:   n.Path(),
			Prop:   name,
		}
	}
	if w := n.Warning(name); w != nil {
		return Value{Kind: KindBytes, Raw: raw}, w
	}
	v := Value{Raw: raw}
	switch {
	case name == "compatible":
		v.Kind, v.Strings = KindStrings, n.Compatible
	case name == "reg":
		v.Kind, v.Reg = KindReg, n.Reg
	case name == "ranges":
		v.Kind, v.Ranges = KindRanges, n.Ranges
	case name == "interrupts":
		v.Kind, v.Interrupts = KindInterrupts, n.Interrupts
	case name == "clocks":
		return t.phandleArgs(n, name, raw, "#clock-cells")
	case name == "interrupts-extended":
		return t.phandleArgs(n, name, raw, "#interrupt-cells")
	case name == "gpios" || strings.HasSuffix(name, "-gpios"):
		return t.phandleArgs(n, name, raw, "#gpio-cells")
	default:
		var err error
		v, err = Decode(name, raw, n.Context())
		if err != nil {
			return Value{Kind: KindBytes, Raw: raw}, located(err, n, name)
		}
	}
	return v, nil
}

// phandleArgs decodes a list of <phandle arg...> entries whose argument
// count is the provider's cells property.
func (t *Tree) phandleArgs(n *Node, name string, raw []byte, cellsProp string) (Value, error) {
	v := Value{Kind: KindPhandleArgs, Raw: raw}
	cells, err := DecodeCells(raw)
	if err != nil {
		return Value{Kind: KindBytes, Raw: raw}, located(err, n, name)
	}
	for i := 0; i < len(cells); {
		pa := PhandleArgs{Phandle: cells[i]}
		i++
		if pa.Phandle == 0 {
			v.PhandleArgs = append(v.PhandleArgs, pa)
			continue
		}
		pa.Node = t.ResolvePhandle(pa.Phandle)
		if pa.Node == nil {
			return Value{Kind: KindBytes, Raw: raw}, located(
				valueErr("phandle 0x%x not found", pa.Phandle),
				n, name)
		}
		var nargs uint32
		if cellsProp == "#interrupt-cells" {
			nargs = pa.Node.InterruptCells
		} else {
			var found bool
			if nargs, found = pa.Node.PropU32(cellsProp); !found {
				return Value{Kind: KindBytes, Raw: raw}, located(
					valueErr("%s has no %s", pa.Node.Path(),
						cellsProp), n, name)
			}
		}
		if uint64(i)+uint64(nargs) > uint64(len(cells)) {
			return Value{Kind: KindBytes, Raw: raw}, located(
				valueErr("%s wants %d cells, %d left",
					pa.Node.Path(), nargs, len(cells)-i),
				n, name)
		}
		pa.Args = cells[i : i+int(nargs) : i+int(nargs)]
		i += int(nargs)
		v.PhandleArgs = append(v.PhandleArgs, pa)
	}
	return v, nil
}
