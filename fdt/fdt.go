// Copyright © 2015-2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package fdt parses Linux flattened device trees.
//
// A blob is validated, tokenized and built into an immutable tree of nodes
// with decoded reg, ranges, interrupts and compatible properties, a phandle
// index and a compatible index. The tree may then be queried concurrently;
// the per node bind status is the only state that changes after Parse.
package fdt

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	magic      = 0xd00dfeed
	begin_node = 0x1 // Start node: full name
	end_node   = 0x2 // End node
	prop       = 0x3 // Property
	nop        = 0x4 // nop
	end        = 0x9 // End of fdt
)

const defaultMaxDepth = 64

func align(x int, align int) int {
	return (x + align - 1) & ^(align - 1)
}

func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func be64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func (n *Node) String() (s string) {
	if n == nil {
		return "nil"
	}
	var sb strings.Builder
	n.dump(&sb)
	return sb.String()
}

func (n *Node) dump(sb *strings.Builder) {
	walkFrom(n, func(c *Node) {
		d := c.Depth - n.Depth
		fmt.Fprintf(sb, "%*s%s:", 2*d, "", c.Name)
		for _, p := range c.Properties {
			fmt.Fprintf(sb, "\n%*s%s = %s", 2*(1+d), "", p.Name,
				FormatRaw(p.Value))
		}
		sb.WriteByte('\n')
	})
}

func (t *Tree) String() string { return t.Root.String() }

// FormatRaw renders a property payload the way dtc prints it.
func FormatRaw(b []byte) string {
	if len(b) == 0 {
		return "<>"
	}
	if ss, ok := printableStrings(b); ok {
		return fmt.Sprintf("%q", ss)
	}
	if len(b)%4 == 0 {
		var sb strings.Builder
		sb.WriteByte('<')
		for i := 0; i < len(b); i += 4 {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "0x%x", be32(b[i:]))
		}
		sb.WriteByte('>')
		return sb.String()
	}
	return fmt.Sprintf("[% x]", b)
}
