// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"bytes"
	"testing"

	legacy "github.com/platinasystems/fdt"

	"github.com/platinasystems/devtree/internal/fdttest"
)

// The map based parser used by older goes machines must see the same
// aliases and gpio pin descriptions.
func TestLegacyParser(t *testing.T) {
	blob := fdttest.Pi5()
	tree, err := Parse(blob)
	if err != nil {
		t.Fatal(err)
	}

	lt := &legacy.Tree{Debug: false, IsLittleEndian: false}
	lt.Parse(blob)

	for _, name := range []string{"aliases", "button@4", "led_act@9"} {
		found := 0
		lt.MatchNode(name, func(ln *legacy.Node) {
			found++
			n := tree.FindAll(func(n *Node) bool { return n.Name == name })
			if len(n) != 1 {
				t.Fatal(name, "wrong:", n)
			}
			if len(ln.Properties) != len(n[0].Properties) {
				t.Error(name, "property count", len(ln.Properties),
					len(n[0].Properties))
			}
			for pn, lv := range ln.Properties {
				v, ok := n[0].Prop(pn)
				if !ok {
					t.Error(name, "missing", pn)
					continue
				}
				if !bytes.Equal(bytes.TrimRight(lv, "\x00"),
					bytes.TrimRight(v, "\x00")) {
					t.Errorf("%s %s: %q != %q", name, pn, lv, v)
				}
			}
		})
		if found == 0 {
			t.Error(name, "not matched")
		}
	}
}
