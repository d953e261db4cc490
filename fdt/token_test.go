// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"errors"
	"testing"

	"github.com/platinasystems/devtree/internal/fdttest"
)

func scanner(t *testing.T, blob []byte) *Scanner {
	s, err := NewScanner(blob)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewScannerChecksHeader(t *testing.T) {
	blob := fdttest.New().Begin("").End().Build()
	// Structure block past the end of the blob.
	fdttest.Put32(blob, fdttest.OffDtStruct, uint32(len(blob))+64)
	if s, err := NewScanner(blob); !errors.Is(err, ErrBadLayout) || s != nil {
		t.Error("wrong:", s, err)
	}
	if _, err := NewScanner(blob[:8]); !errors.Is(err, ErrTruncated) {
		t.Error("wrong:", err)
	}
}

func TestScanner(t *testing.T) {
	b := fdttest.New()
	b.Begin("").Cells("a", 1).Nop().Begin("child@1").End().End()
	s := scanner(t, b.Build())

	want := []TokenKind{
		TokenBeginNode,
		TokenProperty,
		TokenNop,
		TokenBeginNode,
		TokenEndNode,
		TokenEndNode,
		TokenEnd,
	}
	var got []TokenKind
	var names []string
	for range want {
		tok, err := s.Next()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, tok.Kind)
		switch tok.Kind {
		case TokenBeginNode:
			names = append(names, string(tok.Name))
		case TokenProperty:
			if tok.NameOff != b.StringOff("a") ||
				string(tok.Value) != "\x00\x00\x00\x01" {
				t.Error("wrong property:", tok)
			}
		}
	}
	for i := range want {
		if got[i] != want[i] {
			t.Error("wrong:", got)
			break
		}
	}
	if len(names) != 2 || names[0] != "" || names[1] != "child@1" {
		t.Error("wrong names:", names)
	}
	if s.Depth() != 0 {
		t.Error("wrong depth:", s.Depth())
	}
	if _, err := s.Next(); !errors.Is(err, ErrBadStructure) {
		t.Error("read past END:", err)
	}
}

func TestBadStructure(t *testing.T) {
	for _, x := range []struct {
		name string
		blob func() []byte
	}{
		{"no END", func() []byte {
			return fdttest.New().Begin("").Cells("a", 1).End().Raw()
		}},
		{"END_NODE first", func() []byte {
			return fdttest.New().End().Build()
		}},
		{"bad token", func() []byte {
			return fdttest.New().Begin("").Token(7).End().Build()
		}},
		{"second root", func() []byte {
			return fdttest.New().Begin("").End().Begin("x").End().Build()
		}},
		{"property outside node", func() []byte {
			return fdttest.New().Cells("a", 1).Begin("").End().Build()
		}},
		{"truncated name", func() []byte {
			return fdttest.New().Token(fdttest.BeginNode).Raw()
		}},
		{"unclosed", func() []byte {
			return fdttest.New().Begin("").Begin("a").End().Build()
		}},
		{"property length", func() []byte {
			return fdttest.New().Begin("").
				Token(fdttest.Prop).Token(0x100).Token(0).
				Raw()
		}},
		{"string offset", func() []byte {
			return fdttest.New().Begin("").PropAt(0x1000, nil).
				End().Build()
		}},
		{"property after subnode", func() []byte {
			return fdttest.New().Begin("").Begin("a").End().
				Cells("x", 1).End().Build()
		}},
		{"unnamed child", func() []byte {
			return fdttest.New().Begin("").Cells("x", 1).
				Begin("").End().End().Build()
		}},
		{"duplicate phandle", func() []byte {
			return fdttest.New().Begin("").
				Begin("a").Cells("phandle", 5).End().
				Begin("b").Cells("phandle", 5).End().
				End().Build()
		}},
	} {
		tree, err := Parse(x.blob())
		if !errors.Is(err, ErrBadStructure) {
			t.Error(x.name, "expected bad structure, got", err)
		}
		if tree != nil {
			t.Error(x.name, "partial tree")
		}
	}
}

func TestBadTokenOffset(t *testing.T) {
	blob := fdttest.New().Begin("").Token(7).End().Build()
	_, err := Parse(blob)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("wrong:", err)
	}
	// BEGIN_NODE tag and the padded empty name precede it.
	want := int(fdttest.Get32(blob, fdttest.OffDtStruct)) + 8
	if e.Offset != want {
		t.Error("wrong offset:", e.Offset, "want", want)
	}
}

func TestMaxDepth(t *testing.T) {
	b := fdttest.New()
	b.Begin("").Cells("x", 1)
	for i := 0; i < 5; i++ {
		b.Begin("n")
	}
	for i := 0; i < 6; i++ {
		b.End()
	}
	blob := b.Build()
	if _, err := (Config{MaxDepth: 4}).Parse(blob); !errors.Is(err, ErrBadStructure) {
		t.Error("depth 6 with max 4:", err)
	}
	tree, err := (Config{MaxDepth: 6}).Parse(blob)
	if err != nil {
		t.Fatal(err)
	}
	if n := tree.NodeByPath("/n/n/n/n/n"); n == nil || n.Depth != 5 {
		t.Error("wrong:", n)
	}
}

func TestStringPool(t *testing.T) {
	p := stringPool("compatible\x00reg\x00bad")
	for _, x := range []struct {
		off  uint32
		want string
		ok   bool
	}{
		{0, "compatible", true},
		{11, "reg", true},
		{13, "g", true},
		{15, "", false},
		{100, "", false},
	} {
		v, err := p.lookup(x.off)
		if x.ok != (err == nil) || string(v) != x.want {
			t.Error(x.off, "wrong:", string(v), err)
		}
		if err != nil && !errors.Is(err, ErrBadStructure) {
			t.Error(x.off, "wrong kind:", err)
		}
	}
}
