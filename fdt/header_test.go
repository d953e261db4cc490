// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"errors"
	"testing"

	"github.com/platinasystems/devtree/internal/fdttest"
)

func TestReadHeader(t *testing.T) {
	blob := fdttest.Pi5()
	h, err := ReadHeader(blob)
	if err != nil {
		t.Fatal(err)
	}
	if h.Magic != magic || h.Version != 17 || h.LastCompatibleVersion != 16 {
		t.Error("wrong:", h.String())
	}
	if int(h.TotalSize) != len(blob) {
		t.Error("wrong total size:", h.TotalSize, len(blob))
	}
	if h.OffMemRsvmap != HeaderSize {
		t.Error("wrong reserve map offset:", h.OffMemRsvmap)
	}
}

func TestReadHeaderTruncated(t *testing.T) {
	blob := fdttest.Pi5()
	for _, n := range []int{len(blob) - 1, len(blob) / 2, HeaderSize, 39, 4, 3, 0} {
		// An exact length copy makes any read past the end panic.
		buf := append(make([]byte, 0, n), blob[:n]...)
		_, err := ReadHeader(buf)
		if n >= 4 && n < HeaderSize {
			if !errors.Is(err, ErrTruncated) {
				t.Error(n, "wrong:", err)
			}
			continue
		}
		if !errors.Is(err, ErrTruncated) {
			t.Error(n, "expected truncated, got", err)
		}
		if _, err = Parse(buf); !errors.Is(err, ErrTruncated) {
			t.Error(n, "Parse expected truncated, got", err)
		}
	}
}

func TestReadHeaderErrors(t *testing.T) {
	for _, x := range []struct {
		name string
		edit func(b []byte)
		kind error
	}{
		{"magic", func(b []byte) {
			fdttest.Put32(b, fdttest.OffMagic, 0xfeedd00d)
		}, ErrBadMagic},
		{"old version", func(b []byte) {
			fdttest.Put32(b, fdttest.OffVersion, 15)
		}, ErrUnsupportedVersion},
		{"future version", func(b []byte) {
			fdttest.Put32(b, fdttest.OffVersion, MaxVersion+1)
		}, ErrUnsupportedVersion},
		{"incompatible", func(b []byte) {
			fdttest.Put32(b, fdttest.OffLastCompVersion, 18)
		}, ErrUnsupportedVersion},
		{"struct offset at end", func(b []byte) {
			fdttest.Put32(b, fdttest.OffDtStruct,
				fdttest.Get32(b, fdttest.OffTotalSize))
		}, ErrBadLayout},
		{"struct offset in header", func(b []byte) {
			fdttest.Put32(b, fdttest.OffDtStruct, 8)
		}, ErrBadLayout},
		{"unaligned struct", func(b []byte) {
			fdttest.Put32(b, fdttest.OffDtStruct,
				fdttest.Get32(b, fdttest.OffDtStruct)+2)
		}, ErrBadLayout},
		{"unaligned reserve map", func(b []byte) {
			fdttest.Put32(b, fdttest.OffMemRsvmap, HeaderSize+4)
		}, ErrBadLayout},
		{"strings past end", func(b []byte) {
			fdttest.Put32(b, fdttest.OffSizeDtStrings,
				fdttest.Get32(b, fdttest.OffSizeDtStrings)+4)
		}, ErrBadLayout},
		{"struct past end", func(b []byte) {
			fdttest.Put32(b, fdttest.OffSizeDtStruct,
				fdttest.Get32(b, fdttest.OffTotalSize))
		}, ErrBadLayout},
		{"overlap", func(b []byte) {
			fdttest.Put32(b, fdttest.OffDtStrings,
				fdttest.Get32(b, fdttest.OffDtStruct))
		}, ErrBadLayout},
	} {
		blob := fdttest.Pi5()
		x.edit(blob)
		_, err := ReadHeader(blob)
		if !errors.Is(err, x.kind) {
			t.Error(x.name, "expected", x.kind, "got", err)
		}
		if _, err = Parse(blob); !errors.Is(err, x.kind) {
			t.Error(x.name, "Parse expected", x.kind, "got", err)
		}
	}
}

func TestReservations(t *testing.T) {
	tree, err := Parse(fdttest.Pi5())
	if err != nil {
		t.Fatal(err)
	}
	want := []Reservation{{0x3b400000, 0x4c00000}}
	if len(tree.Reservations) != 1 || tree.Reservations[0] != want[0] {
		t.Error("wrong:", tree.Reservations)
	}
}

func TestUnterminatedReservations(t *testing.T) {
	b := fdttest.New()
	b.Reserve(0x1000, 0x1000)
	b.Begin("").Cells("#address-cells", 1).End()
	blob := b.Build()
	// Leave no terminator before the structure block.
	off := fdttest.Get32(blob, fdttest.OffDtStruct)
	if _, err := ReadHeader(blob); err != nil {
		t.Fatal(err)
	}
	fdttest.Put32(blob, fdttest.OffMemRsvmap, off-16)
	for i := off - 16; i < off; i++ {
		blob[i] = 0xff
	}
	if _, err := Parse(blob); !errors.Is(err, ErrBadLayout) {
		t.Error("wrong:", err)
	}
}

func TestVersion16(t *testing.T) {
	b := fdttest.New()
	b.Version = 16
	b.Begin("").Strings("model", "v16").Begin("a").Cells("x", 1).End().End()
	blob := b.Build()
	fdttest.Put32(blob, fdttest.OffSizeDtStruct, 0)
	tree, err := Parse(blob)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Model() != "v16" || tree.NodeByPath("/a") == nil {
		t.Error("wrong:", tree)
	}
}
