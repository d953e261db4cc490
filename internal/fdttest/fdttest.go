// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package fdttest builds flattened device tree blobs for tests.
package fdttest

import (
	"bytes"
	"encoding/binary"
)

const (
	Magic = 0xd00dfeed

	BeginNode = 0x1
	EndNode   = 0x2
	Prop      = 0x3
	Nop       = 0x4
	End       = 0x9

	HeaderSize = 40
)

// Header word offsets.
const (
	OffMagic = 4 * iota
	OffTotalSize
	OffDtStruct
	OffDtStrings
	OffMemRsvmap
	OffVersion
	OffLastCompVersion
	OffBootCpuidPhys
	OffSizeDtStrings
	OffSizeDtStruct
)

type reservation struct{ addr, size uint64 }

// Builder accumulates the structure and strings blocks.
type Builder struct {
	Version     uint32
	LastComp    uint32
	BootCpuid   uint32
	structure   bytes.Buffer
	strings     bytes.Buffer
	stringMap   map[string]uint32
	reservation []reservation
}

func New() *Builder {
	return &Builder{
		Version:   17,
		LastComp:  16,
		stringMap: make(map[string]uint32),
	}
}

func (b *Builder) putU32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.structure.Write(buf[:])
}

func (b *Builder) pad() {
	for b.structure.Len()%4 != 0 {
		b.structure.WriteByte(0)
	}
}

// StringOff adds s to the strings block and returns its offset.
func (b *Builder) StringOff(s string) uint32 {
	if off, found := b.stringMap[s]; found {
		return off
	}
	off := uint32(b.strings.Len())
	b.strings.WriteString(s)
	b.strings.WriteByte(0)
	b.stringMap[s] = off
	return off
}

// Token appends a raw tag, for malformed streams.
func (b *Builder) Token(tag uint32) *Builder {
	b.putU32(tag)
	return b
}

func (b *Builder) Begin(name string) *Builder {
	b.putU32(BeginNode)
	b.structure.WriteString(name)
	b.structure.WriteByte(0)
	b.pad()
	return b
}

func (b *Builder) End() *Builder {
	b.putU32(EndNode)
	return b
}

func (b *Builder) Nop() *Builder {
	b.putU32(Nop)
	return b
}

func (b *Builder) Bytes(name string, v []byte) *Builder {
	return b.PropAt(b.StringOff(name), v)
}

// PropAt appends a property with an explicit name offset.
func (b *Builder) PropAt(nameOff uint32, v []byte) *Builder {
	b.putU32(Prop)
	b.putU32(uint32(len(v)))
	b.putU32(nameOff)
	b.structure.Write(v)
	b.pad()
	return b
}

func (b *Builder) Empty(name string) *Builder {
	return b.Bytes(name, nil)
}

func (b *Builder) Strings(name string, ss ...string) *Builder {
	var v bytes.Buffer
	for _, s := range ss {
		v.WriteString(s)
		v.WriteByte(0)
	}
	return b.Bytes(name, v.Bytes())
}

func (b *Builder) Cells(name string, cells ...uint32) *Builder {
	return b.Bytes(name, CellBytes(cells...))
}

func (b *Builder) Reserve(addr, size uint64) *Builder {
	b.reservation = append(b.reservation, reservation{addr, size})
	return b
}

// CellBytes encodes cells big-endian.
func CellBytes(cells ...uint32) []byte {
	v := make([]byte, 4*len(cells))
	for i, c := range cells {
		binary.BigEndian.PutUint32(v[4*i:], c)
	}
	return v
}

// Raw returns the blob without appending the END token.
func (b *Builder) Raw() []byte {
	// An empty strings block would sit at the end of the blob, outside
	// [0, totalsize).
	if b.strings.Len() == 0 {
		b.strings.WriteByte(0)
	}
	for b.strings.Len()%4 != 0 {
		b.strings.WriteByte(0)
	}
	rsvOff := uint32(HeaderSize)
	rsvSize := uint32(16 * (len(b.reservation) + 1))
	structOff := rsvOff + rsvSize
	structSize := uint32(b.structure.Len())
	stringsOff := structOff + structSize
	stringsSize := uint32(b.strings.Len())
	total := stringsOff + stringsSize

	blob := make([]byte, total)
	for i, v := range []uint32{
		Magic,
		total,
		structOff,
		stringsOff,
		rsvOff,
		b.Version,
		b.LastComp,
		b.BootCpuid,
		stringsSize,
		structSize,
	} {
		binary.BigEndian.PutUint32(blob[4*i:], v)
	}
	for i, r := range b.reservation {
		o := rsvOff + uint32(16*i)
		binary.BigEndian.PutUint64(blob[o:], r.addr)
		binary.BigEndian.PutUint64(blob[o+8:], r.size)
	}
	copy(blob[structOff:], b.structure.Bytes())
	copy(blob[stringsOff:], b.strings.Bytes())
	return blob
}

// Build terminates the structure block and lays out the blob.
func (b *Builder) Build() []byte {
	b.putU32(End)
	return b.Raw()
}

// Put32 overwrites a header word.
func Put32(blob []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(blob[off:], v)
}

func Get32(blob []byte, off int) uint32 {
	return binary.BigEndian.Uint32(blob[off:])
}
