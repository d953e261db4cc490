// Copyright © 2015-2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	HeaderSize = 40

	// Oldest blob layout accepted; version 16 lacks SizeDtStruct.
	MinVersion = 16
	MaxVersion = 32
	// Newest layout this parser reads; a blob may claim a newer
	// Version as long as it stays backward compatible with this one.
	LastCompVersion = 17

	reserveEntrySize = 16
)

type Header struct {
	Magic        uint32
	TotalSize    uint32 // total size of DT block
	OffDtStruct  uint32 // offset to structure
	OffDtStrings uint32 // offset to strings
	OffMemRsvmap uint32 // offset to memory reserve map

	Version               uint32
	LastCompatibleVersion uint32

	// version 2 fields below
	BootCpuidPhys uint32 // Which physical CPU id we're
	// booting on
	// version 3 fields below
	SizeDtStrings uint32 // size of the strings block

	// version 17 fields below
	SizeDtStruct uint32 // size of the structure block
}

func (h *Header) String() string {
	return fmt.Sprintf("magic: 0x%x, version %d %d, total size: 0x%x, offset struct 0x%x strings 0x%x mem-reserve-map 0x%x",
		h.Magic, h.Version, h.LastCompatibleVersion,
		h.TotalSize, h.OffDtStruct, h.OffDtStrings, h.OffMemRsvmap)
}

// ReadHeader decodes and validates the blob header. The checks run in
// order: magic, size, version, then block layout; the first failure is
// returned and nothing past the header is read.
func ReadHeader(buf []byte) (h Header, err error) {
	if len(buf) < 4 {
		return h, headerErr(ErrTruncated,
			"%d byte buffer has no magic", len(buf))
	}
	if m := be32(buf); m != magic {
		return h, headerErr(ErrBadMagic, "0x%08x", m)
	}
	if len(buf) < HeaderSize {
		return h, headerErr(ErrTruncated,
			"%d byte buffer is shorter than the header", len(buf))
	}
	err = binary.Read(bytes.NewReader(buf[:HeaderSize]),
		binary.BigEndian, &h)
	if err != nil {
		return h, headerErr(ErrTruncated, "%v", err)
	}
	if uint64(h.TotalSize) > uint64(len(buf)) {
		return h, headerErr(ErrTruncated,
			"total size 0x%x exceeds 0x%x byte buffer",
			h.TotalSize, len(buf))
	}
	if h.Version < MinVersion || h.Version > MaxVersion ||
		h.LastCompatibleVersion > LastCompVersion {
		return h, headerErr(ErrUnsupportedVersion,
			"version %d, last compatible %d",
			h.Version, h.LastCompatibleVersion)
	}
	return h, h.checkLayout()
}

func (h *Header) checkLayout() error {
	total := uint64(h.TotalSize)
	if total < HeaderSize {
		return headerErr(ErrBadLayout, "total size 0x%x", total)
	}
	for _, x := range []struct {
		name string
		off  uint32
	}{
		{"structure", h.OffDtStruct},
		{"strings", h.OffDtStrings},
		{"memory reserve map", h.OffMemRsvmap},
	} {
		if x.off < HeaderSize || uint64(x.off) >= total {
			return headerErr(ErrBadLayout,
				"%s offset 0x%x outside [0x%x, 0x%x)",
				x.name, x.off, HeaderSize, total)
		}
	}
	if h.OffMemRsvmap%8 != 0 {
		return headerErr(ErrBadLayout,
			"memory reserve map offset 0x%x is not 8 byte aligned",
			h.OffMemRsvmap)
	}
	if h.OffDtStruct%4 != 0 {
		return headerErr(ErrBadLayout,
			"structure offset 0x%x is not 4 byte aligned",
			h.OffDtStruct)
	}
	if uint64(h.OffDtStrings)+uint64(h.SizeDtStrings) > total {
		return headerErr(ErrBadLayout,
			"strings block 0x%x+0x%x runs past total size 0x%x",
			h.OffDtStrings, h.SizeDtStrings, total)
	}
	sOff, sEnd := uint64(h.OffDtStruct), uint64(h.structEnd())
	if h.Version >= 17 && sOff+uint64(h.SizeDtStruct) > total {
		return headerErr(ErrBadLayout,
			"structure block 0x%x+0x%x runs past total size 0x%x",
			h.OffDtStruct, h.SizeDtStruct, total)
	}
	tOff := uint64(h.OffDtStrings)
	tEnd := tOff + uint64(h.SizeDtStrings)
	if sOff < tEnd && tOff < sEnd {
		return headerErr(ErrBadLayout,
			"structure block [0x%x, 0x%x) overlaps strings block [0x%x, 0x%x)",
			sOff, sEnd, tOff, tEnd)
	}
	return nil
}

// structEnd is the blob offset just past the structure block. Version 16
// blobs don't record the size so the block runs to the strings block, when
// that follows, or to the end of the blob.
func (h *Header) structEnd() uint32 {
	if h.Version >= 17 {
		return h.OffDtStruct + h.SizeDtStruct
	}
	if h.OffDtStrings > h.OffDtStruct {
		return h.OffDtStrings
	}
	return h.TotalSize
}

func (h *Header) structBlock(buf []byte) []byte {
	return buf[h.OffDtStruct:h.structEnd()]
}

func (h *Header) stringsBlock(buf []byte) []byte {
	end := h.OffDtStrings + h.SizeDtStrings
	return buf[h.OffDtStrings:end:end]
}

// Reservation is one entry of the memory reservation block.
type Reservation struct {
	Address uint64
	Size    uint64
}

// readReservations reads the (address, size) pairs up to the zero
// terminator. The block may not run into the next block or past the blob.
func readReservations(buf []byte, h *Header) ([]Reservation, error) {
	off := h.OffMemRsvmap
	limit := h.TotalSize
	for _, next := range []uint32{h.OffDtStruct, h.OffDtStrings} {
		if next > off && next < limit {
			limit = next
		}
	}
	var rsv []Reservation
	for {
		if uint64(off)+reserveEntrySize > uint64(limit) {
			return nil, headerErr(ErrBadLayout,
				"memory reserve map at 0x%x is not terminated",
				h.OffMemRsvmap)
		}
		r := Reservation{
			Address: be64(buf[off:]),
			Size:    be64(buf[off+8:]),
		}
		off += reserveEntrySize
		if r.Address == 0 && r.Size == 0 {
			return rsv, nil
		}
		rsv = append(rsv, r)
	}
}
