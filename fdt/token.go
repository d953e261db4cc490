// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import "bytes"

type TokenKind uint32

const (
	TokenBeginNode TokenKind = begin_node
	TokenEndNode   TokenKind = end_node
	TokenProperty  TokenKind = prop
	TokenNop       TokenKind = nop
	TokenEnd       TokenKind = end
)

func (k TokenKind) String() string {
	switch k {
	case TokenBeginNode:
		return "BEGIN_NODE"
	case TokenEndNode:
		return "END_NODE"
	case TokenProperty:
		return "PROP"
	case TokenNop:
		return "NOP"
	case TokenEnd:
		return "END"
	}
	return "UNKNOWN"
}

// Token is one step of the structure block. Name and Value are views into
// the blob.
type Token struct {
	Kind   TokenKind
	Offset int // of the tag within the blob

	Name []byte // BEGIN_NODE

	NameOff uint32 // PROP
	Value   []byte // PROP
}

// Scanner is a cursor over the structure block. Every read is checked
// against the end of the block; a malformed stream yields ErrBadStructure
// and the scanner refuses to go further.
type Scanner struct {
	blk   []byte
	base  int
	pos   int
	depth int

	rootDone bool
	done     bool
	err      error
}

// NewScanner validates the blob's header and returns a scanner over its
// structure block.
func NewScanner(buf []byte) (*Scanner, error) {
	h, err := ReadHeader(buf)
	if err != nil {
		return nil, err
	}
	return newScanner(buf, &h), nil
}

// newScanner slices buf unchecked; h must have come from ReadHeader.
func newScanner(buf []byte, h *Header) *Scanner {
	return &Scanner{
		blk:  h.structBlock(buf),
		base: int(h.OffDtStruct),
	}
}

// Depth is the number of open nodes.
func (s *Scanner) Depth() int { return s.depth }

// Offset of the next token within the blob.
func (s *Scanner) Offset() int { return s.base + s.pos }

func (s *Scanner) fail(off int, format string, args ...interface{}) error {
	s.err = structErr(s.base+off, format, args...)
	return s.err
}

func (s *Scanner) cell() (uint32, bool) {
	if s.pos+4 > len(s.blk) {
		return 0, false
	}
	v := be32(s.blk[s.pos:])
	s.pos += 4
	return v, true
}

// Next returns the next token. After END, or after an error, every call
// fails.
func (s *Scanner) Next() (tok Token, err error) {
	if s.err != nil {
		return tok, s.err
	}
	if s.done {
		return tok, s.fail(s.pos, "read past END")
	}
	start := s.pos
	tok.Offset = s.base + start
	tag, ok := s.cell()
	if !ok {
		return tok, s.fail(start, "structure block ends without END")
	}
	tok.Kind = TokenKind(tag)
	switch tok.Kind {
	case TokenBeginNode:
		if s.depth == 0 && s.rootDone {
			return tok, s.fail(start, "second root node")
		}
		l := bytes.IndexByte(s.blk[s.pos:], 0)
		if l < 0 {
			return tok, s.fail(start, "truncated node name")
		}
		tok.Name = s.blk[s.pos : s.pos+l : s.pos+l]
		next := align(s.pos+l+1, 4)
		if next > len(s.blk) {
			return tok, s.fail(start, "node name padding past block end")
		}
		s.pos = next
		s.depth++
	case TokenEndNode:
		if s.depth == 0 {
			return tok, s.fail(start, "END_NODE without BEGIN_NODE")
		}
		s.depth--
		if s.depth == 0 {
			s.rootDone = true
		}
	case TokenProperty:
		if s.depth == 0 {
			return tok, s.fail(start, "property outside of a node")
		}
		l, ok := s.cell()
		if !ok {
			return tok, s.fail(start, "truncated property header")
		}
		tok.NameOff, ok = s.cell()
		if !ok {
			return tok, s.fail(start, "truncated property header")
		}
		if uint64(s.pos)+uint64(l) > uint64(len(s.blk)) {
			return tok, s.fail(start,
				"property length 0x%x runs past block end", l)
		}
		e := s.pos + int(l)
		tok.Value = s.blk[s.pos:e:e]
		next := align(e, 4)
		if next > len(s.blk) {
			return tok, s.fail(start, "property padding past block end")
		}
		s.pos = next
	case TokenNop:
	case TokenEnd:
		if s.depth != 0 {
			return tok, s.fail(start,
				"END with %d unclosed nodes", s.depth)
		}
		s.done = true
	default:
		return tok, s.fail(start, "bad token 0x%x", tag)
	}
	return tok, nil
}

// stringPool resolves property name offsets in the strings block. Lookups
// return views into the blob.
type stringPool []byte

func (p stringPool) lookup(off uint32) ([]byte, error) {
	if uint64(off) >= uint64(len(p)) {
		return nil, structErr(-1,
			"string offset 0x%x outside 0x%x byte strings block",
			off, len(p))
	}
	l := bytes.IndexByte(p[off:], 0)
	if l < 0 {
		return nil, structErr(-1,
			"unterminated string at offset 0x%x", off)
	}
	return p[off : int(off)+l : int(off)+l], nil
}
