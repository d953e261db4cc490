// Copyright © 2015-2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"errors"
	"os"
	"slices"
	"sort"

	"github.com/platinasystems/log"
	uuid "github.com/satori/go.uuid"
)

const (
	defaultAddressCells   = 2
	defaultSizeCells      = 1
	defaultInterruptCells = 1
)

// Tree is a parsed blob. It only exists for blobs that parsed without a
// header or structure error.
type Tree struct {
	Header
	// Identifies this parse; a Cache shared across parses drops its
	// entries when it sees a new ID.
	ID           uuid.UUID
	Reservations []Reservation
	Root         *Node

	buf   []byte
	nodes []*Node // pre-order
	index Index
	cache *Cache
}

type Config struct {
	Debug bool
	// Deepest nesting accepted; zero is the default of 64.
	MaxDepth int
}

func Parse(buf []byte) (*Tree, error) { return Config{}.Parse(buf) }

// ParseFile reads and parses a blob, e.g. /sys/firmware/fdt.
func ParseFile(fn string) (*Tree, error) {
	buf, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

func (c Config) Parse(buf []byte) (*Tree, error) {
	h, err := ReadHeader(buf)
	if err != nil {
		return nil, err
	}
	if c.Debug {
		log.Print("debug", h.String())
	}
	rsv, err := readReservations(buf, &h)
	if err != nil {
		return nil, err
	}
	t := &Tree{
		Header:       h,
		ID:           uuid.NewV4(),
		Reservations: rsv,
		buf:          buf[:h.TotalSize:h.TotalSize],
		index:        newIndex(),
	}
	b := &builder{
		Config: c,
		tree:   t,
		pool:   stringPool(h.stringsBlock(buf)),
		names:  make(map[uint32]string),
	}
	if b.MaxDepth <= 0 {
		b.MaxDepth = defaultMaxDepth
	}
	if err = b.build(newScanner(buf, &h)); err != nil {
		return nil, err
	}
	t.resolve()
	t.cache = NewCache()
	return t, nil
}

// Blob is the validated buffer, cut to the header's total size.
func (t *Tree) Blob() []byte { return t.buf }

func (t *Tree) NodeCount() int { return len(t.nodes) }

// Nodes returns every node in pre-order.
func (t *Tree) Nodes() []*Node {
	return append([]*Node(nil), t.nodes...)
}

// StringsRange is the strings block offset and size within the blob.
func (t *Tree) StringsRange() (off, size uint32) {
	return t.OffDtStrings, t.SizeDtStrings
}

// builder drives the scanner and assembles nodes on an explicit stack.
type builder struct {
	Config
	tree  *Tree
	pool  stringPool
	names map[uint32]string
	stack []*Node
}

func (b *builder) top() *Node {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

func (b *builder) name(off uint32) (string, error) {
	if s, found := b.names[off]; found {
		return s, nil
	}
	v, err := b.pool.lookup(off)
	if err != nil {
		return "", err
	}
	s := string(v)
	b.names[off] = s
	return s, nil
}

func (b *builder) build(s *Scanner) error {
	t := b.tree
	for {
		tok, err := s.Next()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case TokenBeginNode:
			parent := b.top()
			if parent != nil && !parent.sealed {
				b.seal(parent)
			}
			if len(b.stack) >= b.MaxDepth {
				return structErr(tok.Offset,
					"nesting deeper than %d", b.MaxDepth)
			}
			n := &Node{
				Name:   string(tok.Name),
				Depth:  len(b.stack),
				Parent: parent,
				id:     len(t.nodes),
				offset: tok.Offset,
			}
			if parent == nil {
				n.Name = "/"
				n.path = "/"
				n.AddressCells = defaultAddressCells
				n.SizeCells = defaultSizeCells
				n.InterruptCells = defaultInterruptCells
			} else {
				if len(n.Name) == 0 {
					return structErr(tok.Offset,
						"unnamed node under %s", parent.path)
				}
				n.path = parent.path + "/" + n.Name
				if parent.Parent == nil {
					n.path = "/" + n.Name
				}
				n.AddressCells = parent.AddressCells
				n.SizeCells = parent.SizeCells
				n.InterruptCells = parent.InterruptCells
			}
			t.nodes = append(t.nodes, n)
			b.stack = append(b.stack, n)
			if b.Debug {
				log.Print("debug", "BEGIN_NODE: `", n.path, "'")
			}
		case TokenProperty:
			n := b.top()
			if n.sealed {
				return structErr(tok.Offset,
					"property after subnode in %s", n.path)
			}
			name, err := b.name(tok.NameOff)
			if err != nil {
				var e *Error
				if errors.As(err, &e) {
					e.Offset = tok.Offset
				}
				return err
			}
			n.Properties = append(n.Properties, Property{
				Name:  name,
				Value: tok.Value,
			})
			if b.Debug {
				log.Printf("debug", "PROP: %s = %q", name, tok.Value)
			}
		case TokenEndNode:
			n := b.top()
			b.stack = b.stack[:len(b.stack)-1]
			if !n.sealed {
				b.seal(n)
			}
			if n.Parent == nil {
				t.Root = n
			} else {
				n.Parent.Children = append(n.Parent.Children, n)
			}
			if err := t.index.add(n); err != nil {
				return err
			}
			if b.Debug {
				log.Print("debug", "END_NODE: ", n.path)
			}
		case TokenNop:
		case TokenEnd:
			if len(b.stack) != 0 || t.Root == nil {
				return structErr(tok.Offset, "no complete root node")
			}
			t.index.sort()
			return nil
		}
	}
}

// seal decodes a node once its property list is complete: first the
// properties that size cells, then those that depend on them.
func (b *builder) seal(n *Node) {
	n.sealed = true
	for _, x := range []struct {
		name string
		v    *uint32
	}{
		{"#address-cells", &n.AddressCells},
		{"#size-cells", &n.SizeCells},
		{"#interrupt-cells", &n.InterruptCells},
	} {
		raw, found := n.Prop(x.name)
		if !found {
			continue
		}
		v, err := DecodeU32(raw)
		if err != nil {
			n.warn(err, x.name)
			continue
		}
		*x.v = v
	}
	b.sealPhandle(n)

	ctx := n.Context()
	for _, p := range n.Properties {
		switch p.Name {
		case "compatible":
			ss, err := DecodeStrings(p.Value)
			if err != nil {
				n.warn(err, p.Name)
				continue
			}
			n.Compatible = ss
		case "reg":
			regs, err := DecodeReg(p.Value, ctx.AddressCells,
				ctx.SizeCells)
			if err != nil {
				n.warn(err, p.Name)
				continue
			}
			n.Reg = regs
		case "ranges":
			ranges, err := DecodeRanges(p.Value, n.AddressCells,
				ctx.AddressCells, n.SizeCells)
			if err != nil {
				n.warn(err, p.Name)
				continue
			}
			n.HasRanges = true
			n.Ranges = ranges
		}
	}
}

func (b *builder) sealPhandle(n *Node) {
	var handles []uint32
	for _, name := range []string{"phandle", "linux,phandle"} {
		raw, found := n.Prop(name)
		if !found {
			continue
		}
		v, err := DecodeU32(raw)
		if err != nil {
			n.warn(err, name)
			continue
		}
		if v == 0xffffffff {
			n.warn(valueErr("reserved phandle 0x%x", v), name)
			continue
		}
		handles = append(handles, v)
	}
	if len(handles) == 0 {
		return
	}
	n.Phandle = handles[0]
	if len(handles) > 1 && handles[1] != handles[0] {
		n.warn(valueErr("linux,phandle 0x%x differs from phandle 0x%x",
			handles[1], handles[0]), "linux,phandle")
	}
}

func (n *Node) warn(err error, prop string) {
	n.Warnings = append(n.Warnings, located(err, n, prop))
}

// resolve decodes what depends on other nodes, now that every phandle is
// known.
func (t *Tree) resolve() {
	for _, n := range t.nodes {
		ip, err := t.interruptParent(n)
		if err != nil {
			n.warn(err, "interrupt-parent")
		}
		n.InterruptParent = ip
		raw, found := n.Prop("interrupts")
		if !found {
			continue
		}
		if ip == nil {
			n.warn(valueErr("no interrupt parent"), "interrupts")
			continue
		}
		irqs, err := DecodeInterrupts(raw, ip.InterruptCells)
		if err != nil {
			n.warn(err, "interrupts")
			continue
		}
		n.Interrupts = irqs
	}
}

// interruptParent is the node's explicit interrupt-parent or, walking up,
// the first ancestor that is an interrupt controller or names one.
func (t *Tree) interruptParent(n *Node) (*Node, error) {
	for p := n; p != nil; p = p.Parent {
		if p != n && p.HasProp("interrupt-controller") {
			return p, nil
		}
		raw, found := p.Prop("interrupt-parent")
		if !found {
			continue
		}
		h, err := DecodeU32(raw)
		if err != nil {
			return nil, err
		}
		ip := t.index.Phandles[h]
		if ip == nil {
			return nil, valueErr("interrupt-parent phandle 0x%x not found", h)
		}
		return ip, nil
	}
	return nil, nil
}

// Index maps phandles and compatible strings to nodes. Compatible lists
// are in pre-order.
type Index struct {
	Phandles   map[uint32]*Node
	Compatible map[string][]*Node
}

func newIndex() Index {
	return Index{
		Phandles:   make(map[uint32]*Node),
		Compatible: make(map[string][]*Node),
	}
}

func (ix Index) add(n *Node) error {
	if n.Phandle != 0 {
		if o := ix.Phandles[n.Phandle]; o != nil && o != n {
			return structErr(n.offset,
				"phandle 0x%x of %s already used by %s",
				n.Phandle, n.path, o.path)
		}
		ix.Phandles[n.Phandle] = n
	}
	for i, c := range n.Compatible {
		if !slices.Contains(n.Compatible[:i], c) {
			ix.Compatible[c] = append(ix.Compatible[c], n)
		}
	}
	return nil
}

func (ix Index) sort() {
	for _, l := range ix.Compatible {
		sort.Slice(l, func(i, j int) bool { return l[i].id < l[j].id })
	}
}

// Index returns a copy of the index built during Parse.
func (t *Tree) Index() Index {
	ix := newIndex()
	for h, n := range t.index.Phandles {
		ix.Phandles[h] = n
	}
	for c, l := range t.index.Compatible {
		ix.Compatible[c] = append([]*Node(nil), l...)
	}
	return ix
}

// Reindex rebuilds the index from a walk of the child links. For a tree
// returned by Parse it always equals Index.
func (t *Tree) Reindex() (Index, error) {
	ix := newIndex()
	var err error
	t.Walk(func(n *Node) {
		if err == nil {
			err = ix.add(n)
		}
	})
	if err != nil {
		return Index{}, err
	}
	ix.sort()
	return ix, nil
}
