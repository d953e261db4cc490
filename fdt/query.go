// Copyright © 2015-2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// walkFrom visits n and its descendants in pre-order with an explicit
// stack, so nesting depth never becomes call depth.
func walkFrom(n *Node, f func(n *Node)) {
	if n == nil {
		return
	}
	stack := []*Node{n}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		f(c)
		for i := len(c.Children) - 1; i >= 0; i-- {
			stack = append(stack, c.Children[i])
		}
	}
}

// Run f() on every node in pre-order.
func (t *Tree) Walk(f func(n *Node)) { walkFrom(t.Root, f) }

// Given a starting node path, descend that node applying f() along the way
func (t *Tree) EachNodeFrom(path string, f func(n *Node)) {
	walkFrom(t.NodeByPath(path), f)
}

// Call user's function for each node with given property.
func (t *Tree) EachProperty(name string, f func(n *Node, value []byte)) {
	t.Walk(func(n *Node) {
		if v, found := n.Prop(name); found {
			f(n, v)
		}
	})
}

// As above but matching property name as a regexp.
func (t *Tree) EachPropertyMatching(pattern string, f func(n *Node)) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	t.Walk(func(n *Node) {
		for _, p := range n.Properties {
			if re.MatchString(p.Name) {
				f(n)
				break
			}
		}
	})
	return nil
}

func (t *Tree) FindAll(match func(n *Node) bool) (nodes []*Node) {
	t.Walk(func(n *Node) {
		if match(n) {
			nodes = append(nodes, n)
		}
	})
	return
}

// NodeByPath finds a node by absolute path, e.g. "/soc/serial@7e201000".
// A path that doesn't start with '/' begins with an alias from /aliases.
// Components without a unit address match a uniquely named child.
func (t *Tree) NodeByPath(path string) *Node {
	n := t.Root
	if !strings.HasPrefix(path, "/") {
		alias := path
		rest := ""
		if i := strings.IndexByte(path, '/'); i >= 0 {
			alias, rest = path[:i], path[i:]
		}
		target := t.Alias(alias)
		if !strings.HasPrefix(target, "/") {
			return nil
		}
		n = t.NodeByPath(target)
		path = rest
	}
	for _, name := range strings.Split(path, "/") {
		if n == nil {
			return nil
		}
		if len(name) == 0 {
			continue
		}
		n = n.Child(name)
	}
	return n
}

// Alias returns the path an /aliases entry names, or "".
func (t *Tree) Alias(name string) string {
	aliases := t.Root.Child("aliases")
	if aliases == nil {
		return ""
	}
	return aliases.PropString(name)
}

// Aliases maps each alias to its path.
func (t *Tree) Aliases() map[string]string {
	m := make(map[string]string)
	if aliases := t.Root.Child("aliases"); aliases != nil {
		for _, p := range aliases.Properties {
			if ss, err := DecodeStrings(p.Value); err == nil {
				m[p.Name] = ss[0]
			}
		}
	}
	return m
}

// NodesByCompatible returns the nodes listing c among their compatible
// strings, in pre-order.
func (t *Tree) NodesByCompatible(c string) []*Node {
	return append([]*Node(nil), t.index.Compatible[c]...)
}

// MatchCompatible returns the nodes with a compatible string matching a
// path.Match pattern, e.g. "brcm,*-gpio", each once and in pre-order.
func (t *Tree) MatchCompatible(pattern string) ([]*Node, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	seen := make(map[*Node]struct{})
	var nodes []*Node
	for c, l := range t.index.Compatible {
		if ok, _ := path.Match(pattern, c); !ok {
			continue
		}
		for _, n := range l {
			if _, found := seen[n]; !found {
				seen[n] = struct{}{}
				nodes = append(nodes, n)
			}
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
	return nodes, nil
}

func (t *Tree) ResolvePhandle(h uint32) *Node {
	if h == 0 {
		return nil
	}
	return t.index.Phandles[h]
}

func (t *Tree) Model() string { return t.Root.PropString("model") }

func (t *Tree) Chosen() *Node { return t.Root.Child("chosen") }

func (t *Tree) Bootargs() string {
	if c := t.Chosen(); c != nil {
		return c.PropString("bootargs")
	}
	return ""
}

// StdoutPath is the console path from /chosen without its ":options"
// suffix.
func (t *Tree) StdoutPath() string {
	c := t.Chosen()
	if c == nil {
		return ""
	}
	s := c.PropString("stdout-path")
	if s == "" {
		s = c.PropString("linux,stdout-path")
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}
