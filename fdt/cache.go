// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fdt

import (
	"sync"
	"sync/atomic"

	uuid "github.com/satori/go.uuid"
)

// Cache memoizes decoded properties by (node, name) for one parse at a
// time. Concurrent lookups may both decode the same property; the results
// are identical and the first stored wins.
type Cache struct {
	gen    atomic.Pointer[cacheGen]
	hits   atomic.Uint64
	misses atomic.Uint64
}

type cacheGen struct {
	tree uuid.UUID
	m    sync.Map // cacheKey -> *cacheEntry
}

type cacheKey struct {
	node int
	name string
}

type cacheEntry struct {
	v   Value
	err error
}

func NewCache() *Cache { return &Cache{} }

// Lookup returns the cached value of n's property or stores what decode
// returns. Entries of any other tree are dropped first.
func (c *Cache) Lookup(t *Tree, n *Node, name string, decode func() (Value, error)) (Value, error) {
	if c == nil {
		return decode()
	}
	g := c.generation(t.ID)
	if g == nil {
		return decode()
	}
	k := cacheKey{n.id, name}
	if e, found := g.m.Load(k); found {
		c.hits.Add(1)
		ce := e.(*cacheEntry)
		return ce.v, ce.err
	}
	c.misses.Add(1)
	v, err := decode()
	e, _ := g.m.LoadOrStore(k, &cacheEntry{v, err})
	ce := e.(*cacheEntry)
	return ce.v, ce.err
}

// generation returns the entries for the given tree, replacing those of
// an older parse. It is nil while another tree owns the cache.
func (c *Cache) generation(id uuid.UUID) *cacheGen {
	g := c.gen.Load()
	if g != nil && uuid.Equal(g.tree, id) {
		return g
	}
	c.gen.CompareAndSwap(g, &cacheGen{tree: id})
	if g = c.gen.Load(); g != nil && uuid.Equal(g.tree, id) {
		return g
	}
	return nil
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	c.gen.Store(nil)
}

func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
