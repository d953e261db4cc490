// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package bind matches device tree nodes to drivers by compatible string
// and records the outcome on each node.
//
// A node's compatible strings are tried most specific first; for each one
// the registered bindings are tried in descending priority, ties going to
// the earlier registration. The first binding whose probe accepts the node
// wins.
package bind

import (
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/platinasystems/devtree/fdt"
)

var (
	// Probe returns ErrNotApplicable to pass the node to the next
	// binding.
	ErrNotApplicable = errors.New("not applicable")
	// Probe returns ErrProbeDefer when a dependency isn't bound yet; the
	// node is left unbound for RetryDeferred.
	ErrProbeDefer = errors.New("probe deferred")
	// Every bind failure recorded on a node matches ErrBindFailed.
	ErrBindFailed = errors.New("bind failed")
)

// Driver callbacks run with the node claimed by the dispatcher, so no
// other dispatcher probes it at the same time.
type Driver interface {
	Probe(t *fdt.Tree, n *fdt.Node) error
	Init(t *fdt.Tree, n *fdt.Node) error
	// Cleanup releases what Probe and Init acquired. It runs on unbind
	// and after a failed Init.
	Cleanup(t *fdt.Tree, n *fdt.Node) error
}

// Funcs is a Driver made of optional functions; a nil function succeeds.
type Funcs struct {
	ProbeFunc   func(t *fdt.Tree, n *fdt.Node) error
	InitFunc    func(t *fdt.Tree, n *fdt.Node) error
	CleanupFunc func(t *fdt.Tree, n *fdt.Node) error
}

func (f Funcs) Probe(t *fdt.Tree, n *fdt.Node) error {
	if f.ProbeFunc == nil {
		return nil
	}
	return f.ProbeFunc(t, n)
}

func (f Funcs) Init(t *fdt.Tree, n *fdt.Node) error {
	if f.InitFunc == nil {
		return nil
	}
	return f.InitFunc(t, n)
}

func (f Funcs) Cleanup(t *fdt.Tree, n *fdt.Node) error {
	if f.CleanupFunc == nil {
		return nil
	}
	return f.CleanupFunc(t, n)
}

// ID identifies a binding; it is what a bound node's status records as
// its driver. Zero is never assigned.
type ID uint32

type Binding struct {
	ID         ID
	Name       string
	Compatible []string
	Priority   int
	Driver     Driver
}

// Registry is the binding table. It may be added to while dispatching;
// nodes already bound keep their binding.
type Registry struct {
	mu       sync.RWMutex
	bindings []*Binding // by ID - 1
	byCompat map[string][]*Binding
}

func NewRegistry() *Registry {
	return &Registry{byCompat: make(map[string][]*Binding)}
}

// Register adds a binding matching each of the exact compatible strings.
func (r *Registry) Register(name string, compatible []string, priority int, d Driver) ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := &Binding{
		ID:         ID(len(r.bindings) + 1),
		Name:       name,
		Compatible: unique(compatible),
		Priority:   priority,
		Driver:     d,
	}
	r.bindings = append(r.bindings, b)
	for _, c := range b.Compatible {
		l := append(r.byCompat[c], b)
		// Stable keeps registration order among equal priorities.
		sort.SliceStable(l, func(i, j int) bool {
			return l[i].Priority > l[j].Priority
		})
		r.byCompat[c] = l
	}
	return b.ID
}

func unique(l []string) []string {
	u := make([]string, 0, len(l))
	for _, s := range l {
		if !slices.Contains(u, s) {
			u = append(u, s)
		}
	}
	return u
}

func (r *Registry) Binding(id ID) *Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.bindings) {
		return nil
	}
	return r.bindings[id-1]
}

// Match returns the bindings for an exact compatible string, highest
// priority first.
func (r *Registry) Match(compatible string) []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Binding(nil), r.byCompat[compatible]...)
}

// Bindings returns every binding in registration order.
func (r *Registry) Bindings() []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Binding(nil), r.bindings...)
}

// Error is the failure recorded in a node's bind status.
type Error struct {
	Path   string
	Driver string
	Op     string // "probe" or "init"
	Err    error
}

func (e *Error) Error() string {
	return "bind: " + e.Path + ": " + e.Driver + " " + e.Op + ": " +
		e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrBindFailed }
