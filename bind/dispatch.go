// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package bind

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/log"
	"golang.org/x/sync/errgroup"

	"github.com/platinasystems/devtree/fdt"
)

// Report lists what one dispatch did to each node it visited, in
// pre-order. Nodes that were already bound or failed aren't listed.
type Report struct {
	Bound     []*fdt.Node
	Failed    []*fdt.Node
	Deferred  []*fdt.Node
	Unmatched []*fdt.Node
	Disabled  []*fdt.Node
}

func (r *Report) merge(o *Report) {
	r.Bound = append(r.Bound, o.Bound...)
	r.Failed = append(r.Failed, o.Failed...)
	r.Deferred = append(r.Deferred, o.Deferred...)
	r.Unmatched = append(r.Unmatched, o.Unmatched...)
	r.Disabled = append(r.Disabled, o.Disabled...)
}

func (r *Report) sort() {
	for _, l := range [][]*fdt.Node{
		r.Bound,
		r.Failed,
		r.Deferred,
		r.Unmatched,
		r.Disabled,
	} {
		sort.Slice(l, func(i, j int) bool { return l[i].ID() < l[j].ID() })
	}
}

func (r *Report) String() string {
	return fmt.Sprintf("bound %d, failed %d, deferred %d, unmatched %d, disabled %d",
		len(r.Bound), len(r.Failed), len(r.Deferred),
		len(r.Unmatched), len(r.Disabled))
}

// Dispatcher binds the nodes of one tree with the drivers of a registry.
// Any number of dispatchers may run on the same tree at once; each node's
// claim is atomic so a node is never probed by two of them together.
type Dispatcher struct {
	Tree     *fdt.Tree
	Registry *Registry

	mu       sync.Mutex
	order    []*fdt.Node // bound, in bind order
	deferred map[*fdt.Node]struct{}
}

func NewDispatcher(t *fdt.Tree, r *Registry) *Dispatcher {
	return &Dispatcher{
		Tree:     t,
		Registry: r,
		deferred: make(map[*fdt.Node]struct{}),
	}
}

// Dispatch tries every unbound node of the tree in pre-order.
func (d *Dispatcher) Dispatch() *Report {
	rep := new(Report)
	d.Tree.Walk(func(n *fdt.Node) { d.bindNode(n, rep) })
	return rep
}

// DispatchParallel binds the root, then each of its subtrees on up to
// workers goroutines. It stops starting nodes once ctx is done and then
// returns ctx's error with what was done so far.
func (d *Dispatcher) DispatchParallel(ctx context.Context, workers int) (*Report, error) {
	rep := new(Report)
	d.bindNode(d.Tree.Root, rep)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, c := range d.Tree.Root.Children {
		c := c
		g.Go(func() error {
			sub := new(Report)
			var err error
			d.Tree.EachNodeFrom(c.Path(), func(n *fdt.Node) {
				if err == nil {
					if err = ctx.Err(); err == nil {
						d.bindNode(n, sub)
					}
				}
			})
			mu.Lock()
			rep.merge(sub)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	rep.sort()
	return rep, err
}

// Node tries to bind a single node.
func (d *Dispatcher) Node(n *fdt.Node) *Report {
	rep := new(Report)
	d.bindNode(n, rep)
	return rep
}

func (d *Dispatcher) bindNode(n *fdt.Node, rep *Report) {
	if len(n.Compatible) == 0 {
		return
	}
	if !n.Enabled() {
		rep.Disabled = append(rep.Disabled, n)
		return
	}
	if !n.Claim() {
		return
	}
	probed := make(map[ID]bool)
	for _, c := range n.Compatible {
		for _, b := range d.Registry.Match(c) {
			if probed[b.ID] {
				continue
			}
			probed[b.ID] = true
			err := b.Driver.Probe(d.Tree, n)
			switch {
			case errors.Is(err, ErrNotApplicable):
				continue
			case errors.Is(err, ErrProbeDefer):
				n.Release()
				d.mu.Lock()
				d.deferred[n] = struct{}{}
				d.mu.Unlock()
				log.Print("info", n.Path(), ": ", b.Name,
					": probe deferred")
				rep.Deferred = append(rep.Deferred, n)
				return
			case err != nil:
				d.fail(n, b, "probe", err)
				rep.Failed = append(rep.Failed, n)
				return
			}
			if err = b.Driver.Init(d.Tree, n); err != nil {
				if cerr := b.Driver.Cleanup(d.Tree, n); cerr != nil {
					log.Print("err", n.Path(), ": ", b.Name,
						": cleanup: ", cerr)
				}
				d.fail(n, b, "init", err)
				rep.Failed = append(rep.Failed, n)
				return
			}
			n.SetBound(uint32(b.ID))
			d.mu.Lock()
			delete(d.deferred, n)
			d.order = append(d.order, n)
			d.mu.Unlock()
			log.Print("debug", n.Path(), ": bound to ", b.Name)
			rep.Bound = append(rep.Bound, n)
			return
		}
	}
	n.Release()
	d.forget(n)
	rep.Unmatched = append(rep.Unmatched, n)
}

func (d *Dispatcher) forget(n *fdt.Node) {
	d.mu.Lock()
	delete(d.deferred, n)
	d.mu.Unlock()
}

func (d *Dispatcher) fail(n *fdt.Node, b *Binding, op string, err error) {
	e := &Error{
		Path:   n.Path(),
		Driver: b.Name,
		Op:     op,
		Err:    err,
	}
	n.SetBindFailed(uint32(b.ID), e)
	d.forget(n)
	log.Print("err", e)
}

// Deferred returns the nodes whose last probe was deferred, in pre-order.
// Nodes another dispatcher has since bound or failed are dropped.
func (d *Dispatcher) Deferred() []*fdt.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := make([]*fdt.Node, 0, len(d.deferred))
	for n := range d.deferred {
		switch n.BindStatus().State {
		case fdt.Bound, fdt.BindFailed:
			delete(d.deferred, n)
		default:
			l = append(l, n)
		}
	}
	sort.Slice(l, func(i, j int) bool { return l[i].ID() < l[j].ID() })
	return l
}

// RetryDeferred re-dispatches deferred nodes, waiting b.Duration() before
// each of up to attempts rounds. It returns once nothing is deferred, the
// attempts run out, or ctx is done. The report has every bind and failure
// of all rounds and the nodes still deferred at the end.
func (d *Dispatcher) RetryDeferred(ctx context.Context, b *backoff.Backoff, attempts int) (*Report, error) {
	if b == nil {
		b = &backoff.Backoff{
			Min:    10 * time.Millisecond,
			Max:    time.Second,
			Factor: 2,
		}
	}
	rep := new(Report)
	for i := 0; i < attempts; i++ {
		nodes := d.Deferred()
		if len(nodes) == 0 {
			break
		}
		timer := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			rep.Deferred = d.Deferred()
			return rep, ctx.Err()
		case <-timer.C:
		}
		round := new(Report)
		for _, n := range nodes {
			d.bindNode(n, round)
		}
		log.Print("debug", "retry ", i+1, ": ", round)
		round.Deferred = nil
		rep.merge(round)
	}
	rep.Deferred = d.Deferred()
	rep.sort()
	return rep, nil
}

// Unbind runs the bound driver's Cleanup and returns the node to unbound.
// A node that failed to bind is returned to unbound without cleanup.
func (d *Dispatcher) Unbind(n *fdt.Node) error {
	st := n.BindStatus()
	switch st.State {
	case fdt.BindFailed:
		if !n.Reclaim(fdt.BindFailed) {
			return fmt.Errorf("%s: bind status changed", n.Path())
		}
		n.Release()
		return nil
	case fdt.Bound:
	default:
		return fmt.Errorf("%s: %s", n.Path(), st.State)
	}
	b := d.Registry.Binding(ID(st.Driver))
	if b == nil || !n.Reclaim(fdt.Bound) {
		return fmt.Errorf("%s: bind status changed", n.Path())
	}
	err := b.Driver.Cleanup(d.Tree, n)
	n.Release()
	d.mu.Lock()
	for i, o := range d.order {
		if o == n {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %s cleanup: %w", n.Path(), b.Name, err)
	}
	return nil
}

// Shutdown unbinds every node this dispatcher bound, last bound first.
func (d *Dispatcher) Shutdown() error {
	d.mu.Lock()
	order := append([]*fdt.Node(nil), d.order...)
	d.mu.Unlock()
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if err := d.Unbind(order[i]); err != nil {
			log.Print("err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
