// Copyright © 2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package publish writes the device tree's bind status to a redis hash,
// one field per node with compatible strings, for goes machines to watch.
package publish

import (
	"fmt"
	"net"
	"time"

	"github.com/garyburd/redigo/redis"

	"github.com/platinasystems/devtree/bind"
	"github.com/platinasystems/devtree/fdt"
)

const (
	DefaultKey = "devtree"
	Timeout    = 500 * time.Millisecond
)

// Dial connects to redis at a unix socket path or a host:port.
func Dial(address string) (redis.Conn, error) {
	network := "tcp"
	if len(address) > 0 && address[0] == '/' {
		network = "unix"
	}
	conn, err := net.DialTimeout(network, address, Timeout)
	if err != nil {
		return nil, err
	}
	return redis.NewConn(conn, Timeout, Timeout), nil
}

// Status is the value published for a node, e.g. "bound fdtgpio" or
// "bind-failed uart: bind: /soc/serial@7d001000: ...".
func Status(n *fdt.Node, r *bind.Registry) string {
	st := n.BindStatus()
	s := st.State.String()
	if st.Driver != 0 && r != nil {
		if b := r.Binding(bind.ID(st.Driver)); b != nil {
			s += " " + b.Name
		}
	}
	if st.Err != nil {
		s += ": " + st.Err.Error()
	}
	return s
}

type Publisher struct {
	Conn redis.Conn
	// Hash key; DefaultKey if empty.
	Key string
}

func (p *Publisher) key() string {
	if len(p.Key) == 0 {
		return DefaultKey
	}
	return p.Key
}

// Tree replaces the hash with the model and the status of each node with
// compatible strings, in one transaction.
func (p *Publisher) Tree(t *fdt.Tree, r *bind.Registry) error {
	key := p.key()
	args := redis.Args{}.Add(key)
	if model := t.Model(); len(model) > 0 {
		args = args.Add("model", model)
	}
	t.Walk(func(n *fdt.Node) {
		if len(n.Compatible) > 0 {
			args = args.Add(n.Path(), Status(n, r))
		}
	})
	if err := p.Conn.Send("MULTI"); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	if err := p.Conn.Send("DEL", key); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	if len(args) > 1 {
		if err := p.Conn.Send("HSET", args...); err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}
	}
	if _, err := p.Conn.Do("EXEC"); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// Node updates one node's field.
func (p *Publisher) Node(n *fdt.Node, r *bind.Registry) error {
	_, err := p.Conn.Do("HSET", p.key(), n.Path(), Status(n, r))
	if err != nil {
		return fmt.Errorf("publish %s: %w", n.Path(), err)
	}
	return nil
}

// Report publishes every node a dispatch touched.
func (p *Publisher) Report(rep *bind.Report, r *bind.Registry) error {
	for _, l := range [][]*fdt.Node{
		rep.Bound,
		rep.Failed,
		rep.Deferred,
		rep.Unmatched,
		rep.Disabled,
	} {
		for _, n := range l {
			if err := p.Node(n, r); err != nil {
				return err
			}
		}
	}
	return nil
}
