// Copyright © 2015-2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package fdtgpio binds gpio controllers named in /aliases and builds the
// machine's pin map from their gpio-pin-desc children.
package fdtgpio

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/platinasystems/devtree/bind"
	"github.com/platinasystems/devtree/fdt"
	"github.com/platinasystems/gpio"
)

// Compatible lists the controllers Register binds by default.
var Compatible = []string{
	"ti,omap4-gpio",
	"brcm,bcm7445-gpio",
	"brcm,bcm2835-gpio",
}

var modes = []string{"output-high", "output-low", "input"}

// Driver keeps the pins of every bound controller.
type Driver struct {
	mu    sync.Mutex
	banks map[*fdt.Node]string
	pins  map[string]gpio.Pin
	owner map[string]*fdt.Node
}

func New() *Driver {
	return &Driver{
		banks: make(map[*fdt.Node]string),
		pins:  make(map[string]gpio.Pin),
		owner: make(map[string]*fdt.Node),
	}
}

// Register adds the driver for the given compatible strings, or Compatible
// if there are none.
func (d *Driver) Register(r *bind.Registry, priority int, compatible ...string) bind.ID {
	if len(compatible) == 0 {
		compatible = Compatible
	}
	return r.Register("fdtgpio", compatible, priority, d)
}

// Bank returns the alias naming the controller, e.g. "gpio0".
func Bank(t *fdt.Tree, n *fdt.Node) string {
	var banks []string
	for alias, path := range t.Aliases() {
		if strings.Contains(alias, "gpio") && path == n.Path() {
			banks = append(banks, alias)
		}
	}
	if len(banks) == 0 {
		return ""
	}
	sort.Strings(banks)
	return banks[0]
}

func (d *Driver) Probe(t *fdt.Tree, n *fdt.Node) error {
	if !n.HasProp("gpio-controller") || len(Bank(t, n)) == 0 {
		return bind.ErrNotApplicable
	}
	return nil
}

func (d *Driver) Init(t *fdt.Tree, n *fdt.Node) error {
	bank := Bank(t, n)
	base := gpio.GpioBankToBase[bank]
	pins := make(map[string]gpio.Pin)
	for _, c := range n.Children {
		if !c.HasProp("gpio-pin-desc") {
			continue
		}
		mode := ""
		for _, m := range modes {
			if c.HasProp(m) {
				mode = m
				break
			}
		}
		if mode == "" {
			continue
		}
		i, err := strconv.Atoi(c.UnitAddress())
		if err != nil {
			return fmt.Errorf("%s: pin index: %w", c.Path(), err)
		}
		pins[c.BaseName()] = gpio.GpioPinMode[mode] | base | gpio.Pin(i)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for name := range pins {
		if o := d.owner[name]; o != nil {
			return fmt.Errorf("%s: pin %s already defined by %s",
				n.Path(), name, o.Path())
		}
	}
	for name, pin := range pins {
		d.pins[name] = pin
		d.owner[name] = n
	}
	d.banks[n] = bank
	return nil
}

func (d *Driver) Cleanup(t *fdt.Tree, n *fdt.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, o := range d.owner {
		if o == n {
			delete(d.pins, name)
			delete(d.owner, name)
		}
	}
	delete(d.banks, n)
	return nil
}

// Pins returns a copy of the pin map.
func (d *Driver) Pins() map[string]gpio.Pin {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := make(map[string]gpio.Pin, len(d.pins))
	for name, pin := range d.pins {
		m[name] = pin
	}
	return m
}

// Banks maps each bound controller's path to its bank.
func (d *Driver) Banks() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := make(map[string]string, len(d.banks))
	for n, bank := range d.banks {
		m[n.Path()] = bank
	}
	return m
}
