// Copyright © 2015-2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dtb

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"gopkg.in/yaml.v3"

	"github.com/platinasystems/devtree/bind"
	"github.com/platinasystems/devtree/fdt"
	"github.com/platinasystems/devtree/internal/fdtgpio"
	"github.com/platinasystems/devtree/internal/lang"
	"github.com/platinasystems/devtree/internal/memmap"
	"github.com/platinasystems/devtree/internal/publish"
)

const DefaultFile = "/sys/firmware/fdt"

const (
	green = "\x1b[32m"
	red   = "\x1b[31m"
	reset = "\x1b[0m"
)

type Command struct {
	// Output; os.Stdout if nil.
	Stdout io.Writer
}

func (*Command) String() string { return "dtb" }

func (*Command) Usage() string {
	return `dtb [-debug] [-header] [-memory] [-bind] [-format text|yaml]
	[-path PATH] [-compatible PATTERN] [-translate ADDRESS]
	[-iomem FILE] [-publish REDIS] [FILE]`
}

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "print a flattened device tree",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Parse a device tree blob, by default ` + DefaultFile + `, and print
	all or part of it.

	-debug	trace the parse
	-header	print the header and memory reservations
	-memory	print memory and reserved regions
	-bind	bind the gpio controllers and print each compatible node's
		bind status
	-format	dump format, text (default) or yaml
	-path	dump from this node; may start with an alias, e.g. serial0
	-compatible
		print the nodes with a compatible string matching PATTERN,
		e.g. 'brcm,*-gpio'
	-translate
		print ADDRESS on the parent bus of -path as a CPU address
	-iomem	print the tree's regions missing from FILE, e.g. /proc/iomem
	-publish
		with -bind, publish the bind status to the redis at REDIS,
		a unix socket path or host:port`,
	}
}

func (c *Command) Main(args ...string) error {
	flag, args := flags.New(args, "-debug", "-header", "-memory", "-bind")
	parm, args := parms.New(args, "-format", "-path", "-compatible",
		"-translate", "-iomem", "-publish")

	fn := DefaultFile
	switch len(args) {
	case 0:
	case 1:
		fn = args[0]
	default:
		return fmt.Errorf("%v: unexpected", args[1:])
	}
	w := c.Stdout
	if w == nil {
		w = os.Stdout
	}

	buf, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	t, err := fdt.Config{Debug: flag.ByName["-debug"]}.Parse(buf)
	if err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	if flag.ByName["-debug"] {
		t.Walk(func(n *fdt.Node) {
			for _, err := range n.Warnings {
				log.Print("warn", err)
			}
		})
	}

	n := t.Root
	if s := parm.ByName["-path"]; len(s) > 0 {
		if n = t.NodeByPath(s); n == nil {
			return fmt.Errorf("%s: not found", s)
		}
	}

	dump := true
	if flag.ByName["-header"] {
		dump = false
		fmt.Fprintln(w, t.Header.String())
		for _, r := range t.Reservations {
			fmt.Fprintf(w, "reserve 0x%x 0x%x\n", r.Address, r.Size)
		}
	}
	if flag.ByName["-memory"] {
		dump = false
		regions, err := t.Regions()
		if err != nil {
			return err
		}
		for _, r := range regions {
			fmt.Fprintln(w, r)
		}
	}
	if s := parm.ByName["-iomem"]; len(s) > 0 {
		dump = false
		if err = uncovered(w, t, s); err != nil {
			return err
		}
	}
	if s := parm.ByName["-compatible"]; len(s) > 0 {
		dump = false
		l, err := t.MatchCompatible(s)
		if err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
		for _, m := range l {
			fmt.Fprintln(w, m.Path())
		}
	}
	if s := parm.ByName["-translate"]; len(s) > 0 {
		dump = false
		addr, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return err
		}
		a, err := t.Translate(n, addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "0x%x\n", a)
	}
	if flag.ByName["-bind"] {
		dump = false
		if err = bindAll(w, t, parm.ByName["-publish"]); err != nil {
			return err
		}
	} else if len(parm.ByName["-publish"]) > 0 {
		return fmt.Errorf("-publish: needs -bind")
	}
	if !dump {
		return nil
	}

	switch format := parm.ByName["-format"]; format {
	case "", "text":
		_, err = io.WriteString(w, n.String())
	case "yaml":
		err = dumpYaml(w, n)
	default:
		err = fmt.Errorf("%s: unknown format", format)
	}
	return err
}

func uncovered(w io.Writer, t *fdt.Tree, fn string) error {
	have, err := memmap.FileToMap(fn)
	if err != nil {
		return err
	}
	want, err := memmap.FromTree(t)
	if err != nil {
		return err
	}
	for _, r := range have.Uncovered(want) {
		fmt.Fprintln(w, "missing", r)
	}
	return nil
}

func bindAll(w io.Writer, t *fdt.Tree, redis string) error {
	r := bind.NewRegistry()
	fdtgpio.New().Register(r, 0)
	d := bind.NewDispatcher(t, r)
	d.Dispatch()
	defer d.Shutdown()

	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	t.Walk(func(n *fdt.Node) {
		if len(n.Compatible) == 0 {
			return
		}
		s := publish.Status(n, r)
		if color {
			switch n.BindStatus().State {
			case fdt.Bound:
				s = green + s + reset
			case fdt.BindFailed:
				s = red + s + reset
			}
		}
		fmt.Fprintf(w, "%-40s %s\n", n.Path(), s)
	})

	if len(redis) == 0 {
		return nil
	}
	conn, err := publish.Dial(redis)
	if err != nil {
		return err
	}
	defer conn.Close()
	p := &publish.Publisher{Conn: conn}
	return p.Tree(t, r)
}

// dumpYaml writes n as a mapping of its name to its properties, in blob
// order, followed by its children.
func dumpYaml(w io.Writer, n *fdt.Node) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	doc.Content = append(doc.Content, scalar(name(n)), yamlNode(n))
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func name(n *fdt.Node) string {
	if n.Parent == nil {
		return "/"
	}
	return n.Name
}

func yamlNode(n *fdt.Node) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range n.Properties {
		m.Content = append(m.Content, scalar(p.Name),
			scalar(fdt.FormatRaw(p.Value)))
	}
	for _, c := range n.Children {
		m.Content = append(m.Content, scalar(c.Name), yamlNode(c))
	}
	return m
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
