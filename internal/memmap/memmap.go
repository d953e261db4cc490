// Copyright 2016-2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package memmap collects named physical address ranges, either from
// /proc/iomem (and anything else of similar structure) or from the memory
// and reservation regions of a device tree.
package memmap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/platinasystems/devtree/fdt"
)

// Names FromTree files regions under, as /proc/iomem spells them.
const (
	SystemRAM = "System RAM"
	Reserved  = "reserved"
)

type Region struct {
	What   string
	Ranges []*Range
}

// Range is inclusive of End.
type Range struct {
	Start uint64
	End   uint64
}

type RegionMap map[string]Region

func (r Region) String() string {
	return fmt.Sprintf("%s: %v", r.What, r.Ranges)
}

func (r Range) String() string {
	return fmt.Sprintf("%x-%x", r.Start, r.End)
}

func (m RegionMap) add(what string, start, end uint64) {
	reg := m[what]
	reg.What = what
	reg.Ranges = append(reg.Ranges, &Range{start, end})
	m[what] = reg
}

func ReaderToMap(r io.Reader) (regionMap RegionMap, err error) {
	regionMap = make(RegionMap)
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.SplitN(scanner.Text(), ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: %q: no name", line,
				scanner.Text())
		}
		var start, end uint64
		n, err := fmt.Sscanf(strings.TrimSpace(fields[0]), "%x-%x",
			&start, &end)
		if n != 2 {
			return nil, fmt.Errorf("line %d: %q: %v", line,
				fields[0], err)
		}
		regionMap.add(strings.TrimSpace(fields[1]), start, end)
	}
	return regionMap, scanner.Err()
}

func FileToMap(s string) (regionMap RegionMap, err error) {
	f, err := os.OpenFile(s, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReaderToMap(f)
}

// FromTree maps the tree's memory regions under SystemRAM and its
// reservations under Reserved. Empty regions are left out.
func FromTree(t *fdt.Tree) (RegionMap, error) {
	regionMap := make(RegionMap)
	err := t.EachRegion(func(r fdt.Region) error {
		if r.Size == 0 {
			return nil
		}
		if r.Address+(r.Size-1) < r.Address {
			return fmt.Errorf("%s: wraps past the end of memory", r)
		}
		what := SystemRAM
		if r.Kind == fdt.Reserved {
			what = Reserved
		}
		regionMap.add(what, r.Address, r.Address+r.Size-1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for what, reg := range regionMap {
		sort.Slice(reg.Ranges, func(i, j int) bool {
			return reg.Ranges[i].Start < reg.Ranges[j].Start
		})
		regionMap[what] = reg
	}
	return regionMap, nil
}

// Uncovered returns the ranges of each region in want that no single
// range of the same name in m contains.
func (m RegionMap) Uncovered(want RegionMap) []Region {
	var missing []Region
	names := make([]string, 0, len(want))
	for what := range want {
		names = append(names, what)
	}
	sort.Strings(names)
	for _, what := range names {
		var l []*Range
	next:
		for _, w := range want[what].Ranges {
			for _, r := range m[what].Ranges {
				if r.Start <= w.Start && w.End <= r.End {
					continue next
				}
			}
			l = append(l, w)
		}
		if len(l) > 0 {
			missing = append(missing, Region{what, l})
		}
	}
	return missing
}
