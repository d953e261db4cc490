// Copyright © 2015-2026 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// go-fdt prints a flattened device tree, e.g.
//
//	go-fdt -bind /sys/firmware/fdt
package main

import (
	"fmt"
	"os"

	"github.com/platinasystems/devtree/cmd/dtb"
)

func main() {
	c := &dtb.Command{}
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "-h", "-help", "--help", "help":
			fmt.Print("usage: ", c.Usage(), "\n", c.Man(), "\n")
			return
		case "-apropos", "--apropos":
			fmt.Println(c, "-", c.Apropos())
			return
		}
	}
	if err := c.Main(args...); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", c, err)
		os.Exit(1)
	}
}
