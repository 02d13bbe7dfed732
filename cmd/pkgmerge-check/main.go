// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	var failed bool
	defer func() {
		if failed {
			os.Exit(1)
		}
	}()

	program := os.Args[0]
	var expectPath string
	var update bool
	var lists listsFlag
	var indent int
	var showVersion bool

	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "usage: %s -expect FILE [flags] FILE...\n\n", program)
		fmt.Fprintf(out, "Verifies that a merged package.json manifest is up to date: the input\n")
		fmt.Fprintf(out, "manifests are merged and compared byte for byte against the expected file.\n")
		fmt.Fprintf(out, "Exits nonzero when the expected file is stale.\n\n")
		fmt.Fprintf(out, "Example:\n")
		fmt.Fprintf(out, "  # fail CI when package.json drifts from its fragments\n")
		fmt.Fprintf(out, "  %s -expect package.json base.json ci.json\n\n", program)
		fmt.Fprintf(out, "  # refresh the committed manifest\n")
		fmt.Fprintf(out, "  %s -update -expect package.json base.json ci.json\n\n", program)
		fmt.Fprintf(out, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.StringVar(&expectPath, "expect", "", "path of the expected merged manifest")
	flag.BoolVar(&update, "update", false, "rewrite the expected file instead of comparing")
	flag.Var(&lists, "lists", `list merge strategy [merge, replace] (default "merge")`)
	flag.IntVar(&indent, "indent", 2, "spaces per indentation level (0 for compact output)")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	err := Run(expectPath, update, lists, indent, flag.Args())
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		failed = true
		return
	}
}
