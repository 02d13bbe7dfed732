// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sam-fredrickson/pkgmerge"
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
	var lists listsFlag
	var indent int
	var outputPath string
	var showVersion bool

	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "usage: %s [flags] FILE...\n\n", program)
		fmt.Fprintf(out, "Merges package.json manifests (JSON, YAML, TOML) left to right, later files\n")
		fmt.Fprintf(out, "taking precedence. Dependency maps are reconciled per package, keeping the\n")
		fmt.Fprintf(out, "more permissive version range instead of overwriting.\n\n")
		fmt.Fprintf(out, "Example:\n")
		fmt.Fprintf(out, "  # merge a CI overlay into the base manifest\n")
		fmt.Fprintf(out, "  %s -out package.json base.json ci.json\n\n", program)
		fmt.Fprintf(out, "  # merge several overlays, compact output\n")
		fmt.Fprintf(out, "  %s -indent 0 base.json ci.json local.json\n\n", program)
		fmt.Fprintf(out, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Var(&lists, "lists", `list merge strategy [merge, replace] (default "merge")`)
	flag.IntVar(&indent, "indent", 2, "spaces per indentation level (0 for compact output)")
	flag.StringVar(&outputPath, "out", "", "output file path (defaults to stdout)")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	files := flag.Args()
	var output io.Writer
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			failed = true
			return
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	err := Run(lists, indent, files, output)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		_, _ = fmt.Fprintf(os.Stderr, "usage: %s [flags] FILE...\n", program)
		failed = true
		return
	}
}

func Run(lists listsFlag, indent int, files []string, output io.Writer) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to merge")
	}

	merger, err := pkgmerge.NewMerger(pkgmerge.Options{
		Lists:  lists.Strategy(),
		Indent: indent,
	})
	if err != nil {
		return err
	}

	docs := make([]*pkgmerge.Object, 0, len(files))
	for _, file := range files {
		doc, err := parseFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		docs = append(docs, doc)
	}

	merged, err := pkgmerge.MarshalManifest(merger.Merge(docs...), indent)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = output.Write(merged)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func parseFile(file string) (*pkgmerge.Object, error) {
	contents, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	extension := filepath.Ext(file)
	extension = strings.ToLower(extension)
	switch extension {
	case ".json":
		return pkgmerge.ParseManifest(contents)
	case ".yaml", ".yml":
		return pkgmerge.ParseManifestYAML(contents)
	case ".toml":
		return pkgmerge.ParseManifestTOML(contents)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", extension)
	}
}

type listsFlag pkgmerge.ListStrategy

func (l *listsFlag) String() string {
	strategy := pkgmerge.ListStrategy(*l)
	return strategy.String()
}

func (l *listsFlag) Set(value string) error {
	var strategy pkgmerge.ListStrategy
	switch value {
	case "":
		break
	case "merge":
		break
	case "replace":
		strategy = pkgmerge.ListReplace
	default:
		return fmt.Errorf("list strategy %q is invalid", value)
	}
	*l = listsFlag(strategy)
	return nil
}

func (l *listsFlag) Strategy() pkgmerge.ListStrategy {
	return pkgmerge.ListStrategy(*l)
}
