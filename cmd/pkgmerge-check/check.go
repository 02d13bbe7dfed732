// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/sam-fredrickson/pkgmerge"
)

// Run merges the input manifests and compares the result byte for byte
// against the expected file. In update mode the expected file is rewritten
// instead of compared. Inputs are JSON manifests; a stale expected file is
// reported as an error so CI exits nonzero.
func Run(expectPath string, update bool, lists listsFlag, indent int, files []string) error {
	if expectPath == "" {
		return fmt.Errorf("no expected file given (-expect)")
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to merge")
	}

	docs := make([][]byte, 0, len(files))
	for _, file := range files {
		contents, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		docs = append(docs, contents)
	}

	merged, err := pkgmerge.MergeManifests(pkgmerge.Options{
		Lists:  lists.Strategy(),
		Indent: indent,
	}, docs...)
	if err != nil {
		// Name the offending file rather than its position.
		var decodeErr *pkgmerge.DecodeError
		if errors.As(err, &decodeErr) {
			return fmt.Errorf("failed to parse %s: %w", files[decodeErr.DocIndex], err)
		}
		var notObj *pkgmerge.NotObjectError
		if errors.As(err, &notObj) {
			return fmt.Errorf("failed to parse %s: %w", files[notObj.DocIndex], err)
		}
		return err
	}

	if update {
		if err := os.WriteFile(expectPath, merged, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", expectPath, err)
		}
		return nil
	}

	expected, err := os.ReadFile(expectPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", expectPath, err)
	}

	if !bytes.Equal(merged, expected) {
		return fmt.Errorf("%s is out of date; rerun with -update to refresh it", expectPath)
	}
	return nil
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
