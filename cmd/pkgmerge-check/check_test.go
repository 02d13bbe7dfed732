// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestCheckFresh(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgmerge-check-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	base := writeFile(t, tmpDir, "base.json", `{"dependencies": {"a": "^1.0.0"}}`)
	overlay := writeFile(t, tmpDir, "overlay.json", `{"dependencies": {"a": "^1.2.0"}}`)
	expect := writeFile(t, tmpDir, "package.json", "{\n  \"dependencies\": {\n    \"a\": \"^1.2.0\"\n  }\n}\n")

	if err := Run(expect, false, 0, 2, []string{base, overlay}); err != nil {
		t.Fatalf("expected fresh manifest to pass, got: %v", err)
	}
}

func TestCheckStale(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgmerge-check-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	base := writeFile(t, tmpDir, "base.json", `{"dependencies": {"a": "^1.0.0"}}`)
	overlay := writeFile(t, tmpDir, "overlay.json", `{"dependencies": {"a": "^1.2.0"}}`)
	expect := writeFile(t, tmpDir, "package.json", "{\n  \"dependencies\": {\n    \"a\": \"^1.0.0\"\n  }\n}\n")

	err = Run(expect, false, 0, 2, []string{base, overlay})
	if err == nil {
		t.Fatal("expected error for stale manifest")
	}
	if !strings.Contains(err.Error(), "out of date") {
		t.Errorf("expected 'out of date' error, got: %v", err)
	}
}

func TestCheckUpdate(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgmerge-check-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	base := writeFile(t, tmpDir, "base.json", `{"dependencies": {"a": "^1.0.0"}}`)
	overlay := writeFile(t, tmpDir, "overlay.json", `{"dependencies": {"a": "^1.2.0"}}`)
	expect := filepath.Join(tmpDir, "package.json")

	// Update mode writes the expected file.
	if err := Run(expect, true, 0, 2, []string{base, overlay}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// The freshly written file passes the check.
	if err := Run(expect, false, 0, 2, []string{base, overlay}); err != nil {
		t.Fatalf("expected updated manifest to pass, got: %v", err)
	}

	content, err := os.ReadFile(expect)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), `"a": "^1.2.0"`) {
		t.Errorf("unexpected updated content: %s", content)
	}
}

func TestCheckMissingExpect(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgmerge-check-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	base := writeFile(t, tmpDir, "base.json", `{"a": "1"}`)

	err = Run(filepath.Join(tmpDir, "absent.json"), false, 0, 2, []string{base})
	if err == nil {
		t.Fatal("expected error for missing expected file")
	}
}

func TestCheckNoExpectFlag(t *testing.T) {
	err := Run("", false, 0, 2, []string{"base.json"})
	if err == nil {
		t.Fatal("expected error when -expect is not given")
	}
	if !strings.Contains(err.Error(), "-expect") {
		t.Errorf("expected '-expect' in error, got: %v", err)
	}
}

func TestCheckNoFiles(t *testing.T) {
	err := Run("package.json", false, 0, 2, nil)
	if err == nil {
		t.Fatal("expected error for missing input files")
	}
	if !strings.Contains(err.Error(), "no files") {
		t.Errorf("expected 'no files' error, got: %v", err)
	}
}

func TestCheckNamesBadFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgmerge-check-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	good := writeFile(t, tmpDir, "good.json", `{"a": "1"}`)
	bad := writeFile(t, tmpDir, "bad.json", `{"a":`)
	expect := writeFile(t, tmpDir, "package.json", "{}\n")

	err = Run(expect, false, 0, 2, []string{good, bad})
	if err == nil {
		t.Fatal("expected error for malformed input")
	}
	if !strings.Contains(err.Error(), "bad.json") {
		t.Errorf("expected error to name bad.json, got: %v", err)
	}
}
