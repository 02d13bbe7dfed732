// SPDX-License-Identifier: Apache-2.0

package pkgmerge_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/sam-fredrickson/pkgmerge"
)

func depMap(t *testing.T, raw string) *pkgmerge.Object {
	t.Helper()
	obj, err := pkgmerge.ParseManifest([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	return obj
}

func TestMergeDependenciesKeyOrder(t *testing.T) {
	base := depMap(t, `{"a": "^1.0.0", "b": "^1.0.0", "c": "^1.0.0"}`)
	update := depMap(t, `{"c": "^1.1.0", "a": "^1.0.0", "d": "^2.0.0"}`)

	merged := pkgmerge.MergeDependencies(base, update)

	// Base keys keep their order; update-only keys append in update's order.
	want := []string{"a", "b", "c", "d"}
	if got := merged.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected keys %v, got %v", want, got)
	}
	if v, _ := merged.Get("c"); v != "^1.1.0" {
		t.Fatalf("expected c reconciled to ^1.1.0, got %v", v)
	}
}

func TestMergeDependenciesNoPackageLost(t *testing.T) {
	base := depMap(t, `{"express": "^4.17.1", "lodash": "~4.17.20"}`)
	update := depMap(t, `{"express": "^4.18.0", "chalk": "^5.0.0"}`)

	merged := pkgmerge.MergeDependencies(base, update)

	for _, pkg := range []string{"express", "lodash", "chalk"} {
		if _, ok := merged.Get(pkg); !ok {
			t.Errorf("expected package %s in merged map", pkg)
		}
	}
	if v, _ := merged.Get("express"); v != "^4.18.0" {
		t.Fatalf("expected express ^4.18.0, got %v", v)
	}
	if v, _ := merged.Get("lodash"); v != "~4.17.20" {
		t.Fatalf("expected lodash untouched, got %v", v)
	}
}

func TestMergeDependenciesNilSides(t *testing.T) {
	deps := depMap(t, `{"a": "^1.0.0"}`)

	fromNilBase := pkgmerge.MergeDependencies(nil, deps)
	if v, _ := fromNilBase.Get("a"); v != "^1.0.0" {
		t.Fatalf("expected update contents with nil base, got %v", v)
	}

	fromNilUpdate := pkgmerge.MergeDependencies(deps, nil)
	if v, _ := fromNilUpdate.Get("a"); v != "^1.0.0" {
		t.Fatalf("expected base contents with nil update, got %v", v)
	}

	empty := pkgmerge.MergeDependencies(nil, nil)
	if empty.Len() != 0 {
		t.Fatalf("expected empty result, got %d keys", empty.Len())
	}
}

func TestMergeDependenciesNonStringRange(t *testing.T) {
	base := depMap(t, `{"a": 1, "b": "^1.0.0"}`)
	update := depMap(t, `{"a": "^1.0.0", "b": {"nested": true}}`)

	merged := pkgmerge.MergeDependencies(base, update)

	// Non-string ranges cannot be reconciled; the update side wins.
	if v, _ := merged.Get("a"); v != "^1.0.0" {
		t.Fatalf("expected a=^1.0.0, got %v", v)
	}
	bVal, _ := merged.Get("b")
	if _, ok := bVal.(*pkgmerge.Object); !ok {
		t.Fatalf("expected b replaced by update's object, got %T", bVal)
	}
}

func TestMergeDependenciesInputsUntouched(t *testing.T) {
	base := depMap(t, `{"a": "^1.0.0"}`)
	update := depMap(t, `{"a": "^2.0.0"}`)

	before, err := json.Marshal(base)
	if err != nil {
		t.Fatal(err)
	}
	pkgmerge.MergeDependencies(base, update)
	after, err := json.Marshal(base)
	if err != nil {
		t.Fatal(err)
	}

	if string(before) != string(after) {
		t.Fatalf("base modified by merge: %s -> %s", before, after)
	}
}
