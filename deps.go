// SPDX-License-Identifier: Apache-2.0

package pkgmerge

// dependencyKeys are the manifest fields whose object values map package
// names to version ranges and get semver-aware merging instead of plain
// recursion. Classification applies at every depth of the document tree.
var dependencyKeys = map[string]bool{
	"dependencies":         true,
	"devDependencies":      true,
	"peerDependencies":     true,
	"optionalDependencies": true,
	"bundledDependencies":  true,
	"bundleDependencies":   true,
}

// isWildcardRange reports a range that accepts any version at all.
func isWildcardRange(s string) bool {
	return s == "*" || s == "latest"
}

// MergeVersions reconciles two version range strings for the same package,
// returning whichever is more permissive. The result is always one of the
// two inputs, textually unchanged.
//
// A pure wildcard (* or latest) loses to any other range. A range on either
// side that carries a protocol reference (workspace:, git+, file: and
// friends) makes update win outright: protocol pins are taken as deliberate
// choices of the later, more authoritative file. Otherwise the ranges are
// compared by anchor version, and equal anchors fall to the operator
// tie-break, where base wins unless update's operator is strictly more
// flexible.
func MergeVersions(base, update string) string {
	if isWildcardRange(base) && !isWildcardRange(update) {
		return update
	}
	if isWildcardRange(update) && !isWildcardRange(base) {
		return base
	}

	if hasProtocolMarker(base) || hasProtocolMarker(update) {
		return update
	}

	switch CompareRanges(base, update) {
	case 1:
		return update
	case -1:
		return base
	}

	if preferUpdateOperator(base, update) {
		return update
	}
	return base
}

// MergeDependencies merges two name-to-range dependency maps. Packages
// present on both sides get their ranges reconciled with [MergeVersions];
// packages present on one side are carried over unchanged, so no package is
// ever lost. Key order in the result: base keys first in their original
// order, then update-only keys in update's order. A nil side is treated as
// empty. The inputs are not modified.
func MergeDependencies(base, update *Object) *Object {
	var result *Object
	if base == nil {
		result = NewObject()
	} else {
		result = base.clone()
	}

	for _, pkg := range update.Keys() {
		updateVal, _ := update.Get(pkg)
		baseVal, exists := result.Get(pkg)
		if !exists {
			result.Set(pkg, updateVal)
			continue
		}

		baseRange, baseOK := baseVal.(string)
		updateRange, updateOK := updateVal.(string)
		if baseOK && updateOK {
			result.Set(pkg, MergeVersions(baseRange, updateRange))
		} else {
			// A malformed entry (non-string range) is not reconcilable;
			// the later document wins as with any other shape mismatch.
			result.Set(pkg, updateVal)
		}
	}

	return result
}
