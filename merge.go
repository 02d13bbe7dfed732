// SPDX-License-Identifier: Apache-2.0

// Package pkgmerge deep-merges package.json manifests with semver-aware
// dependency handling.
//
// Documents merge left to right, later documents taking precedence. Objects
// are merged recursively and keep their key order; dependency maps
// (dependencies, devDependencies, and friends) are reconciled per package so
// the more permissive version range survives instead of being overwritten;
// arrays follow a configurable list strategy.
package pkgmerge

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Sentinel errors for simple error checking with [errors.Is].
// For detailed error information, use [errors.As] with the typed errors below.
var (
	// ErrDecode indicates a manifest document could not be decoded.
	ErrDecode = errors.New("cannot decode manifest")
	// ErrNotObject indicates a manifest document is not a JSON object at its root.
	ErrNotObject = errors.New("manifest root is not an object")
	// ErrInvalidOptions indicates invalid merge options were provided.
	ErrInvalidOptions = errors.New("invalid options")
)

// DecodeError is returned when a manifest document cannot be decoded.
type DecodeError struct {
	// Err is the underlying error returned by the decoder.
	Err error
	// DocIndex tells which document the error occurred in.
	DocIndex int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode manifest document at position %d: %v", e.DocIndex, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// NotObjectError is returned when a manifest document decodes successfully
// but its root is not a JSON object.
type NotObjectError struct {
	// Root names the kind of value found at the root (array, string, number, bool, null).
	Root string
	// DocIndex tells which document the error occurred in.
	DocIndex int
}

func (e *NotObjectError) Error() string {
	return fmt.Sprintf("manifest document at position %d has %s root, expected object", e.DocIndex, e.Root)
}

func (e *NotObjectError) Is(target error) bool {
	return target == ErrNotObject
}

// ListStrategy specifies how array values present in both documents merge.
type ListStrategy int

const (
	// ListMerge combines arrays: override entries are deduplicated by their
	// files identity, other arrays are concatenated and, when uniformly
	// scalar, deduplicated and sorted (default behavior).
	ListMerge ListStrategy = iota
	// ListReplace replaces the base array entirely with the update array.
	ListReplace
)

func (s ListStrategy) String() string {
	switch s {
	case ListMerge:
		return "ListMerge"
	case ListReplace:
		return "ListReplace"
	default:
		return fmt.Sprintf("ListStrategy(%d)", s)
	}
}

// overridesKey designates the array whose object elements are deduplicated
// by their files identity under [ListMerge].
const overridesKey = "overrides"

// Options configures merge behavior.
//
// The zero value is valid: [ListMerge] list handling and compact (indent 0)
// manifest output.
type Options struct {
	// Lists specifies how arrays present in both documents merge.
	// Default is [ListMerge].
	Lists ListStrategy

	// Indent is the number of spaces per indentation level when marshaling
	// merged manifests. 0 produces compact single-line output.
	Indent int
}

// Merger performs document merging with the configured options.
//
// The merge pipeline is a pure function of its inputs, so a Merger holds no
// per-operation state and is safe to reuse and to use concurrently.
type Merger struct {
	opts Options
}

// NewMerger creates a new [Merger] with the given options.
// Returns an error if the options are invalid.
func NewMerger(opts Options) (*Merger, error) {
	switch opts.Lists {
	case ListMerge, ListReplace:
	default:
		return nil, fmt.Errorf("%w: unknown list strategy %v", ErrInvalidOptions, opts.Lists)
	}
	if opts.Indent < 0 {
		return nil, fmt.Errorf("%w: negative indent %d", ErrInvalidOptions, opts.Indent)
	}
	return &Merger{opts: opts}, nil
}

// Options returns the merge options configured for this [Merger].
func (m *Merger) Options() Options {
	return m.opts
}

// Merge merges parsed documents. See [Merger.Merge] for details.
func Merge(opts Options, docs ...*Object) (*Object, error) {
	m, err := NewMerger(opts)
	if err != nil {
		return nil, err
	}
	return m.Merge(docs...), nil
}

// MergeManifests merges raw JSON manifests. See [Merger.MergeManifests] for details.
func MergeManifests(opts Options, docs ...[]byte) ([]byte, error) {
	m, err := NewMerger(opts)
	if err != nil {
		return nil, err
	}
	return m.MergeManifests(docs...)
}

// Merge merges documents left to right, each later document overriding the
// running result.
//
// Per key: a key missing from the running result is copied; two objects
// under a dependency key are reconciled with [MergeDependencies]; two other
// objects merge recursively; two arrays follow the configured
// [ListStrategy]; any other combination is replaced by the later value.
// Dependency keys are recognized at every depth of the tree.
//
// Merging cannot fail: every combination of value shapes has a defined
// resolution. No documents yields an empty object; nil documents are
// skipped. Inputs are never modified, though the result may share
// unmodified subtrees with them.
//
// Example:
//
//	base, _ := pkgmerge.ParseManifest([]byte(`{"dependencies": {"express": "^4.17.1"}}`))
//	overlay, _ := pkgmerge.ParseManifest([]byte(`{"dependencies": {"express": "^4.18.0"}}`))
//	merged, _ := pkgmerge.Merge(pkgmerge.Options{}, base, overlay)
//	// merged dependencies: express ^4.18.0
func (m *Merger) Merge(docs ...*Object) *Object {
	if len(docs) == 0 {
		return NewObject()
	}

	result := docs[0]
	if result == nil {
		result = NewObject()
	}
	for _, doc := range docs[1:] {
		if doc == nil {
			continue
		}
		result = m.mergeObjects(result, doc)
	}
	return result
}

// MergeManifests decodes raw JSON manifests, merges them with
// [Merger.Merge], and marshals the result with the configured indent and a
// trailing newline.
//
// Every document must decode to an object at its root; a failure is
// reported as a [DecodeError] or [NotObjectError] carrying the document's
// position, and nothing is merged. No documents yields an empty object
// manifest.
func (m *Merger) MergeManifests(docs ...[]byte) ([]byte, error) {
	parsed := make([]*Object, len(docs))
	for i, data := range docs {
		doc, err := parseManifestAt(data, i)
		if err != nil {
			return nil, err
		}
		parsed[i] = doc
	}

	return MarshalManifest(m.Merge(parsed...), m.opts.Indent)
}

func (m *Merger) mergeObjects(base, update *Object) *Object {
	result := base.clone()
	for _, key := range update.Keys() {
		updateVal, _ := update.Get(key)
		baseVal, exists := result.Get(key)
		if !exists {
			result.Set(key, updateVal)
			continue
		}
		result.Set(key, m.mergeValue(key, baseVal, updateVal))
	}
	return result
}

func (m *Merger) mergeValue(key string, baseVal, updateVal any) any {
	baseObj, baseIsObj := baseVal.(*Object)
	updateObj, updateIsObj := updateVal.(*Object)
	if baseIsObj && updateIsObj {
		if dependencyKeys[key] {
			return MergeDependencies(baseObj, updateObj)
		}
		return m.mergeObjects(baseObj, updateObj)
	}

	baseList, baseIsList := baseVal.([]any)
	updateList, updateIsList := updateVal.([]any)
	if baseIsList && updateIsList {
		return m.mergeLists(key, baseList, updateList)
	}

	// Mismatched shapes and scalars: the later value wins.
	return updateVal
}

func (m *Merger) mergeLists(key string, base, update []any) []any {
	if m.opts.Lists == ListReplace {
		return update
	}
	if key == overridesKey {
		return mergeOverrides(base, update)
	}
	return mergeScalarList(base, update)
}

// mergeOverrides deduplicates override entries by the sorted, colon-joined
// values of their files array. Base entries insert first and win identity
// collisions; update entries join only under new identities. Elements
// without a usable files array (missing, not an array, non-string members)
// are dropped. The result is ordered ascending by identity.
func mergeOverrides(base, update []any) []any {
	byIdentity := make(map[string]any)
	for _, el := range base {
		if id, ok := overrideIdentity(el); ok {
			byIdentity[id] = el
		}
	}
	for _, el := range update {
		if id, ok := overrideIdentity(el); ok {
			if _, exists := byIdentity[id]; !exists {
				byIdentity[id] = el
			}
		}
	}

	identities := make([]string, 0, len(byIdentity))
	for id := range byIdentity {
		identities = append(identities, id)
	}
	slices.Sort(identities)

	result := make([]any, 0, len(identities))
	for _, id := range identities {
		result = append(result, byIdentity[id])
	}
	return result
}

// overrideIdentity computes the dedup identity of an override entry: its
// files values, sorted and joined with colons. ok is false for elements
// that are not objects with an all-string files array.
func overrideIdentity(el any) (string, bool) {
	obj, ok := el.(*Object)
	if !ok {
		return "", false
	}
	filesVal, ok := obj.Get("files")
	if !ok {
		return "", false
	}
	files, ok := filesVal.([]any)
	if !ok {
		return "", false
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		name, ok := f.(string)
		if !ok {
			return "", false
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ":"), true
}

// Scalar families for list dedup and sorting. Elements must all belong to
// one family for the list to be deduplicated and sorted; otherwise the
// concatenation is returned in stable order.
const (
	famNone = iota
	famString
	famNumber
	famBool
	famNull
	famMixed
)

func scalarFamily(list []any) int {
	family := famNone
	for _, el := range list {
		var f int
		switch el.(type) {
		case string:
			f = famString
		case json.Number:
			f = famNumber
		case bool:
			f = famBool
		case nil:
			f = famNull
		default:
			return famMixed
		}
		if family == famNone {
			family = f
		} else if family != f {
			return famMixed
		}
	}
	return family
}

// mergeScalarList concatenates base and update. When every element belongs
// to a single scalar family the result is deduplicated (numeric equality
// for numbers, so 1 and 1.0 collapse into the first occurrence) and sorted
// ascending. Mixed families and container elements fall back to the stable
// concatenation, with no dedup and no sort.
func mergeScalarList(base, update []any) []any {
	merged := make([]any, 0, len(base)+len(update))
	merged = append(merged, base...)
	merged = append(merged, update...)
	if len(merged) == 0 {
		return merged
	}

	switch scalarFamily(merged) {
	case famString:
		return dedupSort(merged, func(v any) string { return v.(string) },
			func(a, b any) int { return cmp.Compare(a.(string), b.(string)) })
	case famNumber:
		return dedupSort(merged, func(v any) any { return numberKey(v.(json.Number)) },
			func(a, b any) int { return compareNumbers(a.(json.Number), b.(json.Number)) })
	case famBool:
		return dedupSort(merged, func(v any) bool { return v.(bool) }, compareBools)
	case famNull:
		return []any{nil}
	default:
		return merged
	}
}

// dedupSort removes elements with duplicate keys, first occurrence winning,
// then sorts ascending. The comparator receives original elements, not keys.
func dedupSort[K comparable](list []any, key func(any) K, compare func(a, b any) int) []any {
	seen := make(map[K]struct{}, len(list))
	result := make([]any, 0, len(list))
	for _, el := range list {
		k := key(el)
		if _, exists := seen[k]; exists {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, el)
	}
	slices.SortStableFunc(result, compare)
	return result
}

func compareBools(a, b any) int {
	ab, bb := a.(bool), b.(bool)
	switch {
	case ab == bb:
		return 0
	case !ab:
		return -1
	default:
		return 1
	}
}

// maxExactInt is the largest integer a float64 represents exactly (2^53).
const maxExactInt = float64(1 << 53)

// numberKey maps a JSON number onto a dedup key under numeric equality:
// integral values (1, 1.0, 1e0) share a key whenever float64 still holds
// them exactly.
func numberKey(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	if f == math.Trunc(f) && f >= -maxExactInt && f <= maxExactInt {
		return int64(f)
	}
	return f
}

func compareNumbers(a, b json.Number) int {
	ai, aerr := a.Int64()
	bi, berr := b.Int64()
	if aerr == nil && berr == nil {
		return cmp.Compare(ai, bi)
	}
	af, _ := a.Float64()
	bf, _ := b.Float64()
	return cmp.Compare(af, bf)
}
