// SPDX-License-Identifier: Apache-2.0

package pkgmerge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// specialRangeTokens are range strings with no concrete version inside.
// They pass through normalization untouched and never yield an anchor.
var specialRangeTokens = map[string]bool{
	"*":      true,
	"latest": true,
	"next":   true,
	"":       true,
}

// protocolMarkers identify non-semver dependency references. Matching is by
// substring anywhere in the range string.
var protocolMarkers = []string{
	"workspace:",
	"git+",
	"http://",
	"https://",
	"file:",
	"github:",
}

// operatorPriority ranks range operators by how much version variation they
// admit. Higher is more flexible; operators absent from the table rank 0.
var operatorPriority = map[string]int{
	"^":  4,
	"~":  3,
	">=": 2,
	">":  1,
	"=":  0,
	"<=": 0,
	"<":  0,
}

func hasProtocolMarker(s string) bool {
	for _, marker := range protocolMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// NormalizeRange rewrites a raw range string into a form the range parser
// can consume, replacing every wildcard digit x/X with 0. Special tokens
// (*, latest, next, the empty string) and protocol references pass through
// unchanged. Never fails.
func NormalizeRange(s string) string {
	if specialRangeTokens[s] || hasProtocolMarker(s) {
		return s
	}
	s = strings.ReplaceAll(s, "x", "0")
	return strings.ReplaceAll(s, "X", "0")
}

// OperatorPrefix returns the leading range operator of s, one of
// ^ ~ >= <= > < =. Two-character operators are matched before their
// one-character prefixes. A bare version defaults to "=".
func OperatorPrefix(s string) string {
	for _, op := range []string{">=", "<="} {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	for _, op := range []string{"^", "~", ">", "<", "="} {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return "="
}

// rangeNode is one primitive comparison: operator plus target version.
type rangeNode struct {
	op  string
	ver *semver.Version
}

// rangeSpec is a parsed range in disjunctive form: the OR-groups produced by
// splitting on ||, each an AND-list of primitive nodes. npm shorthand
// (caret, tilde, hyphen ranges, partial versions) is expanded into primitive
// nodes at parse time.
type rangeSpec struct {
	groups [][]rangeNode
}

// firstNode returns the first primitive node, the one the anchor and the
// tie-break operator are read from.
func (s *rangeSpec) firstNode() *rangeNode {
	for _, group := range s.groups {
		for i := range group {
			return &group[i]
		}
	}
	return nil
}

func parseRange(s string) (*rangeSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errEmptyRange
	}
	spec := &rangeSpec{}
	for _, part := range strings.Split(s, "||") {
		group, err := parseRangeGroup(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		spec.groups = append(spec.groups, group)
	}
	return spec, nil
}

var (
	errEmptyRange  = errors.New("empty version range")
	rangeOperators = []string{"^", "~", ">=", "<=", ">", "<", "="}
)

func parseRangeGroup(s string) ([]rangeNode, error) {
	if s == "" {
		return nil, errEmptyRange
	}

	if strings.Contains(s, " - ") {
		parts := strings.Split(s, " - ")
		if len(parts) != 2 {
			return nil, rangeSyntaxError(s)
		}
		return parseHyphenRange(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}

	fields := strings.Fields(s)
	var nodes []rangeNode
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		// An operator may be separated from its version by whitespace.
		if isOperatorToken(tok) && i+1 < len(fields) {
			tok += fields[i+1]
			i++
		}
		expanded, err := parseSimpleRange(tok)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, expanded...)
	}
	return nodes, nil
}

func isOperatorToken(tok string) bool {
	for _, op := range rangeOperators {
		if tok == op {
			return true
		}
	}
	return false
}

func rangeSyntaxError(s string) error {
	return fmt.Errorf("invalid version range %q", s)
}

// parseSimpleRange expands one comparator token into primitive nodes.
func parseSimpleRange(tok string) ([]rangeNode, error) {
	if tok == "*" {
		return []rangeNode{{op: ">=", ver: semver.New(0, 0, 0, "", "")}}, nil
	}

	op := ""
	for _, candidate := range rangeOperators {
		if strings.HasPrefix(tok, candidate) {
			op = candidate
			break
		}
	}

	p, err := parsePartialVersion(tok[len(op):])
	if err != nil {
		return nil, err
	}

	switch op {
	case "^":
		return expandCaret(p), nil
	case "~":
		return expandTilde(p), nil
	case "", "=":
		return expandExact(p), nil
	default: // >=, <=, >, <
		return []rangeNode{{op: op, ver: p.ver}}, nil
	}
}

// partialVersion is a version token that may omit minor and patch segments.
// ver is always zero-filled to full precision.
type partialVersion struct {
	ver       *semver.Version
	precision int
}

func parsePartialVersion(tok string) (partialVersion, error) {
	tok = strings.TrimPrefix(tok, "v")

	if v, err := semver.StrictNewVersion(tok); err == nil {
		return partialVersion{ver: v, precision: 3}, nil
	}

	parts := strings.Split(tok, ".")
	if len(parts) > 2 {
		return partialVersion{}, rangeSyntaxError(tok)
	}
	nums := make([]uint64, len(parts))
	for i, part := range parts {
		if part == "" || (len(part) > 1 && part[0] == '0') {
			return partialVersion{}, rangeSyntaxError(tok)
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return partialVersion{}, rangeSyntaxError(tok)
		}
		nums[i] = n
	}

	var minor uint64
	if len(nums) == 2 {
		minor = nums[1]
	}
	return partialVersion{
		ver:       semver.New(nums[0], minor, 0, "", ""),
		precision: len(parts),
	}, nil
}

// expandCaret desugars ^V: changes are allowed up to the next bump of the
// leftmost nonzero segment.
func expandCaret(p partialVersion) []rangeNode {
	major, minor, patch := p.ver.Major(), p.ver.Minor(), p.ver.Patch()
	var upper *semver.Version
	switch {
	case major > 0 || p.precision == 1:
		upper = semver.New(major+1, 0, 0, "", "")
	case minor > 0 || p.precision == 2:
		upper = semver.New(0, minor+1, 0, "", "")
	default:
		upper = semver.New(0, 0, patch+1, "", "")
	}
	return []rangeNode{
		{op: ">=", ver: p.ver},
		{op: "<", ver: upper},
	}
}

// expandTilde desugars ~V: patch-level changes, or minor-level when only the
// major segment is given.
func expandTilde(p partialVersion) []rangeNode {
	var upper *semver.Version
	if p.precision == 1 {
		upper = semver.New(p.ver.Major()+1, 0, 0, "", "")
	} else {
		upper = semver.New(p.ver.Major(), p.ver.Minor()+1, 0, "", "")
	}
	return []rangeNode{
		{op: ">=", ver: p.ver},
		{op: "<", ver: upper},
	}
}

// expandExact desugars a bare or =-prefixed version. A full version pins
// exactly; a partial version spans the omitted segments.
func expandExact(p partialVersion) []rangeNode {
	switch p.precision {
	case 3:
		return []rangeNode{{op: "=", ver: p.ver}}
	case 1:
		return []rangeNode{
			{op: ">=", ver: p.ver},
			{op: "<", ver: semver.New(p.ver.Major()+1, 0, 0, "", "")},
		}
	default:
		return []rangeNode{
			{op: ">=", ver: p.ver},
			{op: "<", ver: semver.New(p.ver.Major(), p.ver.Minor()+1, 0, "", "")},
		}
	}
}

func parseHyphenRange(low, high string) ([]rangeNode, error) {
	lo, err := parsePartialVersion(low)
	if err != nil {
		return nil, err
	}
	hi, err := parsePartialVersion(high)
	if err != nil {
		return nil, err
	}

	nodes := []rangeNode{{op: ">=", ver: lo.ver}}
	switch hi.precision {
	case 3:
		nodes = append(nodes, rangeNode{op: "<=", ver: hi.ver})
	case 1:
		nodes = append(nodes, rangeNode{op: "<", ver: semver.New(hi.ver.Major()+1, 0, 0, "", "")})
	default:
		nodes = append(nodes, rangeNode{op: "<", ver: semver.New(hi.ver.Major(), hi.ver.Minor()+1, 0, "", "")})
	}
	return nodes, nil
}

// AnchorVersion extracts one representative concrete version from a range
// string: the target of the first primitive node of its parsed form. Special
// tokens and protocol references have no anchor. When structured parsing
// cannot produce a node, a textual heuristic is tried before reporting
// absence; absence is reported as ok == false, never as version 0.0.0.
func AnchorVersion(s string) (*semver.Version, bool) {
	if specialRangeTokens[s] || hasProtocolMarker(s) {
		return nil, false
	}
	if spec, err := parseRange(NormalizeRange(s)); err == nil {
		if n := spec.firstNode(); n != nil {
			return n.ver, true
		}
	}
	if v := textualAnchor(s); v != nil {
		return v, true
	}
	return nil, false
}

// anchorFromSpec is the comparator-side extraction: the range spec has
// already been built from the normalized string, but special-token and
// protocol checks still run against the raw one.
func anchorFromSpec(spec *rangeSpec, raw string) *semver.Version {
	if specialRangeTokens[raw] || hasProtocolMarker(raw) {
		return nil
	}
	if n := spec.firstNode(); n != nil {
		return n.ver
	}
	return textualAnchor(raw)
}

// textualAnchor recovers a version from a range string without parsing it:
// strip leading operator characters, keep the text before any || union and
// any hyphen range, take the first whitespace-delimited token, rewrite
// wildcards, and require a full major.minor.patch version. Returns nil when
// no version can be recovered.
func textualAnchor(raw string) *semver.Version {
	cleaned := strings.TrimLeft(raw, "^~>=<")
	if i := strings.Index(cleaned, "||"); i >= 0 {
		cleaned = cleaned[:i]
	}
	if i := strings.Index(cleaned, " - "); i >= 0 {
		cleaned = cleaned[:i]
	}
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return nil
	}
	cleaned = strings.ReplaceAll(fields[0], "x", "0")
	cleaned = strings.ReplaceAll(cleaned, "X", "0")

	v, err := semver.StrictNewVersion(cleaned)
	if err != nil {
		return nil
	}
	return v
}

// CompareRanges reports which of two range strings permits higher versions:
// +1 when update does, -1 when base does, 0 on a tie. A side whose anchor
// cannot be resolved is treated as unbounded and outranks a bounded side.
// Any failure constructing either range spec yields a tie, so a malformed
// string cannot silently discard an update.
func CompareRanges(base, update string) int {
	baseSpec, err := parseRange(NormalizeRange(base))
	if err != nil {
		return 0
	}
	updateSpec, err := parseRange(NormalizeRange(update))
	if err != nil {
		return 0
	}

	baseVer := anchorFromSpec(baseSpec, base)
	updateVer := anchorFromSpec(updateSpec, update)

	switch {
	case baseVer == nil && updateVer == nil:
		return 0
	case baseVer == nil:
		return 1
	case updateVer == nil:
		return -1
	}

	switch c := updateVer.Compare(baseVer); {
	case c > 0:
		return 1
	case c < 0:
		return -1
	default:
		return 0
	}
}

// rangeOperator determines the operator a range string is ranked by: the
// operator of the first primitive node of its parsed form, overridden by a
// literal ^ or ~ prefix (npm shorthand the parsed form does not retain).
func rangeOperator(raw string) (string, error) {
	spec, err := parseRange(NormalizeRange(raw))
	if err != nil {
		return "", err
	}
	op := "="
	if n := spec.firstNode(); n != nil {
		op = n.op
	}
	if prefix := OperatorPrefix(raw); prefix == "^" || prefix == "~" {
		op = prefix
	}
	return op, nil
}

// preferUpdateOperator is the tie-breaker for ranges with equal anchors:
// update wins only when its operator is strictly more flexible. A failure
// determining either operator prefers update, deliberately the opposite
// default from the comparator's tie.
func preferUpdateOperator(base, update string) bool {
	baseOp, err := rangeOperator(base)
	if err != nil {
		return true
	}
	updateOp, err := rangeOperator(update)
	if err != nil {
		return true
	}
	return operatorPriority[updateOp] > operatorPriority[baseOp]
}
