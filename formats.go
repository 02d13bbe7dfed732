// SPDX-License-Identifier: Apache-2.0

package pkgmerge

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// ParseManifestYAML decodes a YAML manifest document into the ordered
// document model. Mapping key order is preserved; numbers are carried as
// [json.Number] so the merged manifest marshals them as JSON numbers. The
// root must be a mapping.
func ParseManifestYAML(data []byte) (*Object, error) {
	var root any
	if err := yaml.UnmarshalWithOptions(data, &root, yaml.UseOrderedMap()); err != nil {
		return nil, &DecodeError{DocIndex: 0, Err: err}
	}

	ms, ok := root.(yaml.MapSlice)
	if !ok {
		return nil, &NotObjectError{DocIndex: 0, Root: valueKind(root)}
	}

	doc, err := objectFromMapSlice(ms)
	if err != nil {
		return nil, &DecodeError{DocIndex: 0, Err: err}
	}
	return doc, nil
}

func objectFromMapSlice(ms yaml.MapSlice) (*Object, error) {
	obj := NewObject()
	for _, item := range ms {
		key, ok := item.Key.(string)
		if !ok {
			// YAML permits non-string keys; JSON does not.
			key = fmt.Sprint(item.Key)
		}
		value, err := fromYAMLValue(item.Value)
		if err != nil {
			return nil, err
		}
		obj.Set(key, value)
	}
	return obj, nil
}

func fromYAMLValue(v any) (any, error) {
	switch t := v.(type) {
	case yaml.MapSlice:
		return objectFromMapSlice(t)
	case map[string]any:
		// Defensive: mappings should arrive as MapSlice, but convert any
		// stragglers deterministically.
		ms := make(yaml.MapSlice, 0, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			ms = append(ms, yaml.MapItem{Key: k, Value: t[k]})
		}
		return objectFromMapSlice(ms)
	case []any:
		arr := make([]any, len(t))
		for i, el := range t {
			converted, err := fromYAMLValue(el)
			if err != nil {
				return nil, err
			}
			arr[i] = converted
		}
		return arr, nil
	case string:
		return t, nil
	case bool:
		return t, nil
	case nil:
		return nil, nil
	case uint64:
		return json.Number(strconv.FormatUint(t, 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case int:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case float64:
		return floatNumber(t)
	case time.Time:
		return t.Format(time.RFC3339), nil
	default:
		return nil, fmt.Errorf("unsupported YAML value of type %T", v)
	}
}

// ParseManifestTOML decodes a TOML manifest document into the ordered
// document model. Key order is recovered from the decoder's metadata (order
// of appearance in the source); datetimes become RFC 3339 strings.
func ParseManifestTOML(data []byte) (*Object, error) {
	var m map[string]any
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, &DecodeError{DocIndex: 0, Err: err}
	}

	// Rank every defined key path by first appearance. Paths use a
	// separator that cannot occur inside key names.
	rank := make(map[string]int)
	for i, key := range md.Keys() {
		p := tomlPath([]string(key)...)
		if _, seen := rank[p]; !seen {
			rank[p] = i
		}
	}

	doc, err := objectFromTOMLMap(m, "", rank)
	if err != nil {
		return nil, &DecodeError{DocIndex: 0, Err: err}
	}
	return doc, nil
}

func tomlPath(parts ...string) string {
	p := ""
	for i, part := range parts {
		if i > 0 {
			p += "\x00"
		}
		p += part
	}
	return p
}

func childTOMLPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "\x00" + name
}

func objectFromTOMLMap(m map[string]any, path string, rank map[string]int) (*Object, error) {
	rankOf := func(name string) int {
		if r, ok := rank[childTOMLPath(path, name)]; ok {
			return r
		}
		return math.MaxInt
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if ra, rb := rankOf(a), rankOf(b); ra != rb {
			return cmp.Compare(ra, rb)
		}
		return cmp.Compare(a, b)
	})

	obj := NewObject()
	for _, name := range names {
		value, err := fromTOMLValue(m[name], childTOMLPath(path, name), rank)
		if err != nil {
			return nil, err
		}
		obj.Set(name, value)
	}
	return obj, nil
}

func fromTOMLValue(v any, path string, rank map[string]int) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		return objectFromTOMLMap(t, path, rank)
	case []map[string]any:
		// Array of tables. Elements share the table's key ranks.
		arr := make([]any, len(t))
		for i, el := range t {
			converted, err := objectFromTOMLMap(el, path, rank)
			if err != nil {
				return nil, err
			}
			arr[i] = converted
		}
		return arr, nil
	case []any:
		arr := make([]any, len(t))
		for i, el := range t {
			converted, err := fromTOMLValue(el, path, rank)
			if err != nil {
				return nil, err
			}
			arr[i] = converted
		}
		return arr, nil
	case string:
		return t, nil
	case bool:
		return t, nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case float64:
		return floatNumber(t)
	case time.Time:
		return t.Format(time.RFC3339), nil
	default:
		return nil, fmt.Errorf("unsupported TOML value of type %T", v)
	}
}

// floatNumber renders a float as a JSON number. NaN and infinities have no
// JSON representation and are rejected rather than smuggled into output.
func floatNumber(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("cannot represent %v as a JSON number", f)
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// valueKind names a decoded YAML value for error messages.
func valueKind(v any) string {
	switch v.(type) {
	case yaml.MapSlice, map[string]any:
		return "mapping"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case nil:
		return "null"
	case uint64, int64, int, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
