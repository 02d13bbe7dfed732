// SPDX-License-Identifier: Apache-2.0

package pkgmerge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Object is an insertion-order-preserving string-keyed map, the document
// model for manifest objects. Plain Go maps iterate in random order, which
// would scramble merged output; Object keeps keys in the order they were
// first set, matching how package.json files are read and written.
//
// Values are *Object for nested objects, []any for arrays, and string, bool,
// nil, or [json.Number] for scalars.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Get returns the value stored under key and whether the key is present.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Set stores value under key. A new key is appended after all existing keys;
// an existing key keeps its position and gets the new value.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Keys returns the keys in insertion order. The returned slice is a copy.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return slices.Clone(o.keys)
}

// clone returns a shallow copy: fresh key slice and map, shared values.
func (o *Object) clone() *Object {
	c := &Object{
		keys:   slices.Clone(o.keys),
		values: make(map[string]any, len(o.values)),
	}
	for k, v := range o.values {
		c.values[k] = v
	}
	return c
}

// MarshalJSON implements [json.Marshaler], emitting keys in insertion order.
// HTML characters are not escaped.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	// Encode appends a newline after each value; trim it so the object
	// stays a single compact line for the outer encoder to re-indent.
	encode := func(v any) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		buf.Truncate(buf.Len() - 1)
		return nil
	}

	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encode(o.values[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements [json.Unmarshaler]. The data must be a JSON
// object; numbers are kept as [json.Number] so their source text survives
// a round trip.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("cannot decode %s into object", tokenKind(tok))
	}

	decoded, err := decodeObjectBody(dec)
	if err != nil {
		return err
	}
	*o = *decoded
	return nil
}

// ParseManifest decodes a JSON manifest document. The root must be an
// object; a non-object root yields a [NotObjectError] and malformed JSON a
// [DecodeError]. Data after the closing brace (other than whitespace) is an
// error.
func ParseManifest(data []byte) (*Object, error) {
	return parseManifestAt(data, 0)
}

func parseManifestAt(data []byte, docIndex int) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &DecodeError{DocIndex: docIndex, Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &NotObjectError{DocIndex: docIndex, Root: tokenKind(tok)}
	}

	doc, err := decodeObjectBody(dec)
	if err != nil {
		return nil, &DecodeError{DocIndex: docIndex, Err: err}
	}

	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("trailing data after manifest object")
		}
		return nil, &DecodeError{DocIndex: docIndex, Err: err}
	}
	return doc, nil
}

// decodeObjectBody consumes key/value pairs up to and including the closing
// brace. The opening brace has already been read.
func decodeObjectBody(dec *json.Decoder) (*Object, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %s, expected string", tokenKind(tok))
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, value)
	}
	// Closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArrayBody(dec *json.Decoder) ([]any, error) {
	arr := []any{}
	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, value)
	}
	// Closing bracket.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObjectBody(dec)
		case '[':
			return decodeArrayBody(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t.String())
		}
	default:
		// string, bool, json.Number, or nil
		return tok, nil
	}
}

// tokenKind names a decoded JSON token for error messages.
func tokenKind(tok json.Token) string {
	switch t := tok.(type) {
	case json.Delim:
		if t == '[' {
			return "array"
		}
		return t.String()
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", tok)
	}
}

// MarshalManifest encodes a manifest as UTF-8 JSON with the given number of
// spaces per indentation level and exactly one trailing newline. Indent 0
// produces compact single-line output. HTML characters are written verbatim.
func MarshalManifest(doc *Object, indent int) ([]byte, error) {
	if indent < 0 {
		return nil, fmt.Errorf("%w: negative indent %d", ErrInvalidOptions, indent)
	}
	if doc == nil {
		doc = NewObject()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
