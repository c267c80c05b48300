// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package acme implements the protocol engine of an RFC 8555 ACME client:
// JOSE-signed requests, nonce management, and the Account/Order/
// Authorization/Challenge/Certificate resource state machines.
package acme

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Value is an immutable node in a parsed JSON tree. The zero Value is
// "missing" — map and array accessors on it return further missing
// Values rather than panicking, so a chain like
// v.Get("a").Get("b").AsString() fails at the point of coercion, with a
// path, rather than with a nil-pointer panic partway through.
type Value struct {
	raw     interface{}
	present bool
	path    string
}

// ParseJSON parses b into a Value tree. b must be valid JSON; numbers are
// decoded with json.Number so integers and decimals round-trip exactly.
func ParseJSON(b []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return Value{}, protocolErrorf("", "invalid JSON: %v", err)
	}
	return Value{raw: raw, present: true, path: "$"}, nil
}

// IsPresent reports whether the value was found in the tree (as opposed
// to being the result of a missing Get/Index).
func (v Value) IsPresent() bool { return v.present }

// IsNull reports whether the JSON value is the literal null.
func (v Value) IsNull() bool { return v.present && v.raw == nil }

// Get looks up key in an object value. Missing keys, and Get called on
// a non-object, both yield a not-present Value carrying the attempted
// path for error messages.
func (v Value) Get(key string) Value {
	child := Value{path: v.path + "." + key}
	obj, ok := v.raw.(map[string]interface{})
	if !ok {
		return child
	}
	raw, ok := obj[key]
	if !ok {
		return child
	}
	child.raw = raw
	child.present = true
	return child
}

// Index looks up the i'th element of an array value.
func (v Value) Index(i int) Value {
	child := Value{path: fmt.Sprintf("%s[%d]", v.path, i)}
	arr, ok := v.raw.([]interface{})
	if !ok || i < 0 || i >= len(arr) {
		return child
	}
	child.raw = arr[i]
	child.present = true
	return child
}

// Map calls f with v when v is present, returning its result; otherwise
// it returns the zero value of R without calling f.
func Map[R any](v Value, f func(Value) (R, error)) (R, error) {
	var zero R
	if !v.present {
		return zero, nil
	}
	return f(v)
}

func (v Value) missing(kind string) error {
	return protocolErrorf(v.path, "missing %s value", kind)
}

// AsString coerces v to a string.
func (v Value) AsString() (string, error) {
	if !v.present {
		return "", v.missing("string")
	}
	s, ok := v.raw.(string)
	if !ok {
		return "", protocolErrorf(v.path, "not a string: %T", v.raw)
	}
	return s, nil
}

// AsInt coerces v to an integer.
func (v Value) AsInt() (int64, error) {
	if !v.present {
		return 0, v.missing("int")
	}
	n, ok := v.raw.(json.Number)
	if !ok {
		return 0, protocolErrorf(v.path, "not a number: %T", v.raw)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, protocolErrorf(v.path, "not an integer: %v", err)
	}
	return i, nil
}

// AsBool coerces v to a boolean.
func (v Value) AsBool() (bool, error) {
	if !v.present {
		return false, v.missing("bool")
	}
	b, ok := v.raw.(bool)
	if !ok {
		return false, protocolErrorf(v.path, "not a bool: %T", v.raw)
	}
	return b, nil
}

// AsURL coerces v to a URL. Relative references are returned as
// parsed, without resolution.
func (v Value) AsURL() (*url.URL, error) {
	s, err := v.AsString()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, protocolErrorf(v.path, "not a URL: %v", err)
	}
	return u, nil
}

// AsURI returns v as an unparsed string, like AsString: RFC 8555
// sometimes calls the same shape a "URI" (e.g. identifier values)
// rather than a dereferenceable "URL".
func (v Value) AsURI() (string, error) {
	return v.AsString()
}

// AsInstant coerces v to an RFC 3339 timestamp.
func (v Value) AsInstant() (time.Time, error) {
	s, err := v.AsString()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, protocolErrorf(v.path, "not an RFC3339 instant: %v", err)
	}
	return t, nil
}

// AsStatus coerces v to a Status. Unlike the other accessors this never
// fails on an unrecognized string; it maps to StatusUnknown instead.
func (v Value) AsStatus() (Status, error) {
	s, err := v.AsString()
	if err != nil {
		return StatusUnknown, err
	}
	return parseStatus(s), nil
}

// AsIdentifier coerces v to an {type,value} Identifier.
func (v Value) AsIdentifier() (Identifier, error) {
	if !v.present {
		return Identifier{}, v.missing("identifier")
	}
	typ, err := v.Get("type").AsString()
	if err != nil {
		return Identifier{}, err
	}
	val, err := v.Get("value").AsString()
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Type: typ, Value: val}, nil
}

// AsProblem coerces v to a Problem. Instance is kept as sent; base is
// recorded so that Problem.InstanceURL can resolve it.
func (v Value) AsProblem(base *url.URL) (Problem, error) {
	if !v.present {
		return Problem{}, v.missing("problem")
	}
	if _, ok := v.raw.(map[string]interface{}); !ok {
		return Problem{}, protocolErrorf(v.path, "not a problem object: %T", v.raw)
	}
	typ, _ := v.Get("type").AsString()
	if typ == "" {
		typ = "about:blank"
	}
	title, _ := v.Get("title").AsString()
	detail, _ := v.Get("detail").AsString()
	status, _ := v.Get("status").AsInt()
	instance, _ := v.Get("instance").AsString()

	p := Problem{
		Type:     typ,
		Title:    title,
		Detail:   detail,
		Status:   int(status),
		Instance: instance,
		baseURL:  base,
	}
	if id := v.Get("identifier"); id.IsPresent() {
		ident, err := id.AsIdentifier()
		if err == nil {
			p.Identifier = &ident
		}
	}
	if subs := v.Get("subproblems"); subs.IsPresent() {
		arr, err := subs.AsArray()
		if err == nil {
			for _, s := range arr {
				sp, err := s.AsProblem(base)
				if err == nil {
					p.Subproblems = append(p.Subproblems, sp)
				}
			}
		}
	}
	return p, nil
}

// AsArray returns the elements of an array value.
func (v Value) AsArray() ([]Value, error) {
	if !v.present {
		return nil, v.missing("array")
	}
	arr, ok := v.raw.([]interface{})
	if !ok {
		return nil, protocolErrorf(v.path, "not an array: %T", v.raw)
	}
	out := make([]Value, len(arr))
	for i, raw := range arr {
		out[i] = Value{raw: raw, present: true, path: fmt.Sprintf("%s[%d]", v.path, i)}
	}
	return out, nil
}

// AsStringArray is a convenience wrapper over AsArray + AsString.
func (v Value) AsStringArray() ([]string, error) {
	arr, err := v.AsArray()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, err := e.AsString()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// AsObject returns v's object as a map of raw Values, for callers that
// need to enumerate keys (e.g. the Directory).
func (v Value) AsObject() (map[string]Value, error) {
	if !v.present {
		return nil, v.missing("object")
	}
	obj, ok := v.raw.(map[string]interface{})
	if !ok {
		return nil, protocolErrorf(v.path, "not an object: %T", v.raw)
	}
	out := make(map[string]Value, len(obj))
	for k, raw := range obj {
		out[k] = Value{raw: raw, present: true, path: v.path + "." + k}
	}
	return out, nil
}

// String renders v back to canonical JSON text.
func (v Value) String() string {
	b, err := json.Marshal(v.raw)
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}
