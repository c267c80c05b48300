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

package acme

import (
	"bytes"
	"encoding/json"
)

// Builder constructs a JSON object in insertion order and emits it as
// canonical, whitespace-free JSON. Two Builders are Equal iff they hold
// the same fields and values, regardless of insertion order.
type Builder struct {
	keys   []string
	values map[string]interface{}
}

// NewBuilder returns an empty object builder.
func NewBuilder() *Builder {
	return &Builder{values: make(map[string]interface{})}
}

func (b *Builder) set(key string, value interface{}) *Builder {
	if _, exists := b.values[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
	return b
}

// Str sets a string field.
func (b *Builder) Str(key, value string) *Builder { return b.set(key, value) }

// Int sets an integer field.
func (b *Builder) Int(key string, value int64) *Builder { return b.set(key, value) }

// Bool sets a boolean field.
func (b *Builder) Bool(key string, value bool) *Builder { return b.set(key, value) }

// Raw sets a field to an already-JSON-serializable value (another
// Builder, a []string, a struct with json tags, etc).
func (b *Builder) Raw(key string, value interface{}) *Builder { return b.set(key, value) }

// Array sets a field to a JSON array of raw JSON-serializable elements.
func (b *Builder) Array(key string, values ...interface{}) *Builder {
	return b.set(key, values)
}

// Bytes returns the canonical JSON encoding: object keys in insertion
// order, no trailing whitespace or newline.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(b.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Value parses the builder's own output back into a Value tree; useful
// for feeding a locally built payload through the same typed accessors
// as a server response.
func (b *Builder) Value() (Value, error) {
	raw, err := b.Bytes()
	if err != nil {
		return Value{}, err
	}
	return ParseJSON(raw)
}

// Equal reports whether b and other serialize to the same canonical
// JSON, regardless of insertion order.
func (b *Builder) Equal(other *Builder) bool {
	bb, err1 := normalizedJSON(b)
	ob, err2 := normalizedJSON(other)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(bb, ob)
}

// normalizedJSON re-marshals through encoding/json's map path, which
// sorts object keys, so that insertion order doesn't affect equality.
func normalizedJSON(b *Builder) ([]byte, error) {
	raw, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// String implements fmt.Stringer for logging; it panics-free on
// marshal errors by falling back to a sentinel string.
func (b *Builder) String() string {
	raw, err := b.Bytes()
	if err != nil {
		return "<invalid>"
	}
	return string(raw)
}
