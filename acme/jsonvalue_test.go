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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONInvalid(t *testing.T) {
	_, err := ParseJSON([]byte(`{"broken`))
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
}

func TestTypedAccessors(t *testing.T) {
	v, err := ParseJSON([]byte(`{
		"str": "hello",
		"num": 42,
		"dec": 1.5,
		"flag": true,
		"when": "2026-01-02T15:04:05Z",
		"where": "https://example.com/acme",
		"status": "valid",
		"odd": "not-a-real-status",
		"list": ["a", "b"],
		"identifier": {"type": "dns", "value": "example.com"}
	}`))
	require.NoError(t, err)

	s, err := v.Get("str").AsString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	n, err := v.Get("num").AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = v.Get("dec").AsInt()
	assert.Error(t, err, "decimal must not coerce to int")

	b, err := v.Get("flag").AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	when, err := v.Get("when").AsInstant()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), when)

	u, err := v.Get("where").AsURL()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/acme", u.String())

	st, err := v.Get("status").AsStatus()
	require.NoError(t, err)
	assert.Equal(t, StatusValid, st)

	st, err = v.Get("odd").AsStatus()
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, st, "unrecognized status decodes as unknown")

	list, err := v.Get("list").AsStringArray()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)

	id, err := v.Get("identifier").AsIdentifier()
	require.NoError(t, err)
	assert.Equal(t, Identifier{Type: "dns", Value: "example.com"}, id)
}

func TestMissingValuesCarryPath(t *testing.T) {
	v, err := ParseJSON([]byte(`{"outer": {"inner": 7}}`))
	require.NoError(t, err)

	missing := v.Get("outer").Get("nope").Get("deeper")
	assert.False(t, missing.IsPresent())

	_, err = missing.AsString()
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "$.outer.nope.deeper", pe.Path)

	_, err = v.Get("outer").Get("inner").AsString()
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "$.outer.inner", pe.Path)
}

func TestMapSkipsMissing(t *testing.T) {
	v, err := ParseJSON([]byte(`{"present": "yes"}`))
	require.NoError(t, err)

	got, err := Map(v.Get("present"), Value.AsString)
	require.NoError(t, err)
	assert.Equal(t, "yes", got)

	got, err = Map(v.Get("absent"), Value.AsString)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValueRoundTrip(t *testing.T) {
	inputs := []string{
		`{"a":1,"b":[true,null,"x"],"c":{"d":1.25}}`,
		`{"status":"pending","identifiers":[{"type":"dns","value":"example.org"}]}`,
		`[1,2,3]`,
		`"bare string"`,
	}
	for _, in := range inputs {
		v, err := ParseJSON([]byte(in))
		require.NoError(t, err)

		var want, got interface{}
		require.NoError(t, json.Unmarshal([]byte(in), &want))
		require.NoError(t, json.Unmarshal([]byte(v.String()), &got))
		assert.Equal(t, want, got, "round trip of %s", in)
	}
}

func TestAsProblem(t *testing.T) {
	v, err := ParseJSON([]byte(`{
		"type": "urn:ietf:params:acme:error:malformed",
		"detail": "order is broken",
		"status": 400,
		"instance": "/acct/1/order/2",
		"subproblems": [
			{"type": "urn:ietf:params:acme:error:dns",
			 "detail": "no TXT record",
			 "identifier": {"type": "dns", "value": "example.net"}}
		]
	}`))
	require.NoError(t, err)

	base := mustParseURL(t, "https://example.com/acme/order/2")
	p, err := v.AsProblem(base)
	require.NoError(t, err)

	assert.Equal(t, ProblemMalformed, p.Type)
	assert.Equal(t, "order is broken", p.Detail)
	assert.Equal(t, 400, p.Status)
	require.Len(t, p.Subproblems, 1)
	assert.Equal(t, "example.net", p.Subproblems[0].Identifier.Value)

	inst, err := p.InstanceURL()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/acct/1/order/2", inst.String())
}

func TestAsObjectEnumeratesKeys(t *testing.T) {
	v, err := ParseJSON([]byte(`{"newNonce":"https://ca/nonce","newOrder":"https://ca/order"}`))
	require.NoError(t, err)
	obj, err := v.AsObject()
	require.NoError(t, err)
	assert.Len(t, obj, 2)
	s, err := obj["newNonce"].AsString()
	require.NoError(t, err)
	assert.Equal(t, "https://ca/nonce", s)
}
