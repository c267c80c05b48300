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
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persistChallenge builds a dns-persist-01 challenge bound to the
// account URL https://example.com/acme/acct/1, with the given issuer
// names.
func persistChallenge(t *testing.T, issuers []string) *DNSPersist01Challenge {
	t.Helper()
	s, err := NewSession("https://ca.example/dir")
	require.NoError(t, err)
	acctURL, err := url.Parse("https://example.com/acme/acct/1")
	require.NoError(t, err)
	login, err := NewLogin(s, acctURL, testKey(t))
	require.NoError(t, err)

	names, err := json.Marshal(issuers)
	require.NoError(t, err)
	raw, err := ParseJSON([]byte(fmt.Sprintf(
		`{"type":"dns-persist-01","url":"https://ca.example/chall/9","status":"pending","issuer-domain-names":%s}`,
		names)))
	require.NoError(t, err)

	typed, err := s.CreateChallenge(login, raw)
	require.NoError(t, err)
	return typed.(*DNSPersist01Challenge)
}

func TestPersistRecordQuotedDefault(t *testing.T) {
	ch := persistChallenge(t, []string{"authority.example", "ca.example.net"})
	rec, err := ch.Record()
	require.NoError(t, err)
	rdata, err := rec.Build()
	require.NoError(t, err)
	assert.Equal(t,
		`"authority.example;" " accounturi=https://example.com/acme/acct/1"`,
		rdata)
}

func TestPersistRecordAllOptionsUnquoted(t *testing.T) {
	ch := persistChallenge(t, []string{"authority.example", "ca.example.net"})
	rec, err := ch.Record()
	require.NoError(t, err)
	rdata, err := rec.
		Wildcard().
		IssuerDomainName("ca.example.net").
		PersistUntil(1767225600).
		NoQuotes().
		Build()
	require.NoError(t, err)
	assert.Equal(t,
		"ca.example.net; accounturi=https://example.com/acme/acct/1; policy=wildcard; persistUntil=1767225600",
		rdata)
}

func TestPersistIssuerDomainNameConstraints(t *testing.T) {
	tenNames := make([]string, 10)
	for i := range tenNames {
		tenNames[i] = fmt.Sprintf("ca%d.example", i)
	}
	elevenNames := append(append([]string(nil), tenNames...), "ca10.example")

	t.Run("empty array fails", func(t *testing.T) {
		_, err := persistChallenge(t, []string{}).Record()
		assert.Error(t, err)
	})
	t.Run("ten names pass", func(t *testing.T) {
		rec, err := persistChallenge(t, tenNames).Record()
		require.NoError(t, err)
		_, err = rec.Build()
		assert.NoError(t, err)
	})
	t.Run("eleven names fail", func(t *testing.T) {
		_, err := persistChallenge(t, elevenNames).Record()
		assert.Error(t, err)
	})
	t.Run("overlong name fails", func(t *testing.T) {
		long := strings.Repeat("a", 254)
		_, err := persistChallenge(t, []string{long}).Record()
		assert.Error(t, err)
	})
	t.Run("issuer must be a member", func(t *testing.T) {
		rec, err := persistChallenge(t, []string{"authority.example"}).Record()
		require.NoError(t, err)
		_, err = rec.IssuerDomainName("rogue.example").Build()
		assert.Error(t, err)
	})
}
