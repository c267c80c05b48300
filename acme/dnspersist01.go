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
	"fmt"
	"strconv"
	"strings"
)

// dnsPersistLabel is the owner-name prefix for dns-persist-01 TXT
// records.
const dnsPersistLabel = "_validation-persist"

const (
	minIssuerDomainNames = 1
	maxIssuerDomainNames = 10
	maxIssuerDomainLen   = 253
)

// DNSPersist01Challenge is the draft dns-persist-01 challenge: a
// long-lived TXT record at _validation-persist.<domain>. that names
// the issuing CA and the authorized account, instead of a per-order
// token.
type DNSPersist01Challenge struct {
	*Challenge
}

// RRName returns the fully-qualified TXT owner name for domain.
func (c *DNSPersist01Challenge) RRName(domain string) (string, error) {
	return rrName(domain, dnsPersistLabel)
}

// IssuerDomainNames returns the issuer domain names the CA offers for
// the record, validated against the draft's bounds.
func (c *DNSPersist01Challenge) IssuerDomainNames() ([]string, error) {
	v, err := c.GetJSON()
	if err != nil {
		return nil, err
	}
	names, err := v.Get("issuer-domain-names").AsStringArray()
	if err != nil {
		return nil, err
	}
	if len(names) < minIssuerDomainNames || len(names) > maxIssuerDomainNames {
		return nil, protocolErrorf("$.issuer-domain-names",
			"got %d names, want %d..%d", len(names), minIssuerDomainNames, maxIssuerDomainNames)
	}
	for i, n := range names {
		if len(n) > maxIssuerDomainLen {
			return nil, protocolErrorf(fmt.Sprintf("$.issuer-domain-names[%d]", i),
				"name exceeds %d characters", maxIssuerDomainLen)
		}
	}
	return names, nil
}

// Record starts building the TXT RDATA for this challenge. The issuer
// defaults to the first offered name; quoting defaults to on.
func (c *DNSPersist01Challenge) Record() (*PersistRecord, error) {
	names, err := c.IssuerDomainNames()
	if err != nil {
		return nil, err
	}
	return &PersistRecord{
		offered:    names,
		issuer:     names[0],
		accountURL: c.login.AccountURL().String(),
		quoted:     true,
	}, nil
}

// PersistRecord assembles the dns-persist-01 TXT RDATA from its
// parts: the issuer domain name, the account URI, and the optional
// wildcard policy and persistence deadline.
type PersistRecord struct {
	offered      []string
	issuer       string
	accountURL   string
	wildcard     bool
	persistUntil int64
	hasPersist   bool
	quoted       bool
}

// IssuerDomainName selects the issuer name to publish. It must be one
// of the names the CA offered.
func (r *PersistRecord) IssuerDomainName(name string) *PersistRecord {
	r.issuer = name
	return r
}

// Wildcard marks the record as authorizing wildcard issuance.
func (r *PersistRecord) Wildcard() *PersistRecord {
	r.wildcard = true
	return r
}

// PersistUntil bounds the record's validity to the given epoch second.
func (r *PersistRecord) PersistUntil(epochSeconds int64) *PersistRecord {
	r.persistUntil = epochSeconds
	r.hasPersist = true
	return r
}

// NoQuotes emits the RDATA as a single unquoted string instead of the
// split quoted form.
func (r *PersistRecord) NoQuotes() *PersistRecord {
	r.quoted = false
	return r
}

// Build renders the RDATA string.
func (r *PersistRecord) Build() (string, error) {
	selected := false
	for _, n := range r.offered {
		if n == r.issuer {
			selected = true
			break
		}
	}
	if !selected {
		return "", protocolErrorf("$.issuer-domain-names",
			"issuer %q is not among the offered names", r.issuer)
	}

	parts := []string{r.issuer, "accounturi=" + r.accountURL}
	if r.wildcard {
		parts = append(parts, "policy=wildcard")
	}
	if r.hasPersist {
		parts = append(parts, "persistUntil="+strconv.FormatInt(r.persistUntil, 10))
	}

	if !r.quoted {
		return strings.Join(parts, "; "), nil
	}
	// In the quoted form the RDATA is split into multiple character
	// strings: each part ends with a semicolon-terminated string and
	// the following strings carry a leading space.
	return `"` + strings.Join(parts, `;" " `) + `"`, nil
}
