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
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// toACE normalizes a possibly-internationalized domain name to its
// ASCII-compatible encoding, the form identifiers carry on the wire.
// A leading wildcard label passes through untouched.
func toACE(domain string) (string, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	wildcard := false
	if strings.HasPrefix(domain, "*.") {
		wildcard = true
		domain = domain[2:]
	}
	ace, err := idna.ToASCII(domain)
	if err != nil {
		return "", protocolErrorf("", "invalid domain %q: %v", domain, err)
	}
	if wildcard {
		ace = "*." + ace
	}
	return ace, nil
}

// rrName builds a fully-qualified record owner name by prefixing the
// given labels onto the ACE form of domain.
func rrName(domain string, labels ...string) (string, error) {
	ace, err := toACE(domain)
	if err != nil {
		return "", err
	}
	return dns.Fqdn(strings.Join(append(labels, ace), ".")), nil
}
