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

// dns01Label is the owner-name prefix for dns-01 TXT records.
const dns01Label = "_acme-challenge"

// DNS01Challenge is the dns-01 challenge: a TXT record at
// _acme-challenge.<domain>. holding the base64url SHA-256 digest of
// the key authorization.
type DNS01Challenge struct {
	*Challenge
}

// Digest returns the TXT record value to publish.
func (c *DNS01Challenge) Digest() (string, error) {
	ka, err := c.KeyAuthorization()
	if err != nil {
		return "", err
	}
	return dns01Digest(ka), nil
}

// RRName returns the fully-qualified TXT owner name for domain.
func (c *DNS01Challenge) RRName(domain string) (string, error) {
	return rrName(domain, dns01Label)
}
