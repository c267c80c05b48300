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
	"crypto/sha256"
	"encoding/base32"
	"strings"
)

// DNSAccount01Challenge is the dns-account-01 challenge: like dns-01,
// but the TXT owner name carries an account-derived label so multiple
// accounts can stage validations for the same domain concurrently.
type DNSAccount01Challenge struct {
	*Challenge
}

// Digest returns the TXT record value to publish; it is identical to
// the dns-01 digest.
func (c *DNSAccount01Challenge) Digest() (string, error) {
	ka, err := c.KeyAuthorization()
	if err != nil {
		return "", err
	}
	return dns01Digest(ka), nil
}

// accountLabel derives the account-scoped owner label: an underscore
// followed by the first 10 characters of the lowercase base32 SHA-256
// of the account URL.
func (c *DNSAccount01Challenge) accountLabel() string {
	sum := sha256.Sum256([]byte(c.login.AccountURL().String()))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return "_" + strings.ToLower(enc[:10])
}

// RRName returns the fully-qualified TXT owner name for domain:
// _<account-label>._acme-challenge.<domain>.
func (c *DNSAccount01Challenge) RRName(domain string) (string, error) {
	return rrName(domain, c.accountLabel(), dns01Label)
}
