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
	"context"
	"fmt"
	"time"
)

// OrderBuilder materializes a newOrder request: identifiers, validity
// hints, and an optional certificate profile.
type OrderBuilder struct {
	login       *Login
	identifiers []Identifier
	notBefore   time.Time
	notAfter    time.Time
	profile     string
	err         error
}

func newOrderBuilder(login *Login) *OrderBuilder {
	return &OrderBuilder{login: login}
}

// AddIdentifier appends an identifier to the order.
func (b *OrderBuilder) AddIdentifier(id Identifier) *OrderBuilder {
	b.identifiers = append(b.identifiers, id)
	return b
}

// AddDomain appends a DNS identifier, normalizing the domain to its
// ASCII-compatible encoding.
func (b *OrderBuilder) AddDomain(domain string) *OrderBuilder {
	ace, err := toACE(domain)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	return b.AddIdentifier(Identifier{Type: "dns", Value: ace})
}

// AddDomains appends multiple DNS identifiers.
func (b *OrderBuilder) AddDomains(domains ...string) *OrderBuilder {
	for _, d := range domains {
		b.AddDomain(d)
	}
	return b
}

// NotBefore requests the earliest certificate validity instant.
func (b *OrderBuilder) NotBefore(t time.Time) *OrderBuilder {
	b.notBefore = t
	return b
}

// NotAfter requests the latest certificate validity instant.
func (b *OrderBuilder) NotAfter(t time.Time) *OrderBuilder {
	b.notAfter = t
	return b
}

// WithProfile selects a certificate profile by name. The name is
// validated against the directory's meta.profiles at Create time when
// the CA advertises one.
func (b *OrderBuilder) WithProfile(name string) *OrderBuilder {
	b.profile = name
	return b
}

// Create sends the newOrder request and returns the order handle bound
// to the Location the CA assigned.
func (b *OrderBuilder) Create(ctx context.Context) (*Order, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.identifiers) == 0 {
		return nil, fmt.Errorf("acme: order requires at least one identifier")
	}
	session := b.login.Session()
	newOrderURL, err := session.resourceURL(ctx, resourceNewOrder)
	if err != nil {
		return nil, err
	}

	if b.profile != "" {
		profiles, err := session.Profiles(ctx)
		if err != nil {
			return nil, err
		}
		if profiles != nil {
			if _, ok := profiles[b.profile]; !ok {
				return nil, &NotSupportedError{What: "certificate profile " + b.profile}
			}
		}
	}

	payload := NewBuilder().Raw("identifiers", b.identifiers)
	if !b.notBefore.IsZero() {
		payload.Str("notBefore", b.notBefore.UTC().Format(time.RFC3339))
	}
	if !b.notAfter.IsZero() {
		payload.Str("notAfter", b.notAfter.UTC().Format(time.RFC3339))
	}
	if b.profile != "" {
		payload.Str("profile", b.profile)
	}

	conn := session.connect()
	defer conn.Close()
	if err := conn.SignedRequest(ctx, newOrderURL.String(), payload, b.login); err != nil {
		return nil, err
	}
	loc, err := conn.Location()
	if err != nil {
		return nil, err
	}
	order := bindOrder(b.login, loc)
	if v, err := conn.ReadJSONResponse(); err == nil {
		order.setJSON(v)
	}
	return order, nil
}
