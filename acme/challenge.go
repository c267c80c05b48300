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
	"time"
)

// Challenge type strings.
const (
	TypeHTTP01       = "http-01"
	TypeDNS01        = "dns-01"
	TypeDNSAccount01 = "dns-account-01"
	TypeDNSPersist01 = "dns-persist-01"
	TypeTLSALPN01    = "tls-alpn-01"
	TypeEmailReply00 = "email-reply-00"
)

// TypedChallenge is any challenge variant. Concrete variants embed the
// generic *Challenge and add their type-specific derivations; Base
// recovers the generic handle.
type TypedChallenge interface {
	Base() *Challenge
}

// Challenge is the generic ACME challenge resource. CA-specific types
// without a registered constructor surface as a bare *Challenge, with
// the raw JSON reachable through GetJSON.
type Challenge struct {
	jsonResource
}

// Base returns the challenge itself, making *Challenge its own typed
// variant.
func (c *Challenge) Base() *Challenge { return c }

// Type returns the challenge's type string.
func (c *Challenge) Type() (string, error) {
	v, err := c.GetJSON()
	if err != nil {
		return "", err
	}
	return v.Get("type").AsString()
}

// Token returns the challenge token. Not every type carries one.
func (c *Challenge) Token() (string, error) {
	v, err := c.GetJSON()
	if err != nil {
		return "", err
	}
	return v.Get("token").AsString()
}

// Validated returns when the CA validated the challenge; the zero time
// while it has not.
func (c *Challenge) Validated() (time.Time, error) {
	v, err := c.GetJSON()
	if err != nil {
		return time.Time{}, err
	}
	return Map(v.Get("validated"), Value.AsInstant)
}

// Error returns the problem document the CA attached to a failed
// validation, if any.
func (c *Challenge) Error() (*Problem, error) {
	v, err := c.GetJSON()
	if err != nil {
		return nil, err
	}
	e := v.Get("error")
	if !e.IsPresent() {
		return nil, nil
	}
	p, err := e.AsProblem(c.location)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// KeyAuthorization returns the key authorization string for the
// challenge token under the login's account key.
func (c *Challenge) KeyAuthorization() (string, error) {
	token, err := c.Token()
	if err != nil {
		return "", err
	}
	return keyAuthorization(c.login.Key(), token)
}

// Trigger tells the CA the challenge response is in place and
// validation may start. Most types send an empty response object;
// variants that must send fields (email-reply-00) define their own
// Trigger, which passes that payload to trigger.
func (c *Challenge) Trigger(ctx context.Context) error {
	return c.trigger(ctx, NewBuilder())
}

func (c *Challenge) trigger(ctx context.Context, payload *Builder) error {
	conn := c.Session().connect()
	defer conn.Close()
	if err := conn.SignedRequest(ctx, c.location.String(), payload, c.login); err != nil {
		return err
	}
	if v, err := conn.ReadJSONResponse(); err == nil {
		c.setJSON(v)
	}
	return nil
}

// WaitForCompletion polls the challenge to a terminal state.
func (c *Challenge) WaitForCompletion(ctx context.Context, timeout time.Duration) (Status, error) {
	return c.WaitForStatus(ctx, timeout, StatusValid, StatusInvalid)
}

// registerStandardChallenges preloads the registry with the challenge
// types this package implements.
func registerStandardChallenges(s *Session) {
	s.RegisterChallengeType(TypeHTTP01, func(c *Challenge) TypedChallenge {
		return &HTTP01Challenge{Challenge: c}
	})
	s.RegisterChallengeType(TypeDNS01, func(c *Challenge) TypedChallenge {
		return &DNS01Challenge{Challenge: c}
	})
	s.RegisterChallengeType(TypeDNSAccount01, func(c *Challenge) TypedChallenge {
		return &DNSAccount01Challenge{Challenge: c}
	})
	s.RegisterChallengeType(TypeDNSPersist01, func(c *Challenge) TypedChallenge {
		return &DNSPersist01Challenge{Challenge: c}
	})
	s.RegisterChallengeType(TypeTLSALPN01, func(c *Challenge) TypedChallenge {
		return &TLSALPN01Challenge{Challenge: c}
	})
	s.RegisterChallengeType(TypeEmailReply00, func(c *Challenge) TypedChallenge {
		return &EmailReply00Challenge{Challenge: c}
	})
}
