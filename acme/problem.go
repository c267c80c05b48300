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
	"net/url"
)

// Well-known RFC 8555 problem type URIs, all in the
// "urn:ietf:params:acme:error:" namespace.
const (
	ProblemBadNonce            = "urn:ietf:params:acme:error:badNonce"
	ProblemBadCSR              = "urn:ietf:params:acme:error:badCSR"
	ProblemRateLimited         = "urn:ietf:params:acme:error:rateLimited"
	ProblemUserActionRequired  = "urn:ietf:params:acme:error:userActionRequired"
	ProblemUnsupportedIdentifier = "urn:ietf:params:acme:error:unsupportedIdentifier"
	ProblemMalformed           = "urn:ietf:params:acme:error:malformed"
	ProblemUnauthorized        = "urn:ietf:params:acme:error:unauthorized"
	ProblemConnection          = "urn:ietf:params:acme:error:connection"
	ProblemDNS                 = "urn:ietf:params:acme:error:dns"
	ProblemServerInternal      = "urn:ietf:params:acme:error:serverInternal"
)

// Identifier is an RFC 8555 identifier, e.g. {"type":"dns","value":"example.com"}.
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Problem is an RFC 7807 problem document as specialized by RFC 8555.
type Problem struct {
	Type        string       `json:"type"`
	Title       string       `json:"title,omitempty"`
	Detail      string       `json:"detail,omitempty"`
	Status      int          `json:"status,omitempty"`
	Instance    string       `json:"instance,omitempty"`
	Identifier  *Identifier  `json:"identifier,omitempty"`
	Subproblems []Problem    `json:"subproblems,omitempty"`

	// baseURL is the request URL this problem was returned for;
	// InstanceURL resolves a relative instance against it.
	baseURL *url.URL
}

func (p Problem) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Type, p.Detail)
	}
	return p.Type
}

// InstanceURL resolves Instance against the request's base URL, per
// RFC 7807's relative-URI allowance.
func (p Problem) InstanceURL() (*url.URL, error) {
	if p.Instance == "" {
		return nil, nil
	}
	u, err := url.Parse(p.Instance)
	if err != nil {
		return nil, fmt.Errorf("problem instance: %w", err)
	}
	if p.baseURL != nil {
		u = p.baseURL.ResolveReference(u)
	}
	return u, nil
}
