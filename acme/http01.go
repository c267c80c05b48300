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

// wellKnownPrefix is where RFC 8555 §8.3 requires the http-01 response
// to be served.
const wellKnownPrefix = "/.well-known/acme-challenge/"

// HTTP01Challenge is the http-01 challenge: the key authorization must
// be served as text/plain at the token's well-known path on port 80 of
// the identifier.
type HTTP01Challenge struct {
	*Challenge
}

// WellKnownPath returns the URL path the key authorization must be
// reachable under.
func (c *HTTP01Challenge) WellKnownPath() (string, error) {
	token, err := c.Token()
	if err != nil {
		return "", err
	}
	return wellKnownPrefix + token, nil
}
