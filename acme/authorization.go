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
	"net/url"
	"time"
)

// Authorization is the ACME authorization resource: the proof-of-
// control state for a single identifier, holding the challenges the CA
// will accept for it.
type Authorization struct {
	jsonResource
}

func bindAuthorization(login *Login, location *url.URL) *Authorization {
	a := &Authorization{}
	a.init(login, location, "authorization")
	return a
}

// Identifier returns the identifier this authorization covers.
func (a *Authorization) Identifier() (Identifier, error) {
	v, err := a.GetJSON()
	if err != nil {
		return Identifier{}, err
	}
	return v.Get("identifier").AsIdentifier()
}

// Wildcard reports whether the authorization was created for a
// wildcard domain. The identifier itself carries the base domain.
func (a *Authorization) Wildcard() (bool, error) {
	v, err := a.GetJSON()
	if err != nil {
		return false, err
	}
	return Map(v.Get("wildcard"), Value.AsBool)
}

// Expires returns when the authorization lapses.
func (a *Authorization) Expires() (time.Time, error) {
	v, err := a.GetJSON()
	if err != nil {
		return time.Time{}, err
	}
	return Map(v.Get("expires"), Value.AsInstant)
}

// Challenges returns the authorization's challenges, each wrapped into
// its registered typed variant.
func (a *Authorization) Challenges() ([]TypedChallenge, error) {
	v, err := a.GetJSON()
	if err != nil {
		return nil, err
	}
	arr, err := v.Get("challenges").AsArray()
	if err != nil {
		return nil, err
	}
	out := make([]TypedChallenge, len(arr))
	for i, e := range arr {
		ch, err := a.Session().CreateChallenge(a.login, e)
		if err != nil {
			return nil, err
		}
		out[i] = ch
	}
	return out, nil
}

// FindChallengeByType scans the challenges for the given type string.
// It returns nil when the CA offered none, and an error when the CA
// offered more than one, since the choice would be ambiguous.
func (a *Authorization) FindChallengeByType(typ string) (TypedChallenge, error) {
	challenges, err := a.Challenges()
	if err != nil {
		return nil, err
	}
	var found TypedChallenge
	for _, ch := range challenges {
		t, err := ch.Base().Type()
		if err != nil {
			return nil, err
		}
		if t != typ {
			continue
		}
		if found != nil {
			return nil, protocolErrorf("$.challenges", "multiple %s challenges", typ)
		}
		found = ch
	}
	return found, nil
}

// FindChallenge resolves a challenge of concrete type T through the
// registry, e.g. FindChallenge[*HTTP01Challenge](auth, "http-01").
// It returns the zero T when the CA offered none.
func FindChallenge[T TypedChallenge](a *Authorization, typ string) (T, error) {
	var zero T
	ch, err := a.FindChallengeByType(typ)
	if err != nil || ch == nil {
		return zero, err
	}
	typed, ok := ch.(T)
	if !ok {
		return zero, &NotSupportedError{What: "challenge " + typ + " has no registered constructor of the requested type"}
	}
	return typed, nil
}

// Deactivate relinquishes the authorization so it cannot be used for
// further issuance.
func (a *Authorization) Deactivate(ctx context.Context) error {
	conn := a.Session().connect()
	defer conn.Close()
	payload := NewBuilder().Str("status", string(StatusDeactivated))
	if err := conn.SignedRequest(ctx, a.location.String(), payload, a.login); err != nil {
		return err
	}
	if v, err := conn.ReadJSONResponse(); err == nil {
		a.setJSON(v)
	}
	return nil
}
