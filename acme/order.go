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
	"encoding/base64"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// Order is the ACME order resource: the CA-side state machine that
// walks a certificate request from pending through authorization and
// finalization to issuance.
type Order struct {
	jsonResource
}

func bindOrder(login *Login, location *url.URL) *Order {
	o := &Order{}
	o.init(login, location, "order")
	return o
}

// Identifiers returns the identifiers this order covers.
func (o *Order) Identifiers() ([]Identifier, error) {
	v, err := o.GetJSON()
	if err != nil {
		return nil, err
	}
	arr, err := v.Get("identifiers").AsArray()
	if err != nil {
		return nil, err
	}
	out := make([]Identifier, len(arr))
	for i, e := range arr {
		id, err := e.AsIdentifier()
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// Expires returns when the CA forgets an unfinished order.
func (o *Order) Expires() (time.Time, error) {
	v, err := o.GetJSON()
	if err != nil {
		return time.Time{}, err
	}
	return Map(v.Get("expires"), Value.AsInstant)
}

// NotBefore returns the requested certificate notBefore, when one was
// set on the order.
func (o *Order) NotBefore() (time.Time, error) {
	v, err := o.GetJSON()
	if err != nil {
		return time.Time{}, err
	}
	return Map(v.Get("notBefore"), Value.AsInstant)
}

// NotAfter returns the requested certificate notAfter, when one was
// set on the order.
func (o *Order) NotAfter() (time.Time, error) {
	v, err := o.GetJSON()
	if err != nil {
		return time.Time{}, err
	}
	return Map(v.Get("notAfter"), Value.AsInstant)
}

// Profile returns the certificate profile the order was placed under,
// when the CA supports profile selection.
func (o *Order) Profile() (string, error) {
	v, err := o.GetJSON()
	if err != nil {
		return "", err
	}
	return Map(v.Get("profile"), Value.AsString)
}

// Error returns the problem document the CA attached to a failed
// order, if any.
func (o *Order) Error() (*Problem, error) {
	v, err := o.GetJSON()
	if err != nil {
		return nil, err
	}
	e := v.Get("error")
	if !e.IsPresent() {
		return nil, nil
	}
	p, err := e.AsProblem(o.location)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Authorizations returns handles to the order's authorizations. The
// handles are unhydrated; accessors fetch them on demand, or use
// FetchAuthorizations to hydrate them all up front.
func (o *Order) Authorizations() ([]*Authorization, error) {
	v, err := o.GetJSON()
	if err != nil {
		return nil, err
	}
	urls, err := v.Get("authorizations").AsStringArray()
	if err != nil {
		return nil, err
	}
	out := make([]*Authorization, len(urls))
	for i, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, protocolErrorf("$.authorizations", "invalid URL %q: %v", raw, err)
		}
		out[i] = bindAuthorization(o.login, u)
	}
	return out, nil
}

// FetchAuthorizations returns the order's authorizations with their
// documents hydrated, fetching them concurrently.
func (o *Order) FetchAuthorizations(ctx context.Context) ([]*Authorization, error) {
	auths, err := o.Authorizations()
	if err != nil {
		return nil, err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, auth := range auths {
		auth := auth
		g.Go(func() error {
			_, err := auth.Fetch(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return auths, nil
}

// finalizeURL returns the order's finalize endpoint.
func (o *Order) finalizeURL() (*url.URL, error) {
	v, err := o.GetJSON()
	if err != nil {
		return nil, err
	}
	return v.Get("finalize").AsURL()
}

// CertificateLocation returns the URL the issued certificate can be
// downloaded from. It is only present once the order is valid.
func (o *Order) CertificateLocation() (*url.URL, error) {
	v, err := o.GetJSON()
	if err != nil {
		return nil, err
	}
	return v.Get("certificate").AsURL()
}

// Execute finalizes the order with the DER-encoded PKCS#10 csr. The
// order moves to processing; use WaitForCompletion to reach a terminal
// state, then GetCertificate.
func (o *Order) Execute(ctx context.Context, csr []byte) error {
	finalize, err := o.finalizeURL()
	if err != nil {
		return err
	}

	conn := o.Session().connect()
	defer conn.Close()
	payload := NewBuilder().Str("csr", base64.RawURLEncoding.EncodeToString(csr))
	if err := conn.SignedRequest(ctx, finalize.String(), payload, o.login); err != nil {
		return err
	}
	if v, err := conn.ReadJSONResponse(); err == nil {
		o.setJSON(v)
	}
	return nil
}

// WaitUntilReady polls until every authorization is satisfied and the
// order can be finalized, or it failed.
func (o *Order) WaitUntilReady(ctx context.Context, timeout time.Duration) (Status, error) {
	return o.WaitForStatus(ctx, timeout, StatusReady, StatusInvalid)
}

// WaitForCompletion polls a finalized order to issuance or failure.
func (o *Order) WaitForCompletion(ctx context.Context, timeout time.Duration) (Status, error) {
	return o.WaitForStatus(ctx, timeout, StatusValid, StatusInvalid)
}

// GetCertificate returns the handle for the issued certificate. The
// order must have reached valid.
func (o *Order) GetCertificate() (*Certificate, error) {
	loc, err := o.CertificateLocation()
	if err != nil {
		return nil, err
	}
	return bindCertificate(o.login, loc), nil
}
