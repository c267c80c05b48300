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
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"net/url"
)

// Account is the ACME account resource. It is bound to its location
// URL; the JSON document hydrates lazily on first accessor use.
type Account struct {
	jsonResource
}

func bindAccount(login *Login, location *url.URL) *Account {
	a := &Account{}
	a.init(login, location, "account")
	return a
}

// Contacts returns the account's contact URLs.
func (a *Account) Contacts() ([]string, error) {
	v, err := a.GetJSON()
	if err != nil {
		return nil, err
	}
	return Map(v.Get("contact"), Value.AsStringArray)
}

// TermsOfServiceAgreed reports whether the account has agreed to the
// CA's terms of service.
func (a *Account) TermsOfServiceAgreed() (bool, error) {
	v, err := a.GetJSON()
	if err != nil {
		return false, err
	}
	return Map(v.Get("termsOfServiceAgreed"), Value.AsBool)
}

// OrdersLocation returns the URL of the account's orders list.
func (a *Account) OrdersLocation() (*url.URL, error) {
	v, err := a.GetJSON()
	if err != nil {
		return nil, err
	}
	return v.Get("orders").AsURL()
}

// HasExternalAccountBinding reports whether the account was created
// with an external account binding.
func (a *Account) HasExternalAccountBinding() (bool, error) {
	v, err := a.GetJSON()
	if err != nil {
		return false, err
	}
	return v.Get("externalAccountBinding").IsPresent(), nil
}

// NewOrder starts building a certificate order under this account.
func (a *Account) NewOrder() *OrderBuilder {
	return newOrderBuilder(a.login)
}

// Modify starts an account update. Call Commit on the returned updater
// to send it.
func (a *Account) Modify() *AccountUpdater {
	return &AccountUpdater{account: a}
}

// Deactivate permanently deactivates the account. The CA rejects all
// further requests signed with its key.
func (a *Account) Deactivate(ctx context.Context) error {
	payload := NewBuilder().Str("status", string(StatusDeactivated))
	return a.post(ctx, a.location.String(), payload)
}

// PreAuthorize asks the CA for an authorization for identifier ahead
// of any order, via the optional newAuthz endpoint. CAs that do not
// offer pre-authorization yield *NotSupportedError.
func (a *Account) PreAuthorize(ctx context.Context, identifier Identifier) (*Authorization, error) {
	authzURL, err := a.Session().resourceURL(ctx, resourceNewAuthz)
	if err != nil {
		return nil, err
	}

	conn := a.Session().connect()
	defer conn.Close()
	payload := NewBuilder().Raw("identifier", identifier)
	if err := conn.SignedRequest(ctx, authzURL.String(), payload, a.login); err != nil {
		return nil, err
	}
	loc, err := conn.Location()
	if err != nil {
		return nil, err
	}
	v, err := conn.ReadJSONResponse()
	if err != nil {
		return nil, err
	}
	auth := bindAuthorization(a.login, loc)
	auth.setJSON(v)
	return auth, nil
}

// PreAuthorizeDomain is PreAuthorize for a DNS identifier, with the
// domain normalized to its ASCII-compatible encoding.
func (a *Account) PreAuthorizeDomain(ctx context.Context, domain string) (*Authorization, error) {
	ace, err := toACE(domain)
	if err != nil {
		return nil, err
	}
	return a.PreAuthorize(ctx, Identifier{Type: "dns", Value: ace})
}

// KeyChange rolls the account over to newKey (RFC 8555 §7.3.5): an
// inner JWS signed with the new key is wrapped in an outer JWS signed
// with the current key. On success it returns a fresh Login bound to
// newKey; the old login must not be used afterward.
func (a *Account) KeyChange(ctx context.Context, newKey crypto.Signer) (*Login, error) {
	keyChangeURL, err := a.Session().resourceURL(ctx, resourceKeyChange)
	if err != nil {
		return nil, err
	}

	oldJWK, err := jwkOf(a.login.Key()).MarshalJSON()
	if err != nil {
		return nil, err
	}
	inner := NewBuilder().
		Str("account", a.location.String()).
		Raw("oldKey", json.RawMessage(oldJWK))
	innerPayload, err := inner.Bytes()
	if err != nil {
		return nil, err
	}
	innerJWS, err := signInnerJWS(newKey, keyChangeURL.String(), innerPayload)
	if err != nil {
		return nil, err
	}

	conn := a.Session().connect()
	defer conn.Close()
	if err := conn.SignedRawRequest(ctx, keyChangeURL.String(), innerJWS, a.login); err != nil {
		return nil, err
	}

	a.Invalidate()
	return NewLogin(a.Session(), a.location, newKey)
}

// RevokeCertificate revokes cert under this account's authority.
// reason is one of the RFC 5280 CRLReason codes; pass ReasonUnspecified
// to omit it.
func (a *Account) RevokeCertificate(ctx context.Context, cert *x509.Certificate, reason RevocationReason) error {
	revokeURL, err := a.Session().resourceURL(ctx, resourceRevokeCert)
	if err != nil {
		return err
	}
	payload := NewBuilder().
		Str("certificate", base64.RawURLEncoding.EncodeToString(cert.Raw))
	if reason != ReasonUnspecified {
		payload.Int("reason", int64(reason))
	}
	return a.post(ctx, revokeURL.String(), payload)
}

// post sends a kid-form signed request and, when rawURL is the account
// URL and the response carries a JSON body, stores it as the account's
// new document.
func (a *Account) post(ctx context.Context, rawURL string, payload *Builder) error {
	conn := a.Session().connect()
	defer conn.Close()
	if err := conn.SignedRequest(ctx, rawURL, payload, a.login); err != nil {
		return err
	}
	if v, err := conn.ReadJSONResponse(); err == nil && rawURL == a.location.String() {
		a.setJSON(v)
	}
	return nil
}

// AccountUpdater stages changes to an existing account and sends them
// with Commit.
type AccountUpdater struct {
	account  *Account
	contacts []string
	agreeTOS bool
}

// AddContact appends a contact URL (e.g. "mailto:ops@example.com").
func (u *AccountUpdater) AddContact(contact string) *AccountUpdater {
	u.contacts = append(u.contacts, contact)
	return u
}

// AddEmail appends an email contact.
func (u *AccountUpdater) AddEmail(email string) *AccountUpdater {
	return u.AddContact("mailto:" + email)
}

// AgreeToTermsOfService records agreement to the CA's current terms.
func (u *AccountUpdater) AgreeToTermsOfService() *AccountUpdater {
	u.agreeTOS = true
	return u
}

// Commit sends the staged update to the account URL and refreshes the
// local document from the response.
func (u *AccountUpdater) Commit(ctx context.Context) error {
	payload := NewBuilder()
	if len(u.contacts) > 0 {
		payload.Raw("contact", u.contacts)
	}
	if u.agreeTOS {
		payload.Bool("termsOfServiceAgreed", true)
	}
	return u.account.post(ctx, u.account.location.String(), payload)
}
