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
	"crypto"
	"errors"
	"net/url"
)

// Login binds an account location URL to its signing key pair within a
// Session. It is the credential handle every authenticated resource
// operation goes through, and is immutable after creation.
type Login struct {
	session    *Session
	accountURL *url.URL
	key        crypto.Signer
}

// NewLogin resumes an existing account: accountURL is the Location the
// CA returned at registration, key the account key pair. No network
// traffic happens here; the binding is checked on first use.
func NewLogin(session *Session, accountURL *url.URL, key crypto.Signer) (*Login, error) {
	if session == nil {
		return nil, errors.New("acme: login requires a session")
	}
	if accountURL == nil {
		return nil, errors.New("acme: login requires the account location URL")
	}
	if key == nil {
		return nil, errors.New("acme: login requires the account key pair")
	}
	return &Login{session: session, accountURL: accountURL, key: key}, nil
}

// Session returns the session this login belongs to.
func (l *Login) Session() *Session { return l.session }

// AccountURL returns the account's location URL, the "kid" used in
// signed requests.
func (l *Login) AccountURL() *url.URL { return l.accountURL }

// Key returns the account's signing key pair.
func (l *Login) Key() crypto.Signer { return l.key }

// Account returns a handle to the account resource. The JSON is
// hydrated lazily on first accessor use.
func (l *Login) Account() *Account {
	return bindAccount(l, l.accountURL)
}

// BindOrder returns a handle to an existing order by its location URL.
func (l *Login) BindOrder(location *url.URL) *Order {
	return bindOrder(l, location)
}

// BindAuthorization returns a handle to an existing authorization by
// its location URL.
func (l *Login) BindAuthorization(location *url.URL) *Authorization {
	return bindAuthorization(l, location)
}

// BindCertificate returns a handle to an issued certificate by its
// location URL.
func (l *Login) BindCertificate(location *url.URL) *Certificate {
	return bindCertificate(l, location)
}
