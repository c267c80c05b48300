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
	"encoding/json"
	"errors"
)

// AccountBuilder materializes a newAccount request: contacts, terms
// agreement, only-return-existing lookups, and the optional external
// account binding.
type AccountBuilder struct {
	contacts     []string
	agreeTOS     bool
	onlyExisting bool
	eabKeyID     string
	eabHMACKey   []byte
}

// NewAccountBuilder returns an empty account builder.
func NewAccountBuilder() *AccountBuilder {
	return &AccountBuilder{}
}

// AddContact appends a contact URL (e.g. "mailto:ops@example.com").
func (b *AccountBuilder) AddContact(contact string) *AccountBuilder {
	b.contacts = append(b.contacts, contact)
	return b
}

// AddEmail appends an email contact.
func (b *AccountBuilder) AddEmail(email string) *AccountBuilder {
	return b.AddContact("mailto:" + email)
}

// AgreeToTermsOfService asserts agreement to the CA's terms of
// service. Most CAs reject registration without it.
func (b *AccountBuilder) AgreeToTermsOfService() *AccountBuilder {
	b.agreeTOS = true
	return b
}

// OnlyExisting turns the request into a lookup: the CA returns the
// account already registered for the key, or an error when there is
// none, and never creates one.
func (b *AccountBuilder) OnlyExisting() *AccountBuilder {
	b.onlyExisting = true
	return b
}

// WithExternalAccountBinding attaches the CA-issued key identifier and
// MAC key that tie the new ACME account to an external account
// (RFC 8555 §7.3.4). Required when the directory meta announces
// externalAccountRequired.
func (b *AccountBuilder) WithExternalAccountBinding(keyID string, hmacKey []byte) *AccountBuilder {
	b.eabKeyID = keyID
	b.eabHMACKey = hmacKey
	return b
}

// Create sends the newAccount request signed with key in the jwk form
// and returns the account handle, whose login is bound to the Location
// the CA assigned.
func (b *AccountBuilder) Create(ctx context.Context, session *Session, key crypto.Signer) (*Account, error) {
	if key == nil {
		return nil, errors.New("acme: account creation requires a key pair")
	}
	newAccountURL, err := session.resourceURL(ctx, resourceNewAccount)
	if err != nil {
		return nil, err
	}

	payload := NewBuilder()
	if b.agreeTOS {
		payload.Bool("termsOfServiceAgreed", true)
	}
	if len(b.contacts) > 0 {
		payload.Raw("contact", b.contacts)
	}
	if b.onlyExisting {
		payload.Bool("onlyReturnExisting", true)
	}
	if b.eabKeyID != "" {
		eab, err := signEABJWS(b.eabHMACKey, b.eabKeyID, newAccountURL.String(), key)
		if err != nil {
			return nil, err
		}
		payload.Raw("externalAccountBinding", json.RawMessage(eab))
	}

	conn := session.connect()
	defer conn.Close()
	if err := conn.SignedRequestWithKey(ctx, newAccountURL.String(), payload, key); err != nil {
		return nil, err
	}
	loc, err := conn.Location()
	if err != nil {
		return nil, err
	}

	login, err := NewLogin(session, loc, key)
	if err != nil {
		return nil, err
	}
	account := bindAccount(login, loc)
	if v, err := conn.ReadJSONResponse(); err == nil {
		account.setJSON(v)
	}
	return account, nil
}
