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
	"io"
	"net/url"
	"sync"
)

// RevocationReason is an RFC 5280 CRLReason code.
type RevocationReason int

const (
	ReasonUnspecified          RevocationReason = 0
	ReasonKeyCompromise        RevocationReason = 1
	ReasonCACompromise         RevocationReason = 2
	ReasonAffiliationChanged   RevocationReason = 3
	ReasonSuperseded           RevocationReason = 4
	ReasonCessationOfOperation RevocationReason = 5
	ReasonCertificateHold      RevocationReason = 6
	ReasonRemoveFromCRL        RevocationReason = 8
	ReasonPrivilegeWithdrawn   RevocationReason = 9
	ReasonAACompromise         RevocationReason = 10
)

// Certificate is the issued-certificate resource: the leaf-first chain
// downloadable from the order's certificate URL, plus any alternate
// chains the CA advertised via Link rel="alternate".
type Certificate struct {
	resource

	mu         sync.Mutex
	chain      []*x509.Certificate
	alternates []*url.URL
}

func bindCertificate(login *Login, location *url.URL) *Certificate {
	return &Certificate{resource: resource{login: login, location: location}}
}

// Download fetches the PEM chain. It is called implicitly by the chain
// accessors; calling it again after success is a no-op.
func (c *Certificate) Download(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloadLocked(ctx)
}

func (c *Certificate) downloadLocked(ctx context.Context) error {
	if c.chain != nil {
		return nil
	}

	conn := c.Session().connect()
	defer conn.Close()
	if err := conn.PostAsGetChain(ctx, c.location.String(), c.login); err != nil {
		return err
	}
	chain, err := conn.ReadCertificates()
	if err != nil {
		return err
	}

	var alternates []*url.URL
	for _, raw := range conn.Links("alternate") {
		if u, err := url.Parse(raw); err == nil {
			alternates = append(alternates, u)
		}
	}
	c.chain = chain
	c.alternates = alternates
	return nil
}

func (c *Certificate) hydrated(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.downloadLocked(ctx); err != nil {
		return &LazyLoadingError{
			Resource: "certificate",
			Location: c.location.String(),
			Err:      err,
		}
	}
	return nil
}

// GetCertificate returns the leaf certificate.
func (c *Certificate) GetCertificate() (*x509.Certificate, error) {
	if err := c.hydrated(context.Background()); err != nil {
		return nil, err
	}
	return c.chain[0], nil
}

// GetCertificateChain returns the full chain, leaf first.
func (c *Certificate) GetCertificateChain() ([]*x509.Certificate, error) {
	if err := c.hydrated(context.Background()); err != nil {
		return nil, err
	}
	return c.chain, nil
}

// GetAlternates returns the locations of the CA's alternate chains,
// e.g. one anchored to a different root.
func (c *Certificate) GetAlternates() ([]*url.URL, error) {
	if err := c.hydrated(context.Background()); err != nil {
		return nil, err
	}
	return c.alternates, nil
}

// BindAlternate returns a handle for an alternate chain location.
func (c *Certificate) BindAlternate(location *url.URL) *Certificate {
	return bindCertificate(c.login, location)
}

// WriteCertificate writes the chain to w as leaf-first PEM.
func (c *Certificate) WriteCertificate(w io.Writer) error {
	chain, err := c.GetCertificateChain()
	if err != nil {
		return err
	}
	_, err = w.Write(EncodeCertificateChain(chain))
	return err
}

// Revoke revokes the certificate under the owning account's authority.
func (c *Certificate) Revoke(ctx context.Context, reason RevocationReason) error {
	leaf, err := c.GetCertificate()
	if err != nil {
		return err
	}
	return c.login.Account().RevokeCertificate(ctx, leaf, reason)
}

// RevokeCertificateByKey revokes cert by proving possession of its
// private key instead of an account key (RFC 8555 §7.6): the request
// is signed with domainKey in the jwk form, so no login is needed.
func RevokeCertificateByKey(ctx context.Context, session *Session, domainKey crypto.Signer, cert *x509.Certificate, reason RevocationReason) error {
	revokeURL, err := session.resourceURL(ctx, resourceRevokeCert)
	if err != nil {
		return err
	}
	payload := NewBuilder().
		Str("certificate", base64.RawURLEncoding.EncodeToString(cert.Raw))
	if reason != ReasonUnspecified {
		payload.Int("reason", int64(reason))
	}
	conn := session.connect()
	defer conn.Close()
	return conn.SignedRequestWithKey(ctx, revokeURL.String(), payload, domainKey)
}
