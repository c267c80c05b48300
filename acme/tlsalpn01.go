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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"strings"
	"time"
)

// ALPNProtocol is the application-layer protocol name the validation
// certificate must be negotiated under (RFC 8737 §4).
const ALPNProtocol = "acme-tls/1"

// TLSALPN01Challenge is the tls-alpn-01 challenge: the identifier must
// present a self-signed certificate carrying the acmeValidation
// extension during a TLS handshake negotiated under acme-tls/1.
type TLSALPN01Challenge struct {
	*Challenge
}

// Extension returns the critical acmeValidation extension to embed in
// the validation certificate.
func (c *TLSALPN01Challenge) Extension() (pkix.Extension, error) {
	ka, err := c.KeyAuthorization()
	if err != nil {
		return pkix.Extension{}, err
	}
	return TLSALPNExtension(ka)
}

// CreateValidationCertificate builds the complete self-signed
// validation certificate for identifier, ready to serve under the
// acme-tls/1 protocol. The certificate is short-lived; its key pair is
// generated fresh and discarded with it.
func (c *TLSALPN01Challenge) CreateValidationCertificate(identifier string) (tls.Certificate, error) {
	ext, err := c.Extension()
	if err != nil {
		return tls.Certificate{}, err
	}

	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("acme: generating validation key: %v", err)
	}

	notBefore := time.Now()
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("acme: generating serial number: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:    serialNumber,
		Subject:         pkix.Name{CommonName: identifier},
		NotBefore:       notBefore,
		NotAfter:        notBefore.Add(24 * time.Hour),
		KeyUsage:        x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		ExtraExtensions: []pkix.Extension{ext},
	}
	if ip := net.ParseIP(identifier); ip != nil {
		tmpl.IPAddresses = []net.IP{ip}
	} else {
		tmpl.DNSNames = []string{strings.ToLower(identifier)}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &privKey.PublicKey, privKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("acme: creating validation certificate: %v", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{derBytes},
		PrivateKey:  privKey,
	}, nil
}
