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
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// acmeValidationOID is the TLS-ALPN-01 extension OID from RFC 8737 §3.
var acmeValidationOID = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 31}

// dns01Digest computes the dns-01 TXT record value: unpadded
// base64url of SHA-256(keyAuthorization) (RFC 8555 §8.4).
func dns01Digest(keyAuthorization string) string {
	sum := sha256.Sum256([]byte(keyAuthorization))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// tlsALPNExtensionValue builds the DER bytes of the TLS-ALPN-01
// acmeValidation extension's extnValue: a DER OCTET STRING wrapping
// SHA-256(keyAuthorization), per RFC 8737 §3.
func tlsALPNExtensionValue(keyAuthorization string) ([]byte, error) {
	sum := sha256.Sum256([]byte(keyAuthorization))

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.OCTET_STRING, func(child *cryptobyte.Builder) {
		child.AddBytes(sum[:])
	})
	return b.Bytes()
}

// TLSALPNExtension returns the complete, critical pkix.Extension for a
// tls-alpn-01 self-signed validation certificate.
func TLSALPNExtension(keyAuthorization string) (pkix.Extension, error) {
	val, err := tlsALPNExtensionValue(keyAuthorization)
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("acme: building acmeValidation extension: %w", err)
	}
	return pkix.Extension{
		Id:       acmeValidationOID,
		Critical: true,
		Value:    val,
	}, nil
}

// BuildCSR builds a DER-encoded PKCS#10 certificate signing request for
// identifiers, signed by key. The first identifier also becomes the
// Subject CommonName; all identifiers, the first included, are listed
// in the Subject Alternative Name extension.
func BuildCSR(key crypto.Signer, identifiers []string) ([]byte, error) {
	if len(identifiers) == 0 {
		return nil, fmt.Errorf("acme: CSR requires at least one identifier")
	}
	tmpl := &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: identifiers[0]},
		DNSNames: identifiers,
	}
	return x509.CreateCertificateRequest(rand.Reader, tmpl, key)
}

// DecodeCertificateChain splits a PEM stream into an ordered,
// leaf-first list of parsed certificates. Any number of blocks >= 1 is
// accepted; extra whitespace between blocks is tolerated.
func DecodeCertificateChain(pemBytes []byte) ([]*x509.Certificate, error) {
	var chain []*x509.Certificate
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("acme: parsing certificate chain: %w", err)
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("acme: no certificates found in PEM stream")
	}
	return chain, nil
}

// EncodeCertificateChain re-serializes chain back to a leaf-first PEM
// stream, the inverse of DecodeCertificateChain.
func EncodeCertificateChain(chain []*x509.Certificate) []byte {
	var out []byte
	for _, cert := range chain {
		out = append(out, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		})...)
	}
	return out
}
