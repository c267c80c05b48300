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
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// signingAlgorithm derives the JWS alg for a private key:
// RSA -> RS256, EC P-256 -> ES256, EC P-384 -> ES384, Ed25519 -> EdDSA.
func signingAlgorithm(key crypto.Signer) (jose.SignatureAlgorithm, error) {
	switch k := key.Public().(type) {
	case *rsa.PublicKey:
		return jose.RS256, nil
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			return jose.ES256, nil
		case elliptic.P384():
			return jose.ES384, nil
		default:
			return "", fmt.Errorf("acme: unsupported EC curve %s", k.Curve.Params().Name)
		}
	case ed25519.PublicKey:
		return jose.EdDSA, nil
	default:
		return "", fmt.Errorf("acme: unsupported key type %T", key)
	}
}

// jwkOf returns the JSON Web Key for the public half of key.
func jwkOf(key crypto.Signer) jose.JSONWebKey {
	return jose.JSONWebKey{Key: key.Public()}
}

// jwkThumbprint computes the RFC 7638 thumbprint of key's public JWK:
// SHA-256 over the canonical JSON of its required members in lexical
// order, base64url-unpadded.
func jwkThumbprint(key crypto.Signer) (string, error) {
	jwk := jwkOf(key)
	thumb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("acme: JWK thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumb), nil
}

// keyAuthorizationString joins a challenge token with an
// already-encoded JWK thumbprint.
func keyAuthorizationString(token, thumbprint string) string {
	return token + "." + thumbprint
}

// keyAuthorization builds token "." base64url(thumbprint), the key
// authorization string shared by every standard challenge type.
func keyAuthorization(key crypto.Signer, token string) (string, error) {
	thumb, err := jwkThumbprint(key)
	if err != nil {
		return "", err
	}
	return keyAuthorizationString(token, thumb), nil
}

// jwsFlattened is the flattened JWS JSON serialization RFC 8555
// requires for every ACME request body: exactly "protected", "payload",
// "signature", all base64url-unpadded.
type jwsFlattened struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// signJWS produces the flattened-JWS request body for a POST to reqURL.
// When kid is non-empty the protected header identifies the signer by
// account URL ("kid"); otherwise it embeds the public JWK directly, as
// RFC 8555 requires for newAccount and revocation-by-certificate-key
// requests. payload is nil for POST-as-GET.
func signJWS(key crypto.Signer, reqURL, nonce, kid string, payload []byte) ([]byte, error) {
	alg, err := signingAlgorithm(key)
	if err != nil {
		return nil, err
	}

	opts := &jose.SignerOptions{
		EmbedJWK: kid == "",
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": reqURL,
		},
	}
	if nonce != "" {
		opts.NonceSource = staticNonce(nonce)
	}
	if kid != "" {
		opts = opts.WithHeader("kid", kid)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, opts)
	if err != nil {
		return nil, fmt.Errorf("acme: building JWS signer: %w", err)
	}

	sig, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("acme: signing JWS: %w", err)
	}
	return []byte(sig.FullSerialize()), nil
}

// signInnerJWS signs a nonce-free nested JWS, the form used inside
// keyChange envelopes. The protected header carries url and the
// embedded public JWK of key itself. External account binding uses
// signEABJWS instead.
func signInnerJWS(key crypto.Signer, reqURL string, payload []byte) ([]byte, error) {
	return signJWS(key, reqURL, "", "", payload)
}

// signEABJWS signs the externalAccountBinding inner JWS: an HS256 MAC
// over the account public JWK, keyed by the CA-issued HMAC secret and
// identified by the CA-issued key identifier (RFC 8555 §7.3.4).
func signEABJWS(hmacKey []byte, keyID, reqURL string, accountKey crypto.Signer) ([]byte, error) {
	jwkJSON, err := jwkOf(accountKey).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("acme: marshaling account JWK: %w", err)
	}
	opts := &jose.SignerOptions{
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": reqURL,
			"kid": keyID,
		},
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: hmacKey}, opts)
	if err != nil {
		return nil, fmt.Errorf("acme: building EAB signer: %w", err)
	}
	sig, err := signer.Sign(jwkJSON)
	if err != nil {
		return nil, fmt.Errorf("acme: signing EAB: %w", err)
	}
	return []byte(sig.FullSerialize()), nil
}

// staticNonce implements jose.NonceSource by returning a single,
// caller-supplied nonce; the Connection (not go-jose) owns nonce pool
// bookkeeping.
type staticNonce string

func (n staticNonce) Nonce() (string, error) { return string(n), nil }
