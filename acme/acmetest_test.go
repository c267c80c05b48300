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
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// testCA is a fake ACME server for round-trip tests. It issues
// sequential nonces and records every nonce presented in a signed
// request, so tests can assert the one-shot law.
type testCA struct {
	t   *testing.T
	mux *http.ServeMux
	srv *httptest.Server

	mu         sync.Mutex
	nonceSeq   int
	issued     map[string]bool
	seenNonces []string
}

func newTestCA(t *testing.T) *testCA {
	ca := &testCA{
		t:      t,
		mux:    http.NewServeMux(),
		issued: make(map[string]bool),
	}
	ca.srv = httptest.NewServer(ca.mux)
	t.Cleanup(ca.srv.Close)

	ca.mux.HandleFunc("/dir", func(w http.ResponseWriter, r *http.Request) {
		ca.writeJSON(w, http.StatusOK, fmt.Sprintf(`{
			"newNonce": %q,
			"newAccount": %q,
			"newOrder": %q,
			"newAuthz": %q,
			"revokeCert": %q,
			"keyChange": %q,
			"meta": {
				"termsOfService": "https://example.com/tos",
				"website": "https://example.com",
				"caaIdentities": ["example.com"],
				"profiles": {"classic": "the default profile", "shortlived": "6 day certs"}
			}
		}`, ca.url("/new-nonce"), ca.url("/new-account"), ca.url("/new-order"),
			ca.url("/new-authz"), ca.url("/revoke-cert"), ca.url("/key-change")))
	})
	ca.mux.HandleFunc("/new-nonce", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", ca.mintNonce())
		w.WriteHeader(http.StatusOK)
	})
	return ca
}

func (ca *testCA) url(path string) string { return ca.srv.URL + path }

func (ca *testCA) mintNonce() string {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.nonceSeq++
	n := fmt.Sprintf("nonce-%04d", ca.nonceSeq)
	ca.issued[n] = true
	return n
}

// writeJSON sends a JSON body plus a fresh replay nonce, the way a
// conforming server responds to every request.
func (ca *testCA) writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Replay-Nonce", ca.mintNonce())
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (ca *testCA) writeProblem(w http.ResponseWriter, status int, typ, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Replay-Nonce", ca.mintNonce())
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"type":%q,"detail":%q,"status":%d}`, typ, detail, status)
}

// jwsEnvelope is a decoded flattened JWS request.
type jwsEnvelope struct {
	Header  map[string]interface{}
	Payload []byte
}

// decodeJWS unpacks a signed request body and checks the presented
// nonce was issued by this server and never used before.
func (ca *testCA) decodeJWS(r *http.Request) jwsEnvelope {
	ca.t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(ca.t, err)
	require.Equal(ca.t, "application/jose+json", r.Header.Get("Content-Type"))

	var env struct {
		Protected string `json:"protected"`
		Payload   string `json:"payload"`
		Signature string `json:"signature"`
	}
	require.NoError(ca.t, json.Unmarshal(body, &env))
	require.NotEmpty(ca.t, env.Signature)

	headerBytes, err := base64.RawURLEncoding.DecodeString(env.Protected)
	require.NoError(ca.t, err)
	var header map[string]interface{}
	require.NoError(ca.t, json.Unmarshal(headerBytes, &header))

	payload, err := base64.RawURLEncoding.DecodeString(env.Payload)
	require.NoError(ca.t, err)

	nonce, _ := header["nonce"].(string)
	ca.mu.Lock()
	require.True(ca.t, ca.issued[nonce], "nonce %q was not issued or already spent", nonce)
	delete(ca.issued, nonce)
	ca.seenNonces = append(ca.seenNonces, nonce)
	ca.mu.Unlock()

	return jwsEnvelope{Header: header, Payload: payload}
}

func (ca *testCA) nonceHistory() []string {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return append([]string(nil), ca.seenNonces...)
}

func (ca *testCA) session(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(ca.url("/dir"))
	require.NoError(t, err)
	return s
}

func (ca *testCA) sessionWithSettings(t *testing.T, settings NetworkSettings) *Session {
	t.Helper()
	s, err := NewSessionWithSettings(ca.url("/dir"), settings)
	require.NoError(t, err)
	return s
}

func (ca *testCA) login(t *testing.T, s *Session) *Login {
	t.Helper()
	acctURL, err := url.Parse(ca.url("/acct/1"))
	require.NoError(t, err)
	login, err := NewLogin(s, acctURL, testKey(t))
	require.NoError(t, err)
	return login
}

func testKey(t *testing.T) crypto.Signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

// decodeB64JSON decodes an unpadded base64url JSON object.
func decodeB64JSON(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	b, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
