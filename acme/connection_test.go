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
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryFetchedOnce(t *testing.T) {
	ca := newTestCA(t)
	var dirHits atomic.Int32
	ca.mux.HandleFunc("/dir2", func(w http.ResponseWriter, r *http.Request) {
		dirHits.Add(1)
		ca.writeJSON(w, http.StatusOK, fmt.Sprintf(`{"newNonce": %q}`, ca.url("/new-nonce")))
	})

	s, err := NewSession(ca.url("/dir2"))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Directory(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), dirHits.Load(), "directory is fetched at most once per session")

	s.ResetDirectory()
	_, err = s.Directory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), dirHits.Load(), "explicit reset refetches")
}

func TestDirectoryMeta(t *testing.T) {
	ca := newTestCA(t)
	s := ca.session(t)
	ctx := context.Background()

	tos, err := s.TermsOfService(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/tos", tos.String())

	ids, err := s.CAAIdentities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, ids)

	profiles, err := s.Profiles(ctx)
	require.NoError(t, err)
	assert.Contains(t, profiles, "classic")

	eab, err := s.ExternalAccountRequired(ctx)
	require.NoError(t, err)
	assert.False(t, eab)
}

func TestUnknownDirectoryEntry(t *testing.T) {
	ca := newTestCA(t)
	s := ca.session(t)

	_, err := s.resourceURL(context.Background(), "renewalInfo")
	var nse *NotSupportedError
	require.ErrorAs(t, err, &nse)
}

func TestBadNonceRetriedOnce(t *testing.T) {
	ca := newTestCA(t)
	var posts atomic.Int32
	ca.mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		ca.decodeJWS(r)
		if posts.Add(1) == 1 {
			ca.writeProblem(w, http.StatusBadRequest, ProblemBadNonce, "stale nonce")
			return
		}
		ca.writeJSON(w, http.StatusOK, `{"status":"valid"}`)
	})

	s := ca.session(t)
	login := ca.login(t, s)

	conn := s.connect()
	defer conn.Close()
	err := conn.SignedRequest(context.Background(), ca.url("/resource"), NewBuilder(), login)
	require.NoError(t, err, "a single badNonce must be recovered internally")

	assert.Equal(t, int32(2), posts.Load(), "exactly one retry")
	history := ca.nonceHistory()
	require.Len(t, history, 2)
	assert.NotEqual(t, history[0], history[1], "the retry must use a fresh nonce")
}

func TestBadNonceStormGivesUp(t *testing.T) {
	ca := newTestCA(t)
	var posts atomic.Int32
	ca.mux.HandleFunc("/stormy", func(w http.ResponseWriter, r *http.Request) {
		ca.decodeJWS(r)
		posts.Add(1)
		ca.writeProblem(w, http.StatusBadRequest, ProblemBadNonce, "always stale")
	})

	s := ca.session(t)
	login := ca.login(t, s)

	conn := s.connect()
	defer conn.Close()
	err := conn.SignedRequest(context.Background(), ca.url("/stormy"), NewBuilder(), login)
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ProblemBadNonce, se.Problem.Type)
	assert.Equal(t, int32(maxBadNonceAttempts), posts.Load())
}

func TestRateLimitedError(t *testing.T) {
	ca := newTestCA(t)
	ca.mux.HandleFunc("/limited", func(w http.ResponseWriter, r *http.Request) {
		ca.decodeJWS(r)
		w.Header().Set("Retry-After", "120")
		w.Header().Add("Link", `<https://example.com/rate-doc>;rel="help"`)
		ca.writeProblem(w, http.StatusTooManyRequests, ProblemRateLimited, "slow down")
	})

	s := ca.session(t)
	login := ca.login(t, s)

	conn := s.connect()
	defer conn.Close()
	err := conn.SignedRequest(context.Background(), ca.url("/limited"), NewBuilder(), login)

	var rle *RateLimitedError
	require.ErrorAs(t, err, &rle)
	assert.False(t, rle.RetryAfter.IsZero())
	assert.Equal(t, []string{"https://example.com/rate-doc"}, rle.Documents)
}

func TestUserActionRequiredError(t *testing.T) {
	ca := newTestCA(t)
	ca.mux.HandleFunc("/action", func(w http.ResponseWriter, r *http.Request) {
		ca.decodeJWS(r)
		w.Header().Add("Link", `<https://example.com/tos-v2>;rel="terms-of-service"`)
		ca.writeProblem(w, http.StatusForbidden, ProblemUserActionRequired, "agree to new terms")
	})

	s := ca.session(t)
	login := ca.login(t, s)

	conn := s.connect()
	defer conn.Close()
	err := conn.SignedRequest(context.Background(), ca.url("/action"), NewBuilder(), login)

	var uare *UserActionRequiredError
	require.ErrorAs(t, err, &uare)
	assert.Equal(t, "https://example.com/tos-v2", uare.TermsURL)
}

func TestGenericProblemIsServerError(t *testing.T) {
	ca := newTestCA(t)
	ca.mux.HandleFunc("/unsupported", func(w http.ResponseWriter, r *http.Request) {
		ca.decodeJWS(r)
		ca.writeProblem(w, http.StatusBadRequest, ProblemUnsupportedIdentifier, "no IP certs")
	})

	s := ca.session(t)
	login := ca.login(t, s)

	conn := s.connect()
	defer conn.Close()
	err := conn.SignedRequest(context.Background(), ca.url("/unsupported"), NewBuilder(), login)

	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ProblemUnsupportedIdentifier, se.Problem.Type)
	assert.Equal(t, "no IP certs", se.Problem.Detail)
}

func TestContentTypeGating(t *testing.T) {
	ca := newTestCA(t)
	ca.mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Replay-Nonce", ca.mintNonce())
		io.WriteString(w, "<html></html>")
	})

	s := ca.session(t)
	conn := s.connect()
	defer conn.Close()
	require.NoError(t, conn.Get(context.Background(), ca.url("/html")))

	_, err := conn.ReadJSONResponse()
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)

	_, err = conn.ReadCertificates()
	require.ErrorAs(t, err, &pe)
}

func TestRetryAfterForms(t *testing.T) {
	ca := newTestCA(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	httpDate := now.Add(90 * time.Second)

	ca.mux.HandleFunc("/delta", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "45")
		ca.writeJSON(w, http.StatusOK, `{}`)
	})
	ca.mux.HandleFunc("/date", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", httpDate.Format(http.TimeFormat))
		ca.writeJSON(w, http.StatusOK, `{}`)
	})
	ca.mux.HandleFunc("/none", func(w http.ResponseWriter, r *http.Request) {
		ca.writeJSON(w, http.StatusOK, `{}`)
	})

	s := ca.sessionWithSettings(t, NetworkSettings{Clock: func() time.Time { return now }})
	ctx := context.Background()

	conn := s.connect()
	require.NoError(t, conn.Get(ctx, ca.url("/delta")))
	got, ok := conn.RetryAfter()
	require.True(t, ok)
	assert.Equal(t, now.Add(45*time.Second), got)
	conn.Close()

	conn = s.connect()
	require.NoError(t, conn.Get(ctx, ca.url("/date")))
	got, ok = conn.RetryAfter()
	require.True(t, ok)
	assert.WithinDuration(t, httpDate, got, time.Second)
	conn.Close()

	conn = s.connect()
	require.NoError(t, conn.Get(ctx, ca.url("/none")))
	_, ok = conn.RetryAfter()
	assert.False(t, ok)
	conn.Close()
}

func TestNetworkErrorWrapped(t *testing.T) {
	ca := newTestCA(t)
	s := ca.session(t)
	// Force the directory through so only the target request fails.
	_, err := s.Directory(context.Background())
	require.NoError(t, err)
	ca.srv.Close()

	conn := s.connect()
	defer conn.Close()
	err = conn.Get(context.Background(), ca.url("/dir"))
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
}

func TestParseLink(t *testing.T) {
	uri, rel, ok := parseLink(`<https://example.com/alt>;rel="alternate"`)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/alt", uri)
	assert.Equal(t, "alternate", rel)

	_, _, ok = parseLink(`not a link`)
	assert.False(t, ok)
}
