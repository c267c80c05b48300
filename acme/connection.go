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
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	contentTypeJOSE    = "application/jose+json"
	contentTypeJSON    = "application/json"
	contentTypeProblem = "application/problem+json"
	contentTypePEM     = "application/pem-certificate-chain"

	// maxBadNonceAttempts bounds the automatic retry on badNonce
	// problems, so a CA in a bad-nonce storm cannot spin the client
	// forever. The first attempt counts toward the limit.
	maxBadNonceAttempts = 10

	// maxResponseBody caps how much of a response the client will
	// buffer. ACME payloads are small; anything larger is hostile.
	maxResponseBody = 1 << 20
)

// Connection performs a single ACME round trip for a Session: it signs
// the request, sends it, pools the replay nonce from the response, and
// exposes the response's body and headers through typed readers. A
// Connection is single-use; Close releases it.
type Connection struct {
	session   *Session
	logger    *zap.Logger
	requestID string

	reqURL *url.URL
	resp   *http.Response
	body   []byte
}

func newConnection(s *Session) *Connection {
	id := uuid.NewString()
	return &Connection{
		session:   s,
		requestID: id,
		logger:    s.logger.With(zap.String("request_id", id)),
	}
}

// Close releases the connection. It is safe to call more than once.
func (c *Connection) Close() {
	if c.resp != nil && c.resp.Body != nil {
		c.resp.Body.Close()
	}
	c.resp = nil
}

// Get performs an unsigned GET. RFC 8555 permits this only for the
// directory and for servers that allow anonymous certificate download.
func (c *Connection) Get(ctx context.Context, rawURL string) error {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", contentTypeJSON)
	if err := c.do(req); err != nil {
		return err
	}
	return c.handleStatus()
}

// Head performs a HEAD request; used solely against newNonce.
func (c *Connection) Head(ctx context.Context, rawURL string) error {
	req, err := c.newRequest(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return err
	}
	if err := c.do(req); err != nil {
		return err
	}
	return c.handleStatus()
}

// PostAsGet authenticates a read: a signed POST with an empty payload
// (RFC 8555 §6.3).
func (c *Connection) PostAsGet(ctx context.Context, rawURL string, login *Login) error {
	return c.signedPost(ctx, rawURL, nil, login.Key(), login.AccountURL().String(), contentTypeJSON)
}

// PostAsGetChain is PostAsGet accepting a PEM certificate chain
// instead of JSON; used for certificate download.
func (c *Connection) PostAsGetChain(ctx context.Context, rawURL string, login *Login) error {
	return c.signedPost(ctx, rawURL, nil, login.Key(), login.AccountURL().String(), contentTypePEM)
}

// SignedRequest sends payload to rawURL signed with the login's key in
// the kid form.
func (c *Connection) SignedRequest(ctx context.Context, rawURL string, payload *Builder, login *Login) error {
	body, err := payload.Bytes()
	if err != nil {
		return err
	}
	return c.signedPost(ctx, rawURL, body, login.Key(), login.AccountURL().String(), contentTypeJSON)
}

// SignedRawRequest sends an already-serialized JSON payload in the kid
// form; keyChange uses it to wrap the inner JWS verbatim.
func (c *Connection) SignedRawRequest(ctx context.Context, rawURL string, payload []byte, login *Login) error {
	return c.signedPost(ctx, rawURL, payload, login.Key(), login.AccountURL().String(), contentTypeJSON)
}

// SignedRequestWithKey sends payload signed with an explicit key pair
// in the jwk form, as newAccount and revocation-by-certificate-key
// require.
func (c *Connection) SignedRequestWithKey(ctx context.Context, rawURL string, payload *Builder, key crypto.Signer) error {
	body, err := payload.Bytes()
	if err != nil {
		return err
	}
	return c.signedPost(ctx, rawURL, body, key, "", contentTypeJSON)
}

// signedPost runs the sign/send/retry loop. A badNonce problem
// discards the offending nonce and retries with a fresh one, up to
// maxBadNonceAttempts total tries.
func (c *Connection) signedPost(ctx context.Context, rawURL string, payload []byte, key crypto.Signer, kid, accept string) error {
	for attempt := 1; ; attempt++ {
		nonce, err := c.session.Nonce(ctx)
		if err != nil {
			return err
		}

		jws, err := signJWS(key, rawURL, nonce, kid, payload)
		if err != nil {
			return err
		}

		req, err := c.newRequest(ctx, http.MethodPost, rawURL, bytes.NewReader(jws))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentTypeJOSE)
		req.Header.Set("Accept", accept)

		if err := c.do(req); err != nil {
			return err
		}
		err = c.handleStatus()
		if isProblemType(err, ProblemBadNonce) && attempt < maxBadNonceAttempts {
			c.logger.Debug("bad nonce, retrying",
				zap.Int("attempt", attempt),
				zap.String("url", rawURL))
			c.Close()
			continue
		}
		return err
	}
}

// isProblemType reports whether err is a *ServerError carrying a
// problem document of the given type URI.
func isProblemType(err error, typ string) bool {
	var se *ServerError
	return errors.As(err, &se) && se.Problem.Type == typ
}

func (c *Connection) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("acme: invalid request URL %q: %w", rawURL, err)
	}
	c.reqURL = u

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	ua := c.session.settings.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if locale := c.session.Locale(); locale != "" {
		req.Header.Set("Accept-Language", locale)
	}
	return req, nil
}

// do sends the request, buffers the response body, and pools the
// replay nonce. Transport failures come back as *NetworkError.
func (c *Connection) do(req *http.Request) error {
	if lim := c.session.settings.Limiter; lim != nil {
		if err := lim.Wait(req.Context()); err != nil {
			return err
		}
	}

	resp, err := c.session.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("url", req.URL.String()), zap.Error(err))
		return &NetworkError{URL: req.URL.String(), Err: err}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	resp.Body.Close()
	if err != nil {
		return &NetworkError{URL: req.URL.String(), Err: err}
	}
	c.resp = resp
	c.body = body
	c.session.stashNonce(resp.Header.Get("Replay-Nonce"))

	c.logger.Debug("response received",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode))
	return nil
}

// handleStatus maps the buffered response onto the error taxonomy: a
// problem document on any status >= 400 becomes a typed error, any
// other error response a plain error naming the status, and a status
// below 400 yields nil.
func (c *Connection) handleStatus() error {
	status := c.resp.StatusCode
	if status < 400 {
		return nil
	}

	ct := c.contentType()
	if ct != contentTypeProblem {
		return fmt.Errorf("acme: server returned HTTP %d for %s", status, c.reqURL)
	}

	v, err := ParseJSON(c.body)
	if err != nil {
		return err
	}
	problem, err := v.AsProblem(c.reqURL)
	if err != nil {
		return err
	}

	switch problem.Type {
	case ProblemRateLimited:
		retryAfter, _ := c.RetryAfter()
		return &RateLimitedError{
			Problem:    problem,
			RetryAfter: retryAfter,
			Documents:  c.Links("help"),
		}
	case ProblemUserActionRequired:
		var tos string
		if links := c.Links("terms-of-service"); len(links) > 0 {
			tos = links[0]
		}
		return &UserActionRequiredError{
			Problem:  problem,
			TermsURL: tos,
			Instance: problem.Instance,
		}
	default:
		return &ServerError{Problem: problem}
	}
}

func (c *Connection) contentType() string {
	ct, _, err := mime.ParseMediaType(c.resp.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return ct
}

// ReadJSONResponse parses the response body as a JSON value. Anything
// other than application/json (or a problem document, which has
// already surfaced as an error) is a protocol violation.
func (c *Connection) ReadJSONResponse() (Value, error) {
	if ct := c.contentType(); ct != contentTypeJSON {
		return Value{}, protocolErrorf("", "unexpected content type %q, want %q", ct, contentTypeJSON)
	}
	return ParseJSON(c.body)
}

// ReadCertificates parses the response body as a leaf-first PEM
// certificate chain.
func (c *Connection) ReadCertificates() ([]*x509.Certificate, error) {
	if ct := c.contentType(); ct != contentTypePEM {
		return nil, protocolErrorf("", "unexpected content type %q, want %q", ct, contentTypePEM)
	}
	return DecodeCertificateChain(c.body)
}

// Location returns the response's Location header resolved against the
// request URL.
func (c *Connection) Location() (*url.URL, error) {
	loc := c.resp.Header.Get("Location")
	if loc == "" {
		return nil, protocolErrorf("", "response lacks Location header")
	}
	u, err := url.Parse(loc)
	if err != nil {
		return nil, protocolErrorf("", "invalid Location header %q: %v", loc, err)
	}
	return c.reqURL.ResolveReference(u), nil
}

// RetryAfter decodes the Retry-After header, accepting both the
// delta-seconds and HTTP-date forms. The bool is false when absent or
// unparsable.
func (c *Connection) RetryAfter() (time.Time, bool) {
	h := c.resp.Header.Get("Retry-After")
	if h == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.Atoi(h); err == nil {
		return c.session.settings.clock()().Add(time.Duration(secs) * time.Second), true
	}
	if t, err := http.ParseTime(h); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Nonce returns the Replay-Nonce the response carried, if any.
func (c *Connection) Nonce() string {
	return c.resp.Header.Get("Replay-Nonce")
}

// Links collects the URLs of every Link header with the given relation,
// resolved against the request URL.
func (c *Connection) Links(rel string) []string {
	var out []string
	for _, h := range c.resp.Header.Values("Link") {
		for _, link := range strings.Split(h, ",") {
			u, r, ok := parseLink(strings.TrimSpace(link))
			if !ok || r != rel {
				continue
			}
			if ref, err := url.Parse(u); err == nil {
				out = append(out, c.reqURL.ResolveReference(ref).String())
			}
		}
	}
	return out
}

// parseLink decodes a single RFC 8288 link-value of the form
// <url>; rel="relation".
func parseLink(link string) (uri, rel string, ok bool) {
	parts := strings.Split(link, ";")
	target := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
		return "", "", false
	}
	uri = strings.Trim(target, "<>")
	for _, param := range parts[1:] {
		k, v, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(k), "rel") {
			continue
		}
		rel = strings.Trim(strings.TrimSpace(v), `"`)
	}
	return uri, rel, rel != ""
}
