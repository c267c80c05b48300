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
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Directory resource names per RFC 8555 §7.1.1.
const (
	resourceNewNonce   = "newNonce"
	resourceNewAccount = "newAccount"
	resourceNewOrder   = "newOrder"
	resourceNewAuthz   = "newAuthz"
	resourceRevokeCert = "revokeCert"
	resourceKeyChange  = "keyChange"
	resourceRenewalInfo = "renewalInfo"
)

// NetworkSettings carries the transport knobs a Session uses for every
// request it makes. The zero value selects sane defaults.
type NetworkSettings struct {
	// HTTPClient performs the actual HTTPS round trips. When nil, a
	// client with Timeout applied is used.
	HTTPClient *http.Client

	// Timeout bounds connect+read of a single request when HTTPClient
	// is nil. Defaults to 30s.
	Timeout time.Duration

	// UserAgent is sent with every request. A library identifier is
	// sent instead when empty.
	UserAgent string

	// Limiter optionally paces outgoing requests client-side, so bulk
	// issuance does not slam into the CA's real rate limits.
	Limiter *rate.Limiter

	// Clock and Sleep are the time hooks the polling helpers use.
	// Tests substitute fakes; nil means time.Now and a timer-based
	// sleep honoring context cancellation.
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (ns NetworkSettings) clock() func() time.Time {
	if ns.Clock != nil {
		return ns.Clock
	}
	return time.Now
}

func (ns NetworkSettings) sleeper() func(ctx context.Context, d time.Duration) error {
	if ns.Sleep != nil {
		return ns.Sleep
	}
	return sleepCtx
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const defaultUserAgent = "acmecore/1.0"

// challengeConstructor wraps a generic Challenge into its typed
// variant. Registered per type string on the Session.
type challengeConstructor func(*Challenge) TypedChallenge

// Session is the per-CA conversation state: the directory snapshot,
// the replay-nonce pool, the locale sent as Accept-Language, and the
// registry of known challenge types. A Session is safe for use from
// multiple goroutines; nonce consumption is serialized internally.
type Session struct {
	directoryURL *url.URL
	settings     NetworkSettings
	locale       string
	logger       *zap.Logger

	httpClient *http.Client

	dirMu     sync.Mutex
	directory Value
	hasDir    bool

	nonceMu sync.Mutex
	nonce   string

	challengeMu sync.RWMutex
	challenges  map[string]challengeConstructor
}

// NewSession opens a session against the CA whose directory lives at
// directoryURL. The URL must be HTTPS unless it points at a loopback
// host (which permits local test CAs such as pebble).
func NewSession(directoryURL string) (*Session, error) {
	return NewSessionWithSettings(directoryURL, NetworkSettings{})
}

// NewSessionWithSettings is NewSession with explicit network settings.
func NewSessionWithSettings(directoryURL string, settings NetworkSettings) (*Session, error) {
	if !strings.Contains(directoryURL, "://") {
		directoryURL = "https://" + directoryURL
	}
	u, err := url.Parse(directoryURL)
	if err != nil {
		return nil, fmt.Errorf("acme: invalid directory URL: %w", err)
	}
	if u.Scheme != "https" && !isLoopback(u.Host) {
		return nil, fmt.Errorf("%s: insecure CA URL (HTTPS required)", directoryURL)
	}

	client := settings.HTTPClient
	if client == nil {
		timeout := settings.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// No redirect is followed implicitly, certificate
				// downloads included: the 3xx response itself is
				// returned.
				return http.ErrUseLastResponse
			},
		}
	}

	s := &Session{
		directoryURL: u,
		settings:     settings,
		logger:       zap.NewNop(),
		httpClient:   client,
		challenges:   make(map[string]challengeConstructor),
	}
	registerStandardChallenges(s)
	return s, nil
}

// isLoopback reports whether host (possibly host:port) resolves
// syntactically to a loopback address or localhost.
func isLoopback(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// SetLogger routes the session's diagnostics through l. The default is
// a no-op logger.
func (s *Session) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	s.logger = l
}

// SetLocale sets the Accept-Language value sent with every request, so
// the CA can localize problem-document messages.
func (s *Session) SetLocale(locale string) { s.locale = locale }

// Locale returns the configured Accept-Language value, if any.
func (s *Session) Locale() string { return s.locale }

// DirectoryURL returns the CA directory URL this session talks to.
func (s *Session) DirectoryURL() *url.URL { return s.directoryURL }

// RegisterChallengeType adds (or replaces) the constructor used to wrap
// challenges of the given type string. The standard types are
// preregistered; callers add entries for CA-specific extensions.
func (s *Session) RegisterChallengeType(typ string, ctor func(*Challenge) TypedChallenge) {
	s.challengeMu.Lock()
	defer s.challengeMu.Unlock()
	s.challenges[typ] = ctor
}

func (s *Session) challengeConstructor(typ string) (challengeConstructor, bool) {
	s.challengeMu.RLock()
	defer s.challengeMu.RUnlock()
	ctor, ok := s.challenges[typ]
	return ctor, ok
}

// Directory returns the CA's directory object, fetching it on first
// use and caching it for the session's lifetime.
func (s *Session) Directory(ctx context.Context) (Value, error) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	if s.hasDir {
		return s.directory, nil
	}

	conn := s.connect()
	defer conn.Close()
	if err := conn.Get(ctx, s.directoryURL.String()); err != nil {
		return Value{}, err
	}
	dir, err := conn.ReadJSONResponse()
	if err != nil {
		return Value{}, err
	}
	if _, err := dir.AsObject(); err != nil {
		return Value{}, err
	}
	s.directory = dir
	s.hasDir = true
	s.logger.Debug("directory fetched", zap.String("url", s.directoryURL.String()))
	return dir, nil
}

// ResetDirectory drops the cached directory so the next access
// refetches it, e.g. after the CA announces an endpoint change.
func (s *Session) ResetDirectory() {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.hasDir = false
	s.directory = Value{}
}

// resourceURL resolves a directory entry by name. A missing entry
// means the CA does not offer the operation.
func (s *Session) resourceURL(ctx context.Context, name string) (*url.URL, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	entry := dir.Get(name)
	if !entry.IsPresent() {
		return nil, &NotSupportedError{What: "directory has no " + name + " endpoint"}
	}
	return entry.AsURL()
}

// Meta accessors over the directory's optional meta object.

// TermsOfService returns the CA's terms-of-service URL, when published.
func (s *Session) TermsOfService(ctx context.Context) (*url.URL, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	return Map(dir.Get("meta").Get("termsOfService"), Value.AsURL)
}

// Website returns the CA's website URL, when published.
func (s *Session) Website(ctx context.Context) (*url.URL, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	return Map(dir.Get("meta").Get("website"), Value.AsURL)
}

// CAAIdentities returns the CAA issuer domain names the CA recognizes
// as designating it.
func (s *Session) CAAIdentities(ctx context.Context) ([]string, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	return Map(dir.Get("meta").Get("caaIdentities"), Value.AsStringArray)
}

// ExternalAccountRequired reports whether newAccount requests must
// carry an externalAccountBinding.
func (s *Session) ExternalAccountRequired(ctx context.Context) (bool, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return false, err
	}
	return Map(dir.Get("meta").Get("externalAccountRequired"), Value.AsBool)
}

// Profiles returns the certificate profile names the CA advertises in
// meta.profiles, mapped to their human-readable descriptions. An empty
// map means the CA does not support profile selection.
func (s *Session) Profiles(ctx context.Context) (map[string]string, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	profiles := dir.Get("meta").Get("profiles")
	if !profiles.IsPresent() {
		return nil, nil
	}
	obj, err := profiles.AsObject()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for name, desc := range obj {
		d, err := desc.AsString()
		if err != nil {
			return nil, err
		}
		out[name] = d
	}
	return out, nil
}

// popNonce removes and returns the pooled nonce, if any.
func (s *Session) popNonce() (string, bool) {
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()
	n := s.nonce
	s.nonce = ""
	return n, n != ""
}

// stashNonce keeps a replay nonce for the next signed request. The pool
// holds at most one; a fresher nonce replaces the stored one.
func (s *Session) stashNonce(n string) {
	if n == "" {
		return
	}
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()
	s.nonce = n
}

// Nonce returns a replay nonce for the next signed request: the pooled
// one when available, else a fresh one from a HEAD on newNonce.
func (s *Session) Nonce(ctx context.Context) (string, error) {
	if n, ok := s.popNonce(); ok {
		return n, nil
	}
	nonceURL, err := s.resourceURL(ctx, resourceNewNonce)
	if err != nil {
		return "", err
	}
	conn := s.connect()
	defer conn.Close()
	if err := conn.Head(ctx, nonceURL.String()); err != nil {
		return "", err
	}
	n := conn.Nonce()
	if n == "" {
		return "", protocolErrorf("", "newNonce response lacks Replay-Nonce header")
	}
	s.logger.Debug("nonce fetched", zap.String("url", nonceURL.String()))
	return n, nil
}

// connect opens a single-use Connection bound to this session.
func (s *Session) connect() *Connection {
	return newConnection(s)
}

// CreateChallenge wraps a challenge JSON object into its typed variant
// via the registry; unknown types come back as the generic *Challenge.
func (s *Session) CreateChallenge(login *Login, v Value) (TypedChallenge, error) {
	typ, err := v.Get("type").AsString()
	if err != nil {
		return nil, err
	}
	loc, err := v.Get("url").AsURL()
	if err != nil {
		return nil, err
	}
	ch := &Challenge{}
	ch.init(login, loc, "challenge")
	ch.setJSON(v)
	if ctor, ok := s.challengeConstructor(typ); ok {
		return ctor(ch), nil
	}
	return ch, nil
}
