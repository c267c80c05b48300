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
	"net/url"
	"sync"
	"time"
)

// resource is the minimal server-side-entity handle: a login and a
// location URL. Two handles refer to the same entity iff their
// locations are equal; local JSON caches carry no identity.
type resource struct {
	login    *Login
	location *url.URL
}

// Login returns the credential this handle operates under.
func (r *resource) Login() *Login { return r.login }

// Location returns the entity's URL.
func (r *resource) Location() *url.URL { return r.location }

// Session returns the session the handle's login belongs to.
func (r *resource) Session() *Session { return r.login.Session() }

// jsonResource extends resource with the entity's cached JSON document
// and the Retry-After instant of the last fetch. The cache hydrates
// lazily: accessors call getJSON, which fetches on first use.
type jsonResource struct {
	resource
	kind string

	mu         sync.Mutex
	data       Value
	hasData    bool
	retryAfter time.Time

	// onInvalidate, when set, clears any derived caches a concrete
	// resource keeps alongside the raw JSON.
	onInvalidate func()
}

func (r *jsonResource) init(login *Login, location *url.URL, kind string) {
	r.login = login
	r.location = location
	r.kind = kind
}

// getJSON returns the cached document, fetching it first if the handle
// was bound without one. A fetch failure on this implicit path comes
// back wrapped in *LazyLoadingError naming the resource.
func (r *jsonResource) getJSON(ctx context.Context) (Value, error) {
	r.mu.Lock()
	if r.hasData {
		v := r.data
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()

	if _, err := r.Fetch(ctx); err != nil {
		return Value{}, &LazyLoadingError{
			Resource: r.kind,
			Location: r.location.String(),
			Err:      err,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data, nil
}

// GetJSON returns the entity's JSON document, hydrating it from the
// server on first access.
func (r *jsonResource) GetJSON() (Value, error) {
	return r.getJSON(context.Background())
}

// Fetch refreshes the document with a POST-as-GET against the
// location. It returns the response's Retry-After instant, which is
// the zero time when the server sent none.
func (r *jsonResource) Fetch(ctx context.Context) (time.Time, error) {
	conn := r.Session().connect()
	defer conn.Close()

	if err := conn.PostAsGet(ctx, r.location.String(), r.login); err != nil {
		return time.Time{}, err
	}
	v, err := conn.ReadJSONResponse()
	if err != nil {
		return time.Time{}, err
	}
	retryAfter, _ := conn.RetryAfter()

	r.setJSON(v)
	r.mu.Lock()
	r.retryAfter = retryAfter
	r.mu.Unlock()
	return retryAfter, nil
}

// setJSON replaces the cached document, invalidating derived caches
// first.
func (r *jsonResource) setJSON(v Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateLocked()
	r.data = v
	r.hasData = true
}

// Invalidate drops the cached document and Retry-After so the next
// accessor refetches.
func (r *jsonResource) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateLocked()
}

func (r *jsonResource) invalidateLocked() {
	r.data = Value{}
	r.hasData = false
	r.retryAfter = time.Time{}
	if r.onInvalidate != nil {
		r.onInvalidate()
	}
}

// RetryAfter returns the Retry-After instant stored by the last fetch;
// the zero time when the server sent none.
func (r *jsonResource) RetryAfter() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAfter
}

// status reads the document's status field.
func (r *jsonResource) status(ctx context.Context) (Status, error) {
	v, err := r.getJSON(ctx)
	if err != nil {
		return StatusUnknown, err
	}
	return v.Get("status").AsStatus()
}

// Status returns the entity's current status as last fetched.
func (r *jsonResource) Status() (Status, error) {
	return r.status(context.Background())
}
