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
	"fmt"
	"time"
)

// ProtocolError indicates a malformed server response: an unexpected
// content type, a missing mandatory JSON field, or a value that failed
// typed coercion in the JSON tree.
type ProtocolError struct {
	Path   string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func protocolErrorf(path, format string, a ...interface{}) *ProtocolError {
	return &ProtocolError{Path: path, Reason: fmt.Sprintf(format, a...)}
}

// NetworkError wraps a transport-level failure: a dial, TLS, or read
// error, or anything else the injected HTTPS client surfaced instead of
// a response.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("acme: network error requesting %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError wraps any RFC 7807 problem document the CA returned that
// isn't one of the specially recognized subtypes below.
type ServerError struct {
	Problem Problem
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("acme: server error: %s", e.Problem.Error())
}

func (e *ServerError) Unwrap() error { return e.Problem }

// RateLimitedError is raised for a urn:ietf:params:acme:error:rateLimited
// problem. RetryAfter is the server's advertised backoff, if any;
// Documents holds any Link rel="help" URLs sent alongside it.
type RateLimitedError struct {
	Problem    Problem
	RetryAfter time.Time
	Documents  []string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("acme: rate limited: %s", e.Problem.Error())
}

func (e *RateLimitedError) Unwrap() error { return e.Problem }

// UserActionRequiredError is raised for a
// urn:ietf:params:acme:error:userActionRequired problem, typically
// because the account must agree to updated terms of service.
type UserActionRequiredError struct {
	Problem  Problem
	TermsURL string
	Instance string
}

func (e *UserActionRequiredError) Error() string {
	return fmt.Sprintf("acme: user action required: %s", e.Problem.Error())
}

func (e *UserActionRequiredError) Unwrap() error { return e.Problem }

// NotSupportedError indicates the directory lacks a requested endpoint,
// or a challenge type was required but has no registered constructor.
type NotSupportedError struct {
	What string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("acme: not supported: %s", e.What)
}

// LazyLoadingError wraps the error that occurred when a getter had to
// implicitly call fetch() to hydrate a resource's JSON.
type LazyLoadingError struct {
	Resource string
	Location string
	Err      error
}

func (e *LazyLoadingError) Error() string {
	return fmt.Sprintf("acme: lazy loading %s at %s: %v", e.Resource, e.Location, e.Err)
}

func (e *LazyLoadingError) Unwrap() error { return e.Err }

// RetryAfterError is raised when a polling deadline expires while the
// server still reports a non-terminal status.
type RetryAfterError struct {
	RetryAfter time.Time
	Status     Status
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("acme: timed out waiting for terminal status, last status %q", e.Status)
}
