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
	"time"

	"go.uber.org/zap"
)

// minPollInterval is the floor between polls, also used when the
// server sends no Retry-After or one already in the past. A poll that
// would fall past the caller's deadline is moved to the deadline.
const minPollInterval = 3 * time.Second

// WaitForStatus polls the resource until its status is one of targets,
// honoring the server's Retry-After and the caller's timeout. It
// returns the reached status, or *RetryAfterError when the deadline
// expires while the server still reports a non-terminal state. The
// context cancels any in-progress sleep or fetch.
func (r *jsonResource) WaitForStatus(ctx context.Context, timeout time.Duration, targets ...Status) (Status, error) {
	settings := r.Session().settings
	now := settings.clock()
	sleep := settings.sleeper()
	deadline := now().Add(timeout)
	logger := r.Session().logger.With(
		zap.String("resource", r.kind),
		zap.String("url", r.location.String()))

	for {
		st, err := r.status(ctx)
		if err != nil {
			return StatusUnknown, err
		}
		if st.In(targets...) {
			return st, nil
		}
		if !now().Before(deadline) {
			logger.Debug("poll deadline expired", zap.Stringer("status", st))
			return st, &RetryAfterError{RetryAfter: r.RetryAfter(), Status: st}
		}

		next := now().Add(minPollInterval)
		if ra := r.RetryAfter(); ra.After(next) {
			next = ra
		}
		if next.After(deadline) {
			next = deadline
		}

		if err := sleep(ctx, next.Sub(now())); err != nil {
			return st, err
		}
		if _, err := r.Fetch(ctx); err != nil {
			return StatusUnknown, err
		}
		logger.Debug("polled", zap.Stringer("status", st))
	}
}

// TryStatus performs a single non-blocking poll: one fetch, no sleep.
// Callers driving their own event loop combine it with RetryAfter to
// schedule the next check themselves.
func (r *jsonResource) TryStatus(ctx context.Context) (Status, error) {
	if _, err := r.Fetch(ctx); err != nil {
		return StatusUnknown, err
	}
	return r.status(ctx)
}
