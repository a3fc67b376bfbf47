/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package http

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	defaultMaxKeys       = 10000
	defaultSweepInterval = time.Minute
)

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window counter per key. The key map is bounded by
// maxKeys; a new key arriving when the map is full after a sweep is denied.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	maxKeys int
	buckets map[string]*bucket
	now     func() time.Time
}

// NewRateLimiter allows max requests per key per window. A non-positive max
// disables limiting.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}

	return &RateLimiter{
		window:  window,
		max:     maxRequests,
		maxKeys: defaultMaxKeys,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow counts a hit for key and reports whether it is within the limit,
// with the time until the window resets when it is not.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	if l.max <= 0 {
		return true, 0
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil || now.After(b.resetAt) {
		if b == nil && len(l.buckets) >= l.maxKeys {
			l.sweepLocked(now)

			if len(l.buckets) >= l.maxKeys {
				return false, l.window
			}
		}

		b = &bucket{resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}

	b.count++
	if b.count <= l.max {
		return true, 0
	}

	return false, b.resetAt.Sub(now)
}

// Run sweeps expired buckets until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			l.sweepLocked(l.now())
			l.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.buckets)
}

// KeyByIP keys requests by client address.
func KeyByIP(r *http.Request) string { return ClientIP(r) }

// KeyByIPAndPath keys requests by client address and path.
func KeyByIPAndPath(r *http.Request) string { return ClientIP(r) + ":" + r.URL.Path }

// Middleware answers 429 rate_limited once key exceeds the limit.
func (l *RateLimiter) Middleware(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := l.Allow(key(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				WriteError(w, ErrRateLimited)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
