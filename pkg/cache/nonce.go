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

package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	nonceKeyPrefix     = "relay:nonce:"
	defaultMaxNonces   = 100000
	nonceSweepInterval = time.Minute
)

var errEmptyNonce = errors.New("empty nonce")

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisNonceStore claims nonces with SET NX so every relay instance sharing
// the Redis sees the same replay window.
type RedisNonceStore struct {
	client setNXer
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

// Claim reports whether nonce was unused, marking it used for ttl.
func (s *RedisNonceStore) Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if nonce == "" {
		return false, errEmptyNonce
	}

	return s.client.SetNX(ctx, nonceKeyPrefix+nonce, "1", ttl).Result()
}

// MemoryNonceStore is the single-instance fallback. It refuses new nonces
// once maxEntries live ones are held.
type MemoryNonceStore struct {
	mu         sync.Mutex
	seen       map[string]time.Time
	maxEntries int
	now        func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		seen:       make(map[string]time.Time),
		maxEntries: defaultMaxNonces,
		now:        time.Now,
	}
}

func (s *MemoryNonceStore) Claim(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	if nonce == "" {
		return false, errEmptyNonce
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.seen[nonce]; ok && now.Before(exp) {
		return false, nil
	}

	if len(s.seen) >= s.maxEntries {
		s.sweepLocked(now)

		if len(s.seen) >= s.maxEntries {
			return false, nil
		}
	}

	s.seen[nonce] = now.Add(ttl)

	return true, nil
}

// Run drops expired nonces until ctx is done.
func (s *MemoryNonceStore) Run(ctx context.Context) {
	ticker := time.NewTicker(nonceSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.sweepLocked(s.now())
			s.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (s *MemoryNonceStore) sweepLocked(now time.Time) {
	for nonce, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, nonce)
		}
	}
}

// Len returns the number of tracked nonces.
func (s *MemoryNonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.seen)
}
