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
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNonceStoreRejectsReplay(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryNonceStore()
	s.now = func() time.Time { return now }

	ok, err := s.Claim(context.Background(), "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(context.Background(), "abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(time.Minute)

	ok, err = s.Claim(context.Background(), "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired nonce can be claimed again")
}

func TestMemoryNonceStoreBounded(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryNonceStore()
	s.now = func() time.Time { return now }
	s.maxEntries = 2

	ctx := context.Background()

	for _, n := range []string{"a", "b"} {
		ok, err := s.Claim(ctx, n, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := s.Claim(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)

	ok, err = s.Claim(ctx, "c", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryNonceStoreEmptyNonce(t *testing.T) {
	_, err := NewMemoryNonceStore().Claim(context.Background(), "", time.Minute)
	assert.Error(t, err)
}

type fakeRedis struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}

	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}

	f.keys[key] = ttl

	return redis.NewBoolResult(true, nil)
}

func TestRedisNonceStoreClaim(t *testing.T) {
	fake := &fakeRedis{keys: map[string]time.Duration{}}
	s := &RedisNonceStore{client: fake}

	ok, err := s.Claim(context.Background(), "n1", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Minute, fake.keys["relay:nonce:n1"])

	ok, err = s.Claim(context.Background(), "n1", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisNonceStoreError(t *testing.T) {
	s := &RedisNonceStore{client: &fakeRedis{err: errors.New("connection refused")}}

	ok, err := s.Claim(context.Background(), "n1", time.Minute)
	require.Error(t, err)
	assert.False(t, ok)
}
