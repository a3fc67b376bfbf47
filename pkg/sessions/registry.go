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

// Package sessions schedules the automatic revocation of granted access.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/audit"
	"github.com/carverauto/hotspot-relay/pkg/hotspot"
	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/mikrotik"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const (
	DefaultFallbackTTL    = 5 * time.Minute
	defaultRevokeTimeout  = 10 * time.Second
	defaultStoreTimeout   = 5 * time.Second
	resultRevokeSucceeded = "success"
	resultRevokeFailed    = "failed"
)

var errRegistryClosed = errors.New("session registry closed")

// Entry is a granted client awaiting revocation.
type Entry struct {
	Key       string                   `json:"key"`
	Token     string                   `json:"token,omitempty"`
	IP        string                   `json:"ip,omitempty"`
	MAC       string                   `json:"mac,omitempty"`
	Username  string                   `json:"username,omitempty"`
	Router    models.RouterCredentials `json:"router"`
	ExpiresAt time.Time                `json:"expiresAt"`
}

// HostResolver looks up credentials for a router host during Restore.
type HostResolver interface {
	ResolveHost(ctx context.Context, host string) (models.RouterCredentials, error)
}

type scheduled struct {
	entry Entry
	gen   uint64
	timer Timer
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Registry owns the table of pending revocations. At most one timer is
// armed per key.
type Registry struct {
	clock         Clock
	executor      mikrotik.Executor
	builder       hotspot.Builder
	store         Store
	recorder      *audit.Recorder
	fallbackTTL   time.Duration
	revokeTimeout time.Duration
	logger        logger.Logger

	mu       sync.Mutex
	entries  map[string]*scheduled
	keyLocks map[string]*keyLock
	gen      uint64
	closed   bool
	wg       sync.WaitGroup
}

type Option func(*Registry)

func WithClock(c Clock) Option { return func(r *Registry) { r.clock = c } }

func WithStore(s Store) Option { return func(r *Registry) { r.store = s } }

func WithRecorder(rec *audit.Recorder) Option { return func(r *Registry) { r.recorder = rec } }

func WithFallbackTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.fallbackTTL = d
		}
	}
}

// WithRevokeTimeout bounds each revocation. It should be at least the
// executor's own timeout.
func WithRevokeTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.revokeTimeout = d
		}
	}
}

func NewRegistry(executor mikrotik.Executor, builder hotspot.Builder, log logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		clock:         RealClock(),
		executor:      executor,
		builder:       builder,
		store:         NewMemoryStore(),
		fallbackTTL:   DefaultFallbackTTL,
		revokeTimeout: defaultRevokeTimeout,
		logger:        log,
		entries:       make(map[string]*scheduled),
		keyLocks:      make(map[string]*keyLock),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Key is the token when present, else the ip-mac composite.
func Key(token, ip, mac string) string {
	if token != "" {
		return token
	}

	if ip == "" {
		ip = "noip"
	}

	if mac == "" {
		mac = "nomac"
	}

	return ip + "-" + mac
}

// Register schedules revocation of e, replacing any pending one for the
// same key. e.ExpiresAt is honoured only when it lies in the future; the
// effective expiry is returned. The row is persisted before the timer is
// armed.
func (r *Registry) Register(ctx context.Context, e Entry) (time.Time, error) {
	e.Key = Key(e.Token, e.IP, e.MAC)

	now := r.clock.Now()
	if !e.ExpiresAt.After(now) {
		e.ExpiresAt = now.Add(r.fallbackTTL)
	}

	if r.isClosed() {
		return time.Time{}, errRegistryClosed
	}

	unlock := r.lockKey(e.Key)
	defer unlock()

	saveErr := r.store.Save(ctx, recordOf(&e))

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return time.Time{}, errRegistryClosed
	}

	replaced := r.arm(e, r.clock.Now())
	r.mu.Unlock()

	r.logger.Debug().
		Str("key", e.Key).
		Time("expires_at", e.ExpiresAt).
		Bool("replaced", replaced).
		Msg("Scheduled session revocation")

	if saveErr != nil {
		return e.ExpiresAt, fmt.Errorf("persist pending revocation: %w", saveErr)
	}

	return e.ExpiresAt, nil
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

// lockKey serializes store writes and timer changes for one key. The
// returned func releases it.
func (r *Registry) lockKey(key string) func() {
	r.mu.Lock()
	l, ok := r.keyLocks[key]
	if !ok {
		l = &keyLock{}
		r.keyLocks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.keyLocks, key)
		}
		r.mu.Unlock()
	}
}

// arm must be called with r.mu held.
func (r *Registry) arm(e Entry, now time.Time) bool {
	old, replaced := r.entries[e.Key]
	if replaced {
		old.timer.Stop()
	}

	r.gen++
	s := &scheduled{entry: e, gen: r.gen}

	delay := e.ExpiresAt.Sub(now)
	if delay < 0 {
		delay = 0
	}

	key, gen := e.Key, s.gen
	s.timer = r.clock.AfterFunc(delay, func() { r.fire(key, gen) })
	r.entries[e.Key] = s

	return replaced
}

// UnregisterByToken cancels the pending revocation carrying token. It
// reports whether one was found.
func (r *Registry) UnregisterByToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	key := r.keyForToken(token)
	if key == "" {
		return false
	}

	unlock := r.lockKey(key)
	defer unlock()

	r.mu.Lock()
	s, ok := r.entries[key]
	if !ok || s.entry.Token != token {
		r.mu.Unlock()
		return false
	}

	s.timer.Stop()
	delete(r.entries, key)
	r.mu.Unlock()

	if err := r.store.Delete(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete pending revocation")
	}

	r.logger.Info().Str("key", key).Msg("Session revocation cancelled")

	return true
}

func (r *Registry) keyForToken(token string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, s := range r.entries {
		if s.entry.Token == token {
			return k
		}
	}

	return ""
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// Entries returns a snapshot ordered by expiry with router secrets redacted.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	out := make([]Entry, 0, len(r.entries))

	for _, s := range r.entries {
		e := s.entry
		e.Router = e.Router.Redacted()
		out = append(out, e)
	}
	r.mu.Unlock()

	sortEntries(out)

	return out
}

func (r *Registry) fire(key string, gen uint64) {
	unlock := r.lockKey(key)

	r.mu.Lock()

	s, ok := r.entries[key]
	if !ok || s.gen != gen || r.closed {
		r.mu.Unlock()
		unlock()

		return
	}

	delete(r.entries, key)
	r.wg.Add(1)
	r.mu.Unlock()

	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.revokeTimeout)
	defer cancel()

	if err := r.store.Delete(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete pending revocation")
	}

	unlock()

	r.revoke(ctx, &s.entry)
}

func (r *Registry) revoke(ctx context.Context, e *Entry) {
	cmds := r.builder.Removal(hotspot.Intent{IP: e.IP, MAC: e.MAC, Username: e.Username})
	if len(cmds) == 0 {
		return
	}

	_, err := r.executor.Execute(ctx, e.Router, cmds)

	result := models.ResultSuccess
	if err != nil {
		result = models.ResultFail

		r.logger.Error().
			Err(err).
			Str("key", e.Key).
			Str("host", e.Router.Host).
			Msg("Automatic session revocation failed")
		recordRevocation(ctx, resultRevokeFailed)
	} else {
		r.logger.Info().
			Str("key", e.Key).
			Str("host", e.Router.Host).
			Int("commands", len(cmds)).
			Msg("Session revoked")
		recordRevocation(ctx, resultRevokeSucceeded)
	}

	meta := map[string]interface{}{
		"mikrotikId": e.Router.Host,
		"ip":         e.IP,
		"mac":        e.MAC,
		"token":      e.Token,
	}
	if err != nil {
		meta["error"] = models.ErrorCode(err)
	}

	r.recorder.RecordQuietly(ctx, &models.AuditRecord{
		Event:    models.EventSessionRevoke,
		EntityID: e.Key,
		IP:       e.IP,
		Result:   result,
		Metadata: meta,
	})
}

// Restore re-arms revocations persisted by a previous process. Rows whose
// host no longer resolves are dropped. Already expired rows fire at once.
func (r *Registry) Restore(ctx context.Context, resolver HostResolver) (int, error) {
	rows, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending revocations: %w", err)
	}

	restored := 0
	now := r.clock.Now()

	for i := range rows {
		row := rows[i]

		creds, resolveErr := resolver.ResolveHost(ctx, row.Host)
		if resolveErr != nil {
			r.logger.Warn().Err(resolveErr).Str("key", row.Key).Str("host", row.Host).
				Msg("Dropping pending revocation for unknown router")

			if err := r.store.Delete(ctx, row.Key); err != nil {
				r.logger.Warn().Err(err).Str("key", row.Key).Msg("Failed to delete pending revocation")
			}

			continue
		}

		if row.Port > 0 {
			creds.Port = row.Port
		}

		e := Entry{
			Key:       row.Key,
			Token:     row.Token,
			IP:        row.IP,
			MAC:       row.MAC,
			Username:  row.Username,
			Router:    creds,
			ExpiresAt: row.ExpiresAt,
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return restored, errRegistryClosed
		}

		if _, exists := r.entries[e.Key]; !exists {
			r.arm(e, now)
			restored++
		}
		r.mu.Unlock()
	}

	if restored > 0 {
		r.logger.Info().Int("count", restored).Msg("Restored pending session revocations")
	}

	return restored, nil
}

// Close stops every timer and waits for in-flight revocations. Pending rows
// stay in the store for the next Restore.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true

	for _, s := range r.entries {
		s.timer.Stop()
	}
	r.mu.Unlock()

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recordOf(e *Entry) Record {
	return Record{
		Key:       e.Key,
		Token:     e.Token,
		IP:        e.IP,
		MAC:       e.MAC,
		Username:  e.Username,
		Host:      e.Router.Host,
		Port:      e.Router.Port,
		ExpiresAt: e.ExpiresAt,
	}
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].ExpiresAt.Before(es[j].ExpiresAt) })
}
