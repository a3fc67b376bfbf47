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

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

// Observer is notified after a record has been appended. Observe must not
// block; slow work belongs on the observer's own goroutine.
type Observer interface {
	Observe(ctx context.Context, rec models.AuditRecord)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, rec models.AuditRecord)

func (f ObserverFunc) Observe(ctx context.Context, rec models.AuditRecord) { f(ctx, rec) }

// Recorder is the single write path into the audit log.
type Recorder struct {
	store  Store
	now    func() time.Time
	logger logger.Logger

	mu        sync.RWMutex
	observers []Observer
}

func NewRecorder(store Store, log logger.Logger) *Recorder {
	return &Recorder{store: store, now: time.Now, logger: log}
}

// Store returns the backing store.
func (r *Recorder) Store() Store {
	return r.store
}

// AddObserver registers o for every subsequent append.
func (r *Recorder) AddObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers = append(r.observers, o)
}

// Record fills in the id, request id and timestamp when absent, appends
// rec and notifies observers.
func (r *Recorder) Record(ctx context.Context, rec *models.AuditRecord) error {
	if rec.Event == "" {
		return fmt.Errorf("audit record without event")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if rec.RequestID == "" {
		rec.RequestID = rec.ID
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	if rec.Metadata == nil {
		rec.Metadata = map[string]interface{}{}
	}

	if err := r.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()

	for _, o := range observers {
		o.Observe(ctx, *rec)
	}

	return nil
}

// RecordQuietly records rec and logs instead of returning a failure. Audit
// writes on the access path must never fail the operation they describe.
func (r *Recorder) RecordQuietly(ctx context.Context, rec *models.AuditRecord) {
	if r == nil {
		return
	}

	if err := r.Record(ctx, rec); err != nil {
		r.logger.Error().Err(err).Str("event", rec.Event).Msg("Failed to write audit record")
	}
}
