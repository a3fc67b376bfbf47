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

package alerts

import (
	"context"
	"sync"

	"github.com/carverauto/hotspot-relay/pkg/logger"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const defaultWatchQueue = 1024

// Watcher feeds appended release records to the engine off the caller's
// goroutine. It implements audit.Observer.
type Watcher struct {
	engine *Engine
	logger logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan models.AuditRecord

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher starts the evaluation goroutine. A non-positive size uses the
// default queue length.
func NewWatcher(engine *Engine, size int, log logger.Logger) *Watcher {
	if size <= 0 {
		size = defaultWatchQueue
	}

	w := &Watcher{
		engine: engine,
		logger: log,
		queue:  make(chan models.AuditRecord, size),
		done:   make(chan struct{}),
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	go w.run()

	return w
}

// Observe queues release records for evaluation. Other events and records
// arriving on a full queue are skipped.
func (w *Watcher) Observe(_ context.Context, rec models.AuditRecord) {
	if !rec.IsRelease() {
		return
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return
	}

	select {
	case w.queue <- rec:
	default:
		w.logger.Warn().Str("event", rec.Event).Str("requestId", rec.RequestID).Msg("Alert watcher queue full, skipping record")
	}
}

// Close stops intake and waits for queued records to be evaluated.
func (w *Watcher) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		w.cancel()

		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done

		return ctx.Err()
	}
}

func (w *Watcher) run() {
	defer close(w.done)

	for rec := range w.queue {
		if w.ctx.Err() != nil {
			continue
		}

		w.engine.Process(w.ctx, &rec)
	}
}
