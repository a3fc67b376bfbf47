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
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/carverauto/hotspot-relay/pkg/models"
)

// MemoryStore keeps records in process memory. It is used when no database
// is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.AuditRecord
	index   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func (s *MemoryStore) Append(_ context.Context, rec *models.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, copyRecord(rec))

	return nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]models.AuditRecord, error) {
	s.mu.RLock()

	out := make([]models.AuditRecord, 0)

	for i := range s.records {
		if q.Matches(&s.records[i]) {
			out = append(out, copyRecord(&s.records[i]))
		}
	}

	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if q.Order == OrderDesc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}

		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	return out, nil
}

func (s *MemoryStore) Transition(_ context.Context, id, from, to string, meta map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false, ErrRecordNotFound
	}

	rec := &s.records[i]
	if rec.Result != from {
		return false, nil
	}

	rec.Result = to

	if len(meta) > 0 {
		merged := make(map[string]interface{}, len(rec.Metadata)+len(meta))
		for k, v := range rec.Metadata {
			merged[k] = v
		}

		for k, v := range meta {
			merged[k] = v
		}

		rec.Metadata = merged
	}

	return true, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

func copyRecord(r *models.AuditRecord) models.AuditRecord {
	out := *r

	if r.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}

	return out
}
