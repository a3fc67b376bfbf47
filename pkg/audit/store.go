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

//go:generate mockgen -destination=mock_store.go -package=audit github.com/carverauto/hotspot-relay/pkg/audit Store

// Package audit records and reads the append-only audit log.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/models"
)

var ErrRecordNotFound = errors.New("audit record not found")

type Order int

const (
	OrderAsc Order = iota
	OrderDesc
)

// Query selects records. Zero-valued fields do not filter. Since is
// inclusive, Until is inclusive; results are ordered by CreatedAt.
type Query struct {
	Event  string
	Result string
	Since  time.Time
	Until  time.Time
	Order  Order
	Limit  int
}

// Matches reports whether r passes every filter of q.
func (q Query) Matches(r *models.AuditRecord) bool {
	if q.Event != "" && r.Event != q.Event {
		return false
	}

	if q.Result != "" && r.Result != q.Result {
		return false
	}

	if !q.Since.IsZero() && r.CreatedAt.Before(q.Since) {
		return false
	}

	if !q.Until.IsZero() && r.CreatedAt.After(q.Until) {
		return false
	}

	return true
}

// Store persists audit records.
type Store interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
	Query(ctx context.Context, q Query) ([]models.AuditRecord, error)
	// Transition moves a record from one result to another, merging meta
	// into its metadata. It reports false when the record is not in from.
	Transition(ctx context.Context, id, from, to string, meta map[string]interface{}) (bool, error)
}
