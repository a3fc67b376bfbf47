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

package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carverauto/hotspot-relay/pkg/audit"
	"github.com/carverauto/hotspot-relay/pkg/models"
)

const auditColumns = `id, request_id, event, actor_id, ip, entity_id, result, metadata, created_at`

// AuditStore implements audit.Store on the audit_logs table.
type AuditStore struct {
	db querier
}

func NewAuditStore(db querier) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	meta := rec.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}

	_, err := s.db.Exec(ctx, `INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.RequestID, rec.Event, rec.ActorID, rec.IP, rec.EntityID, rec.Result, meta, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	return nil
}

func (s *AuditStore) Query(ctx context.Context, q audit.Query) ([]models.AuditRecord, error) {
	sql, args := buildAuditQuery(q)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	out := make([]models.AuditRecord, 0)

	for rows.Next() {
		var rec models.AuditRecord

		if err := rows.Scan(
			&rec.ID, &rec.RequestID, &rec.Event, &rec.ActorID, &rec.IP,
			&rec.EntityID, &rec.Result, &rec.Metadata, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}

		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}

	return out, nil
}

func (s *AuditStore) Transition(ctx context.Context, id, from, to string, meta map[string]interface{}) (bool, error) {
	if meta == nil {
		meta = map[string]interface{}{}
	}

	tag, err := s.db.Exec(ctx, `UPDATE audit_logs
		SET result = $3, metadata = metadata || $4::jsonb
		WHERE id = $1 AND result = $2`,
		id, from, to, meta)
	if err != nil {
		return false, fmt.Errorf("transition audit record: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM audit_logs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("look up audit record: %w", err)
	}

	if !exists {
		return false, audit.ErrRecordNotFound
	}

	return false, nil
}

func buildAuditQuery(q audit.Query) (string, []any) {
	var (
		where []string
		args  []any
	)

	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if q.Event != "" {
		add("event = $%d", q.Event)
	}

	if q.Result != "" {
		add("result = $%d", q.Result)
	}

	if !q.Since.IsZero() {
		add("created_at >= $%d", q.Since)
	}

	if !q.Until.IsZero() {
		add("created_at <= $%d", q.Until)
	}

	var b strings.Builder

	b.WriteString("SELECT " + auditColumns + " FROM audit_logs")

	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	if q.Order == audit.OrderDesc {
		b.WriteString(" ORDER BY created_at DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY created_at ASC, id ASC")
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	return b.String(), args
}
