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

	"github.com/carverauto/hotspot-relay/pkg/sessions"
)

// RevocationStore implements sessions.Store on the pending_revocations table.
type RevocationStore struct {
	db querier
}

func NewRevocationStore(db querier) *RevocationStore {
	return &RevocationStore{db: db}
}

func (s *RevocationStore) Save(ctx context.Context, rec sessions.Record) error {
	_, err := s.db.Exec(ctx, `INSERT INTO pending_revocations
		(key, token, ip, mac, username, host, port, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO UPDATE SET
			token = EXCLUDED.token,
			ip = EXCLUDED.ip,
			mac = EXCLUDED.mac,
			username = EXCLUDED.username,
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			expires_at = EXCLUDED.expires_at`,
		rec.Key, rec.Token, rec.IP, rec.MAC, rec.Username, rec.Host, rec.Port, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save pending revocation: %w", err)
	}

	return nil
}

func (s *RevocationStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM pending_revocations WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete pending revocation: %w", err)
	}

	return nil
}

func (s *RevocationStore) List(ctx context.Context) ([]sessions.Record, error) {
	rows, err := s.db.Query(ctx, `SELECT key, token, ip, mac, username, host, port, expires_at
		FROM pending_revocations ORDER BY expires_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending revocations: %w", err)
	}
	defer rows.Close()

	var out []sessions.Record

	for rows.Next() {
		var r sessions.Record
		if err := rows.Scan(&r.Key, &r.Token, &r.IP, &r.MAC, &r.Username, &r.Host, &r.Port, &r.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan pending revocation: %w", err)
		}

		r.ExpiresAt = r.ExpiresAt.UTC()
		out = append(out, r)
	}

	return out, rows.Err()
}
