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

package models

import (
	"fmt"
	"strings"
	"time"
)

// Audit event tags.
const (
	EventReleaseAttempt   = "MIKROTIK_RELEASE_ATTEMPT"
	EventReleaseSuccess   = "MIKROTIK_RELEASE_SUCCESS"
	EventReleaseFail      = "MIKROTIK_RELEASE_FAIL"
	EventAlertSent        = "ALERT_SENT"
	EventReleaseRequested = "WEBHOOK_RELEASE_REQUESTED"
	EventSessionRevoke    = "SESSION_AUTO_REVOKE"

	// EventReleasePrefix is shared by every release lifecycle tag.
	EventReleasePrefix = "MIKROTIK_RELEASE"
)

// Audit results.
const (
	ResultAttempt    = "ATTEMPT"
	ResultSuccess    = "SUCCESS"
	ResultFail       = "FAIL"
	ResultFailed     = "FAILED"
	ResultPending    = "PENDING"
	ResultProcessing = "PROCESSING"
	ResultSent       = "SENT"
)

// AuditRecord is one entry of the append-only audit log.
type AuditRecord struct {
	ID        string                 `json:"id"`
	RequestID string                 `json:"requestId"`
	Event     string                 `json:"event"`
	ActorID   string                 `json:"actorId,omitempty"`
	IP        string                 `json:"ip,omitempty"`
	EntityID  string                 `json:"entityId,omitempty"`
	Result    string                 `json:"result"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// IsRelease reports whether the record belongs to the release lifecycle.
func (r *AuditRecord) IsRelease() bool {
	return strings.HasPrefix(r.Event, EventReleasePrefix)
}

// MetaString returns a metadata value as a string. Dotted keys descend into
// nested maps, so "mikrotik.host" reads Metadata["mikrotik"]["host"].
func (r *AuditRecord) MetaString(key string) string {
	if r == nil || r.Metadata == nil {
		return ""
	}

	var cur interface{} = r.Metadata

	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return ""
		}

		cur, ok = m[part]
		if !ok {
			return ""
		}
	}

	switch v := cur.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64, int, int64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// MikrotikID returns the device identifier the record refers to.
func (r *AuditRecord) MikrotikID() string {
	if id := r.MetaString("mikrotikId"); id != "" {
		return id
	}

	return r.MetaString("mikrotik.host")
}

// OrderCode returns the order correlation id carried by the record.
func (r *AuditRecord) OrderCode() string {
	return r.MetaString("orderCode")
}
