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

package api

import (
	"context"
	"time"

	"github.com/carverauto/hotspot-relay/pkg/access"
	"github.com/carverauto/hotspot-relay/pkg/mikrotik"
	"github.com/carverauto/hotspot-relay/pkg/models"
	"github.com/carverauto/hotspot-relay/pkg/sessions"
)

const serviceName = "hotspot-relay"

// AccessService grants and resyncs client access.
type AccessService interface {
	AuthorizeByPedido(ctx context.Context, p *access.Payload, opts access.Options) (*access.Result, error)
	ResyncDevice(ctx context.Context, p *access.Payload) (*access.Result, error)
}

// SessionRegistry exposes the pending revocations.
type SessionRegistry interface {
	UnregisterByToken(ctx context.Context, token string) bool
	Entries() []sessions.Entry
	Len() int
}

// AlertReplayer re-evaluates a backlog of audit records.
type AlertReplayer interface {
	Replay(ctx context.Context, since time.Time) ([]models.AlertEvent, error)
}

// AlertQueue reports the number of alerts awaiting delivery.
type AlertQueue interface {
	Queued() int
}

type counter interface {
	Len() int
}

// ExecRequest is the body of /relay/exec and /relay/exec2.
type ExecRequest struct {
	Host      string        `json:"host"`
	User      string        `json:"user"`
	Pass      string        `json:"pass"`
	Port      models.Port   `json:"port"`
	Command   string        `json:"command"`
	Sentences []interface{} `json:"sentences"`
}

// ExecByDeviceRequest is the body of /relay/exec-by-device.
type ExecByDeviceRequest struct {
	DeviceID  string        `json:"deviceId"`
	MikID     string        `json:"mikId"`
	Command   string        `json:"command"`
	Sentences []interface{} `json:"sentences"`
}

type ExecResponse struct {
	OK      bool              `json:"ok"`
	Results []mikrotik.Result `json:"results"`
}

type HealthResponse struct {
	OK           bool      `json:"ok"`
	Service      string    `json:"service"`
	Timestamp    time.Time `json:"timestamp"`
	DefaultHost  bool      `json:"defaultHost"`
	Version      string    `json:"version,omitempty"`
	Sessions     *int      `json:"sessions,omitempty"`
	Devices      *int      `json:"devices,omitempty"`
	AlertsQueued *int      `json:"alertsQueued,omitempty"`
}

// AuditRequest is an externally produced audit record.
type AuditRequest struct {
	RequestID string                 `json:"requestId"`
	Event     string                 `json:"event"`
	ActorID   string                 `json:"actorId"`
	IP        string                 `json:"ip"`
	EntityID  string                 `json:"entityId"`
	Result    string                 `json:"result"`
	Metadata  map[string]interface{} `json:"metadata"`
}

type AuditResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// SessionView is a pending revocation without router credentials.
type SessionView struct {
	Key       string    `json:"key"`
	Token     string    `json:"token,omitempty"`
	IP        string    `json:"ip,omitempty"`
	MAC       string    `json:"mac,omitempty"`
	Username  string    `json:"username,omitempty"`
	Host      string    `json:"host"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SessionsResponse struct {
	OK       bool          `json:"ok"`
	Sessions []SessionView `json:"sessions"`
}

type ReplayRequest struct {
	SinceMinutes int `json:"sinceMinutes"`
}

type ReplayResponse struct {
	OK     bool                `json:"ok"`
	Alerts []models.AlertEvent `json:"alerts"`
}

type okResponse struct {
	OK bool `json:"ok"`
}
