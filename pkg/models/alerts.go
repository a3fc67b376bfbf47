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

type AlertRule string

const (
	RuleFailConcentrated      AlertRule = "MIKROTIK_FAIL_CONCENTRATED"
	RuleFailDistributed       AlertRule = "MIKROTIK_FAIL_DISTRIBUTED"
	RuleFailSuccessInterleave AlertRule = "MIKROTIK_FAIL_SUCCESS_INTERLEAVE"
)

type AlertSeverity string

const (
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// UnknownTarget groups alerts that carry neither a device id nor an order code.
const UnknownTarget = "unknown"

type AlertEvidence struct {
	Count          int      `json:"count"`
	WindowMinutes  int      `json:"windowMinutes"`
	SampleEventIDs []string `json:"sampleEventIds"`
}

// AlertEvent is produced by the rule engine and consumed by the dispatcher.
// It is never stored directly; an ALERT_SENT record marks its delivery.
type AlertEvent struct {
	Rule            AlertRule         `json:"rule"`
	Severity        AlertSeverity     `json:"severity"`
	Summary         string            `json:"summary"`
	Context         map[string]string `json:"context,omitempty"`
	Evidence        AlertEvidence     `json:"evidence"`
	CooldownMinutes int               `json:"cooldownMinutes,omitempty"`
}

// Target is the dedup key of the alert.
func (a *AlertEvent) Target() string {
	if v := a.Context["mikrotikId"]; v != "" {
		return v
	}

	if v := a.Context["orderCode"]; v != "" {
		return v
	}

	return UnknownTarget
}
