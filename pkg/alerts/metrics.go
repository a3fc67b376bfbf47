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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName             = "hotspot-relay.alerts"
	metricAlertsEmitted   = "relay_alerts_emitted_total"
	metricAlertsSuppressed = "relay_alerts_suppressed_total"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	emittedCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	suppressedCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	var err error

	emittedCounter, err = meter.Int64Counter(
		metricAlertsEmitted,
		metric.WithDescription("Alerts delivered to sinks by rule"),
	)
	if err != nil {
		otel.Handle(err)
	}

	suppressedCounter, err = meter.Int64Counter(
		metricAlertsSuppressed,
		metric.WithDescription("Alerts suppressed by cooldown by rule"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

func recordEmitted(ctx context.Context, rule string) {
	meterOnce.Do(initMeter)

	if emittedCounter != nil {
		emittedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
	}
}

func recordSuppressed(ctx context.Context, rule string) {
	meterOnce.Do(initMeter)

	if suppressedCounter != nil {
		suppressedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
	}
}
