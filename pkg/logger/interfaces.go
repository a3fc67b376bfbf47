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

package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger is the logging surface every relay component depends on.
type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	Panic() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) zerolog.Logger
	WithFields(fields map[string]interface{}) zerolog.Logger
	SetLevel(level zerolog.Level)
	SetDebug(debug bool)
}

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	zerolog.Logger
}

// New wraps l so it satisfies Logger.
func New(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{Logger: l}
}

func (z *ZerologLogger) Trace() *zerolog.Event { return z.Logger.Trace() }
func (z *ZerologLogger) Debug() *zerolog.Event { return z.Logger.Debug() }
func (z *ZerologLogger) Info() *zerolog.Event  { return z.Logger.Info() }
func (z *ZerologLogger) Warn() *zerolog.Event  { return z.Logger.Warn() }
func (z *ZerologLogger) Error() *zerolog.Event { return z.Logger.Error() }
func (z *ZerologLogger) Fatal() *zerolog.Event { return z.Logger.Fatal() }
func (z *ZerologLogger) Panic() *zerolog.Event { return z.Logger.Panic() }
func (z *ZerologLogger) With() zerolog.Context { return z.Logger.With() }

func (z *ZerologLogger) WithComponent(component string) zerolog.Logger {
	return z.Logger.With().Str("component", component).Logger()
}

func (z *ZerologLogger) WithFields(fields map[string]interface{}) zerolog.Logger {
	return z.Logger.With().Fields(fields).Logger()
}

func (z *ZerologLogger) SetLevel(level zerolog.Level) {
	z.Logger = z.Logger.Level(level)
}

func (z *ZerologLogger) SetDebug(debug bool) {
	if debug {
		z.SetLevel(zerolog.DebugLevel)
	} else {
		z.SetLevel(zerolog.InfoLevel)
	}
}

// Component derives a Logger tagged with the given component name.
func Component(l Logger, component string) Logger {
	return New(l.WithComponent(component))
}

// NewTestLogger creates a no-op logger for testing that discards all output
func NewTestLogger() Logger {
	return New(zerolog.New(io.Discard).Level(zerolog.Disabled))
}
