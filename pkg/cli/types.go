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

// Package cli implements relayctl, the operator client for a relay's signed
// endpoints.
package cli

import "time"

// CmdConfig holds the parsed command line.
type CmdConfig struct {
	Help   bool
	SubCmd string
	Args   []string

	Addr    string
	Token   string
	Secret  string
	Timeout time.Duration

	DeviceID  string
	Sentences []string
	Since     time.Duration
}

// SubcommandHandler defines the interface for parsing subcommand flags.
type SubcommandHandler interface {
	Parse(args []string, cfg *CmdConfig) error
}
