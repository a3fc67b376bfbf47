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

package cli

import (
	"fmt"
	"io"
)

// ShowHelp writes the usage message.
func ShowHelp(w io.Writer) {
	fmt.Fprint(w, `relayctl: signed client for a hotspot relay
Usage:
  relayctl [global options] <command> [options]

Commands:
  health    Show relay health with session, device and alert queue counts
  exec      Run RouterOS commands on a registered device
  replay    Re-evaluate alert rules over a window of the audit log

Global options (each falls back to an environment variable):
  -addr string      relay base URL (RELAY_ADDR)
  -token string     bearer token (RELAY_TOKEN)
  -secret string    HMAC API secret (RELAY_API_SECRET)
  -timeout duration request timeout (default 20s)

Options for exec:
  -device string    device id; empty targets the default device
  remaining arguments are command sentences

Options for replay:
  -since duration   window to replay (default 1h)

Examples:
  relayctl -addr https://relay.local:4000 health
  relayctl exec -device bus-7 /system/identity/print '/ip/hotspot/active/print'
  relayctl replay -since 30m
`)
}
