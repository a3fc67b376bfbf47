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

import "errors"

var (
	errUnknownCommand   = errors.New("unknown command")
	errMissingAddr      = errors.New("relay address is required (-addr or RELAY_ADDR)")
	errMissingSecret    = errors.New("api secret is required (-secret or RELAY_API_SECRET)")
	errMissingSentences = errors.New("exec requires at least one command")
	errNegativeSince    = errors.New("-since must not be negative")
)
