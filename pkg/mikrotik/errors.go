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

package mikrotik

import (
	"fmt"

	"github.com/carverauto/hotspot-relay/pkg/models"
)

var (
	ErrMissingCommand     = models.NewCodedError("missing_command")
	ErrMissingCredentials = models.NewCodedError("missing_router_credentials")
	ErrUnreachable        = models.NewCodedError("relay_unreachable")
	ErrInvalidCommand     = models.NewCodedError("invalid_command")
)

// CommandError reports which command of a batch failed. Commands before
// Index have already been applied on the device.
type CommandError struct {
	Index   int
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %d (%s): %v", e.Index, e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
