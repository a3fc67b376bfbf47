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

// Package devices maps logical device ids to router credentials.
package devices

import (
	"context"
	"fmt"

	"github.com/carverauto/hotspot-relay/pkg/models"
)

var ErrDeviceNotFound = models.NewCodedError("device_not_found")

// Resolver finds the credentials of a router.
type Resolver interface {
	Resolve(ctx context.Context, id string) (models.RouterCredentials, error)
	ResolveHost(ctx context.Context, host string) (models.RouterCredentials, error)
}

// StaticResolver serves devices declared in configuration. An empty id
// resolves to the default device when one is configured.
type StaticResolver struct {
	byID   map[string]models.DeviceConfig
	byHost map[string]models.DeviceConfig
	def    models.RouterCredentials
}

func NewStaticResolver(devices []models.DeviceConfig, def models.RouterCredentials) *StaticResolver {
	r := &StaticResolver{
		byID:   make(map[string]models.DeviceConfig, len(devices)),
		byHost: make(map[string]models.DeviceConfig, len(devices)),
		def:    def.WithDefaultPort(),
	}

	for _, d := range devices {
		r.byID[d.ID] = d

		if _, dup := r.byHost[d.Host]; !dup {
			r.byHost[d.Host] = d
		}
	}

	return r
}

func (r *StaticResolver) Resolve(_ context.Context, id string) (models.RouterCredentials, error) {
	if id == "" {
		if r.def.Complete() {
			return r.def, nil
		}

		return models.RouterCredentials{}, fmt.Errorf("no default device: %w", ErrDeviceNotFound)
	}

	if d, ok := r.byID[id]; ok {
		return d.Credentials(), nil
	}

	return models.RouterCredentials{}, fmt.Errorf("device %q: %w", id, ErrDeviceNotFound)
}

func (r *StaticResolver) ResolveHost(_ context.Context, host string) (models.RouterCredentials, error) {
	if d, ok := r.byHost[host]; ok {
		return d.Credentials(), nil
	}

	if host != "" && host == r.def.Host && r.def.Complete() {
		return r.def, nil
	}

	return models.RouterCredentials{}, fmt.Errorf("host %q: %w", host, ErrDeviceNotFound)
}

// Default returns the default device and whether it is usable.
func (r *StaticResolver) Default() (models.RouterCredentials, bool) {
	return r.def, r.def.Complete()
}

// Len returns the number of declared devices, not counting the default.
func (r *StaticResolver) Len() int {
	return len(r.byID)
}
