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

// Package hotspot maps client grants to RouterOS hotspot commands.
package hotspot

import (
	"github.com/carverauto/hotspot-relay/pkg/mikrotik"
)

const (
	DefaultListName = "paid_clients"
	DefaultServer   = "hotspot1"
)

// Intent identifies the client a grant or revocation applies to.
type Intent struct {
	IP       string
	MAC      string
	Username string
	Comment  string
}

// Empty reports whether the intent names no client at all.
func (i Intent) Empty() bool {
	return i.IP == "" && i.MAC == "" && i.Username == ""
}

// Builder produces command lists. It has no side effects.
type Builder struct {
	ListName string
	Server   string
}

func NewBuilder(listName, server string) Builder {
	if listName == "" {
		listName = DefaultListName
	}

	if server == "" {
		server = DefaultServer
	}

	return Builder{ListName: listName, Server: server}
}

// Authorize returns the commands granting access, ordered address-list,
// ip-binding, hotspot user.
func (b Builder) Authorize(in Intent) []mikrotik.Command {
	var cmds []mikrotik.Command

	if in.IP != "" {
		cmds = append(cmds, mikrotik.Command{
			Path: "/ip/firewall/address-list/add",
			Args: []mikrotik.Arg{
				{Key: "list", Value: b.ListName},
				{Key: "address", Value: in.IP},
				{Key: "comment", Value: in.Comment},
			},
		})
	}

	if in.MAC != "" {
		args := []mikrotik.Arg{{Key: "mac-address", Value: in.MAC}}
		if in.IP != "" {
			args = append(args, mikrotik.Arg{Key: "address", Value: in.IP})
		}

		args = append(args,
			mikrotik.Arg{Key: "type", Value: "bypassed"},
			mikrotik.Arg{Key: "server", Value: b.Server},
			mikrotik.Arg{Key: "comment", Value: in.Comment},
		)

		cmds = append(cmds, mikrotik.Command{Path: "/ip/hotspot/ip-binding/add", Args: args})
	}

	if in.Username != "" {
		cmds = append(cmds, mikrotik.Command{
			Path: "/ip/hotspot/user/add",
			Args: []mikrotik.Arg{
				{Key: "name", Value: in.Username},
				{Key: "password", Value: in.Username},
				{Key: "comment", Value: in.Comment},
			},
		})
	}

	return cmds
}

// Removal returns the commands undoing any grant for the client. Each one
// filters by the client's identity, so running it against a device with no
// such entry changes nothing.
func (b Builder) Removal(in Intent) []mikrotik.Command {
	var cmds []mikrotik.Command

	if in.IP != "" {
		cmds = append(cmds, mikrotik.Command{
			Path: "/ip/firewall/address-list/remove",
			Find: []mikrotik.Arg{{Key: "list", Value: b.ListName}, {Key: "address", Value: in.IP}},
		})
	}

	if in.MAC != "" {
		cmds = append(cmds,
			mikrotik.Command{
				Path: "/ip/hotspot/ip-binding/remove",
				Find: []mikrotik.Arg{{Key: "mac-address", Value: in.MAC}},
			},
			mikrotik.Command{
				Path: "/interface/wireless/access-list/remove",
				Find: []mikrotik.Arg{{Key: "mac-address", Value: in.MAC}},
			},
		)
	}

	if in.Username != "" {
		cmds = append(cmds, mikrotik.Command{
			Path: "/ip/hotspot/user/remove",
			Find: []mikrotik.Arg{{Key: "name", Value: in.Username}},
		})
	}

	return cmds
}

// Resync returns Removal followed by Authorize.
func (b Builder) Resync(in Intent) []mikrotik.Command {
	removal := b.Removal(in)
	authorize := b.Authorize(in)

	if len(removal)+len(authorize) == 0 {
		return nil
	}

	return append(removal, authorize...)
}

// Build returns Resync when resync is set, Authorize otherwise.
func (b Builder) Build(in Intent, resync bool) []mikrotik.Command {
	if resync {
		return b.Resync(in)
	}

	return b.Authorize(in)
}
