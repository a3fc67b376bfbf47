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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{
			name: "slash path with args",
			in:   "/ip/firewall/address-list/add list=paid_clients address=10.0.0.5 comment=relay",
			want: Command{
				Path: "/ip/firewall/address-list/add",
				Args: []Arg{{"list", "paid_clients"}, {"address", "10.0.0.5"}, {"comment", "relay"}},
			},
		},
		{
			name: "space separated menu",
			in:   "/ip hotspot user add name=abc password=abc",
			want: Command{
				Path: "/ip/hotspot/user/add",
				Args: []Arg{{"name", "abc"}, {"password", "abc"}},
			},
		},
		{
			name: "find filter",
			in:   "/ip/hotspot/ip-binding/remove [find mac-address=AA:BB:CC:DD:EE:FF]",
			want: Command{
				Path: "/ip/hotspot/ip-binding/remove",
				Find: []Arg{{"mac-address", "AA:BB:CC:DD:EE:FF"}},
			},
		},
		{
			name: "quoted value",
			in:   `/ip/hotspot/user/add name=u comment="pedido:abcd1234 plano:day"`,
			want: Command{
				Path: "/ip/hotspot/user/add",
				Args: []Arg{{"name", "u"}, {"comment", "pedido:abcd1234 plano:day"}},
			},
		},
		{
			name: "bare print",
			in:   "/system/resource/print",
			want: Command{Path: "/system/resource/print"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCommand(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, in := range []string{
		"",
		`/ip/hotspot/user/add comment="open`,
		"/ip/hotspot/user/remove [find name=x",
		"/ip/hotspot/user/add name=x stray",
		"/ip/hotspot/user/remove [where name=x]",
		"/ip/hotspot/user/add =x",
	} {
		_, err := ParseCommand(in)
		assert.Error(t, err, in)
	}
}

func TestCommandStringParsesBack(t *testing.T) {
	cmds := []Command{
		{
			Path: "/ip/hotspot/ip-binding/add",
			Args: []Arg{{"mac-address", "AA:BB:CC:DD:EE:FF"}, {"type", "bypassed"}, {"comment", "pedido:1 plano:x"}},
		},
		{
			Path: "/ip/firewall/address-list/remove",
			Find: []Arg{{"list", "paid_clients"}, {"address", "10.0.0.5"}},
		},
		{
			Path: "/ip/hotspot/user/add",
			Args: []Arg{{"name", "u"}, {"comment", ""}},
		},
	}

	for _, cmd := range cmds {
		parsed, err := ParseCommand(cmd.String())
		require.NoError(t, err, cmd.String())
		assert.Equal(t, cmd, parsed)
	}

	assert.Equal(t,
		"/ip/firewall/address-list/remove [find list=paid_clients address=10.0.0.5]",
		cmds[1].String())
}

func TestCommandWords(t *testing.T) {
	cmd := Command{
		Path: "/ip/hotspot/user/remove",
		Find: []Arg{{"name", "abc"}},
	}

	assert.Equal(t, []string{"/ip/hotspot/user/print", "=.proplist=.id", "?name=abc"}, cmd.queryWords())
	assert.Equal(t, []string{"/ip/hotspot/user/remove", "=numbers=*1,*2"}, cmd.targetWords([]string{"*1", "*2"}))

	add := Command{Path: "/ip/hotspot/user/add", Args: []Arg{{"name", "abc"}}}
	assert.Equal(t, []string{"/ip/hotspot/user/add", "=name=abc"}, add.Words())

	raw := Command{Raw: []string{"/interface/print", "?type=ether"}}
	assert.Equal(t, raw.Raw, raw.Words())
	assert.False(t, raw.Empty())
	assert.True(t, Command{}.Empty())
}

func TestNormalizeSentences(t *testing.T) {
	cmds, err := NormalizeSentences("/ignored/print", []interface{}{
		"/ip/address/print",
		[]interface{}{"/interface/print", "?type=ether", float64(1)},
		nil,
		"  ",
	})
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "/ip/address/print", cmds[0].Path)
	assert.Equal(t, []string{"/interface/print", "?type=ether", "1"}, cmds[1].Raw)

	cmds, err = NormalizeSentences("/system/identity/print", nil)
	require.NoError(t, err)
	require.Len(t, cmds, 1)

	_, err = NormalizeSentences("  ", []interface{}{})
	require.ErrorIs(t, err, ErrMissingCommand)

	_, err = NormalizeSentences("", []interface{}{map[string]interface{}{}})
	require.ErrorIs(t, err, ErrInvalidCommand)
}
