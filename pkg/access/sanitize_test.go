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

package access

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeIP(t *testing.T) {
	assert.Equal(t, "10.0.0.5", sanitizeIP(" 10.0.0.5 "))
	assert.Equal(t, "fe80::1", sanitizeIP("fe80::1"))
	assert.Empty(t, sanitizeIP("10.0.0"))
	assert.Empty(t, sanitizeIP("host.example"))
	assert.Empty(t, sanitizeIP(""))
}

func TestSanitizeMAC(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", sanitizeMAC("aa:bb:cc:dd:ee:ff"))
	assert.Empty(t, sanitizeMAC("aa-bb-cc-dd-ee-ff"))
	assert.Empty(t, sanitizeMAC("AA:BB:CC:DD:EE"))
}

func TestSanitizeUsername(t *testing.T) {
	assert.Equal(t, "user1_-x", sanitizeUsername("user 1@_-x!", "tok"))
	assert.Equal(t, "tok", sanitizeUsername("", "tok", "ped"))
	assert.Equal(t, "ped", sanitizeUsername("", "", "ped"))
	assert.Equal(t, "ab", sanitizeUsername("a b!"))
	assert.Len(t, sanitizeUsername(strings.Repeat("x", 40)), 32)
	assert.Empty(t, sanitizeUsername("", ""))
}

func TestSanitizeComment(t *testing.T) {
	assert.Equal(t, "relay", sanitizeComment(""))
	assert.Equal(t, "pedido:abc plano:1h", sanitizeComment(`pedido:"abc" plano:'1h'`))
	assert.Len(t, sanitizeComment(strings.Repeat("c", 80)), 64)
	assert.Equal(t, "pedido:ckabcdef plano:", defaultCommentFor("ckabcdef1234", ""))
}
