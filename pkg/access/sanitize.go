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
	"regexp"
	"strings"
)

const (
	maxUsernameLen = 32
	maxCommentLen  = 64
	defaultComment = "relay"
)

var (
	ipPattern       = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$|^[0-9a-fA-F:]+$`)
	macPattern      = regexp.MustCompile(`^[0-9A-F]{2}(:[0-9A-F]{2}){5}$`)
	usernameDropper = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)
)

// sanitizeIP returns ip when it looks like an IPv4 or IPv6 address and ""
// otherwise. Invalid input is treated as absent.
func sanitizeIP(ip string) string {
	v := strings.TrimSpace(ip)
	if v == "" || !ipPattern.MatchString(v) {
		return ""
	}

	return v
}

// sanitizeMAC uppercases a colon separated MAC and returns "" when it is
// malformed.
func sanitizeMAC(mac string) string {
	v := strings.ToUpper(strings.TrimSpace(mac))
	if !macPattern.MatchString(v) {
		return ""
	}

	return v
}

func sanitizeUsername(candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}

		return truncate(usernameDropper.ReplaceAllString(c, ""), maxUsernameLen)
	}

	return ""
}

func sanitizeComment(comment string) string {
	if comment == "" {
		return defaultComment
	}

	v := strings.NewReplacer(`"`, "", `'`, "").Replace(comment)

	return truncate(v, maxCommentLen)
}

// defaultCommentFor builds the comment used when the caller sends none.
func defaultCommentFor(pedidoID, plano string) string {
	return "pedido:" + truncate(pedidoID, 8) + " plano:" + plano
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n])
}
