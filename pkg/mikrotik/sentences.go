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
	"strings"
)

// NormalizeSentences turns a request's command/sentences pair into commands.
// Each sentence is either a CLI string or a list of raw API words. When
// sentences yields nothing, command is used instead. Blank entries are
// skipped; an empty result is ErrMissingCommand.
func NormalizeSentences(command string, sentences []interface{}) ([]Command, error) {
	cmds := make([]Command, 0, len(sentences)+1)

	for i, s := range sentences {
		switch v := s.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}

			cmd, err := ParseCommand(v)
			if err != nil {
				return nil, fmt.Errorf("%w: sentence %d: %w", ErrInvalidCommand, i, err)
			}

			cmds = append(cmds, cmd)
		case []interface{}:
			words := make([]string, 0, len(v))

			for _, part := range v {
				if part == nil {
					continue
				}

				words = append(words, fmt.Sprint(part))
			}

			if len(words) > 0 {
				cmds = append(cmds, Command{Raw: words})
			}
		case []string:
			if len(v) > 0 {
				cmds = append(cmds, Command{Raw: append([]string(nil), v...)})
			}
		default:
			return nil, fmt.Errorf("%w: sentence %d: unsupported type %T", ErrInvalidCommand, i, s)
		}
	}

	if len(cmds) == 0 && strings.TrimSpace(command) != "" {
		cmd, err := ParseCommand(command)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}

		cmds = append(cmds, cmd)
	}

	if len(cmds) == 0 {
		return nil, ErrMissingCommand
	}

	return cmds, nil
}
