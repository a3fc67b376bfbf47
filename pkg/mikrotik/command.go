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
	"errors"
	"fmt"
	"strings"
)

var (
	errUnterminatedQuote = errors.New("unterminated quote")
	errUnterminatedFind  = errors.New("unterminated [find ...] clause")
	errInvalidArgument   = errors.New("invalid argument")
	errEmptyPath         = errors.New("command path is empty")
)

// Arg is one key=value token of a command.
type Arg struct {
	Key   string
	Value string
}

// Command is one device command. Either Path (with optional Args and a Find
// filter) or Raw API words are set.
//
// A command with Find targets the items matching every filter, the way the
// CLI's "[find k=v]" does: the executor resolves their ids first and passes
// them as "numbers". No matching items is not an error.
type Command struct {
	Path string
	Args []Arg
	Find []Arg
	Raw  []string
}

// Empty reports whether the command has nothing to execute.
func (c Command) Empty() bool {
	return strings.TrimSpace(c.Path) == "" && len(c.Raw) == 0
}

// String renders the command in CLI form.
func (c Command) String() string {
	if len(c.Raw) > 0 {
		return strings.Join(c.Raw, " ")
	}

	var b strings.Builder

	b.WriteString(c.Path)

	if len(c.Find) > 0 {
		b.WriteString(" [find")

		for _, a := range c.Find {
			b.WriteByte(' ')
			b.WriteString(a.cli())
		}

		b.WriteByte(']')
	}

	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(a.cli())
	}

	return b.String()
}

func (a Arg) cli() string {
	if a.Value == "" || strings.ContainsAny(a.Value, " \t\"[]") {
		return a.Key + "=" + `"` + strings.ReplaceAll(a.Value, `"`, `\"`) + `"`
	}

	return a.Key + "=" + a.Value
}

// Words returns the API sentence for a command without a Find filter.
func (c Command) Words() []string {
	if len(c.Raw) > 0 {
		return append([]string(nil), c.Raw...)
	}

	words := make([]string, 0, 1+len(c.Args))
	words = append(words, c.Path)

	for _, a := range c.Args {
		words = append(words, "="+a.Key+"="+a.Value)
	}

	return words
}

// queryWords returns the print sentence listing the ids matched by Find.
func (c Command) queryWords() []string {
	base := c.Path[:strings.LastIndex(c.Path, "/")]

	words := make([]string, 0, 2+len(c.Find))
	words = append(words, base+"/print", "=.proplist=.id")

	for _, a := range c.Find {
		words = append(words, "?"+a.Key+"="+a.Value)
	}

	return words
}

// targetWords returns the sentence applying the command to the given ids.
func (c Command) targetWords(ids []string) []string {
	words := make([]string, 0, 2+len(c.Args))
	words = append(words, c.Path, "=numbers="+strings.Join(ids, ","))

	for _, a := range c.Args {
		words = append(words, "="+a.Key+"="+a.Value)
	}

	return words
}

// ParseCommand parses the CLI form produced by String, e.g.
//
//	/ip/firewall/address-list/remove [find list=paid_clients address=10.0.0.5]
//	/ip hotspot user add name=abc password=abc comment="pedido:1 plano:x"
func ParseCommand(s string) (Command, error) {
	tokens, err := tokenize(strings.TrimSpace(s))
	if err != nil {
		return Command{}, err
	}

	var (
		cmd      Command
		segments []string
		inFind   bool
		sawFind  bool
	)

	for _, tok := range tokens {
		switch {
		case tok == "[find":
			inFind, sawFind = true, true
		case tok == "]":
			if !inFind {
				return Command{}, fmt.Errorf("%w: unexpected ]", errInvalidArgument)
			}

			inFind = false
		case strings.Contains(tok, "="):
			arg, err := parseArg(tok)
			if err != nil {
				return Command{}, err
			}

			if inFind {
				cmd.Find = append(cmd.Find, arg)
			} else {
				cmd.Args = append(cmd.Args, arg)
			}
		case len(cmd.Args) == 0 && !sawFind:
			segments = append(segments, strings.Trim(tok, "/"))
		default:
			return Command{}, fmt.Errorf("%w: %q", errInvalidArgument, tok)
		}
	}

	if inFind {
		return Command{}, errUnterminatedFind
	}

	if len(segments) == 0 {
		return Command{}, errEmptyPath
	}

	cmd.Path = "/" + strings.Join(segments, "/")

	return cmd, nil
}

func parseArg(tok string) (Arg, error) {
	key, value, _ := strings.Cut(tok, "=")
	if key == "" {
		return Arg{}, fmt.Errorf("%w: %q", errInvalidArgument, tok)
	}

	return Arg{Key: key, Value: value}, nil
}

// tokenize splits on whitespace, honouring double quotes and treating "[find"
// and "]" as standalone tokens.
func tokenize(s string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		quoted  bool
		escaped bool
		started bool
	)

	flush := func() {
		if started {
			tokens = append(tokens, cur.String())
		}

		cur.Reset()

		started = false
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]

		switch {
		case escaped:
			cur.WriteByte(ch)

			escaped = false
		case quoted && ch == '\\':
			escaped = true
		case ch == '"':
			quoted = !quoted
			started = true
		case quoted:
			cur.WriteByte(ch)
		case ch == ' ' || ch == '\t':
			flush()
		case ch == '[':
			flush()

			if !strings.HasPrefix(s[i:], "[find") {
				return nil, fmt.Errorf("%w: only [find ...] is supported", errInvalidArgument)
			}

			tokens = append(tokens, "[find")
			i += len("[find") - 1
		case ch == ']':
			flush()

			tokens = append(tokens, "]")
		default:
			cur.WriteByte(ch)

			started = true
		}
	}

	if quoted {
		return nil, errUnterminatedQuote
	}

	flush()

	return tokens, nil
}
