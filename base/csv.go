// Copyright 2021 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"bufio"
	"strings"

	"github.com/juju/errors"
)

// ValidateId validates user/item id. Id cannot be empty.
func ValidateId(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.NotValidf("empty id")
	}
	return nil
}

// ReadLines parse fields of each line for csv file. Line numbers start from 1. Reading
// stops at the first error returned by handler.
func ReadLines(sc *bufio.Scanner, sep rune, handler func(int, []string) error) error {
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		lineCount++
		line := []rune(strings.TrimSuffix(sc.Text(), "\r"))
		// start of line
		if quoted {
			builder.WriteString("\n")
		} else if len(fields) == 0 && strings.TrimSpace(string(line)) == "" {
			// skip blank lines
			continue
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if line[i] == sep && !quoted {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if err := handler(lineCount, fields); err != nil {
				return err
			}
			fields = []string{}
		}
	}
	if quoted {
		return errors.NotValidf("unterminated quote at line %d", lineCount)
	}
	return errors.Trace(sc.Err())
}
