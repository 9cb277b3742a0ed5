// Copyright 2025 gorse Project Authors
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

package dataset

import "modernc.org/strutil"

// Dict maps raw string keys to dense ids assigned in first-seen order. The inverse
// lookup is built lazily and rebuilt after new keys are interned. A Dict is not safe
// for concurrent use until it is frozen.
type Dict struct {
	pool   *strutil.Pool
	si     map[string]int
	is     []string
	frozen bool
}

func NewDict() *Dict {
	return &Dict{
		pool: strutil.NewPool(),
		si:   make(map[string]int),
	}
}

// Count returns the number of interned keys.
func (d *Dict) Count() int {
	return len(d.si)
}

// Id returns the id of s, interning it if it is new.
func (d *Dict) Id(s string) int {
	if y, ok := d.si[s]; ok {
		return y
	}
	if d.frozen {
		panic("dataset: intern into frozen dict")
	}
	y := len(d.si)
	d.si[d.pool.Align(s)] = y
	return y
}

// Get returns the id of s without interning.
func (d *Dict) Get(s string) (int, bool) {
	y, ok := d.si[s]
	return y, ok
}

// String returns the raw key of id.
func (d *Dict) String(id int) (string, bool) {
	if id < 0 || id >= len(d.si) {
		return "", false
	}
	if len(d.is) != len(d.si) {
		d.buildInverse()
	}
	return d.is[id], true
}

// MustString returns the raw key of id and panics if id is unknown.
func (d *Dict) MustString(id int) string {
	s, ok := d.String(id)
	if !ok {
		panic("dataset: unknown id")
	}
	return s
}

func (d *Dict) buildInverse() {
	d.is = make([]string, len(d.si))
	for s, y := range d.si {
		d.is[y] = s
	}
}

// Freeze builds the inverse and forbids new keys, making the dict safe for concurrent reads.
func (d *Dict) Freeze() {
	if len(d.is) != len(d.si) {
		d.buildInverse()
	}
	d.frozen = true
}
