// Copyright 2022 gorse Project Authors
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

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func weights[T any](elems []Elem[T, float64]) []float64 {
	ret := make([]float64, len(elems))
	for i, e := range elems {
		ret[i] = e.Weight
	}
	return ret
}

func TestTopKFilter(t *testing.T) {
	// Test a adjacent vec
	a := NewTopKFilter[int, float64](3)
	a.Push(10, 2)
	a.Push(20, 8)
	a.Push(30, 1)
	assert.Equal(t, []int{20, 10, 30}, a.PopAllValues())
	// Test a full adjacent vec
	a = NewTopKFilter[int, float64](3)
	a.Push(10, 2)
	a.Push(20, 8)
	a.Push(30, 1)
	a.Push(40, 2)
	a.Push(50, 5)
	a.Push(12, 10)
	a.Push(67, 7)
	a.Push(32, 9)
	elems := a.PopAll()
	assert.Equal(t, []float64{10, 9, 8}, weights(elems))
	assert.Equal(t, 12, elems[0].Value)
	assert.Equal(t, 32, elems[1].Value)
	assert.Equal(t, 20, elems[2].Value)
}

func TestTopKFilterTies(t *testing.T) {
	a := NewTopKFilter[string, float64](2)
	a.Push("a", 1)
	a.Push("b", 1)
	a.Push("c", 1)
	assert.Equal(t, []string{"a", "b"}, a.PopAllValues())
}

func TestTopKFilterUnbounded(t *testing.T) {
	a := NewTopKFilter[string, float64](0)
	a.Push("10", 2)
	a.Push("20", 8)
	a.Push("30", 1)
	a.Push("40", 5)
	assert.Equal(t, []string{"20", "40", "10", "30"}, a.PopAllValues())
}
