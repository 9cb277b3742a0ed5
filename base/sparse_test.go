// Copyright 2020 gorse Project Authors
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
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparseVector(t *testing.T) {
	vec := NewSparseVector()
	// Add new items
	vec.Add(2, 1)
	vec.Add(1, 0)
	vec.Add(8, 3)
	vec.Add(4, 2)
	assert.Equal(t, []int{2, 1, 8, 4}, vec.Indices)
	assert.Equal(t, []float64{1, 0, 3, 2}, vec.Values)
	// Sort indices
	sort.Sort(vec)
	assert.Equal(t, []int{1, 2, 4, 8}, vec.Indices)
	assert.Equal(t, []float64{0, 1, 2, 3}, vec.Values)
	// Iterates
	vec.ForEach(func(i, index int, value float64) {
		assert.Equal(t, float64(i), value)
		assert.Equal(t, math.Pow(2, value), float64(index))
	})
}

func TestSparseVector_Contains(t *testing.T) {
	vec := NewSparseVector()
	assert.False(t, vec.Contains(1))
	vec.Add(2, 1)
	vec.Add(1, 5)
	assert.True(t, vec.Contains(1))
	assert.False(t, vec.Contains(3))
	value, ok := vec.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 5.0, value)
	// lookup stays valid after sorting
	vec.SortIndex()
	value, ok = vec.Get(2)
	assert.True(t, ok)
	assert.Equal(t, 1.0, value)
	// lookup refreshes after adding
	vec.Add(9, 7)
	assert.True(t, vec.Contains(9))
}

func TestSparseVector_Mean(t *testing.T) {
	vec := NewSparseVector()
	assert.Equal(t, 3.5, vec.Mean(3.5))
	var nilVec *SparseVector
	assert.Equal(t, 2.0, nilVec.Mean(2))
	vec.Add(0, 1)
	vec.Add(1, 4)
	assert.Equal(t, 2.5, vec.Mean(3.5))
}

func TestSparseVector_ForIntersection(t *testing.T) {
	a := NewSparseVector()
	a.Add(2, 1)
	a.Add(1, 0)
	a.Add(8, 3)
	a.Add(4, 2)
	b := NewSparseVector()
	b.Add(16, 2)
	b.Add(1, 0)
	b.Add(64, 3)
	b.Add(4, 1)
	intersectIndex := make([]int, 0)
	intersectA := make([]float64, 0)
	intersectB := make([]float64, 0)
	a.ForIntersection(b, func(index int, a, b float64) {
		intersectIndex = append(intersectIndex, index)
		intersectA = append(intersectA, a)
		intersectB = append(intersectB, b)
	})
	assert.Equal(t, []int{1, 4}, intersectIndex)
	assert.Equal(t, []float64{0, 2}, intersectA)
	assert.Equal(t, []float64{0, 1}, intersectB)
}

func TestNewDenseSparseMatrix(t *testing.T) {
	mat := NewDenseSparseMatrix(3)
	assert.Len(t, mat, 3)
	for _, row := range mat {
		assert.Equal(t, 0, row.Len())
	}
}
