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
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SparseVector is the data structure for the sparse vector.
type SparseVector struct {
	Indices []int
	Values  []float64
	Sorted  bool
	lookup  map[int]int
}

// NewSparseVector creates a SparseVector.
func NewSparseVector() *SparseVector {
	return &SparseVector{
		Indices: make([]int, 0),
		Values:  make([]float64, 0),
	}
}

// NewDenseSparseMatrix creates an array of SparseVectors.
func NewDenseSparseMatrix(row int) []*SparseVector {
	mat := make([]*SparseVector, row)
	for i := range mat {
		mat[i] = NewSparseVector()
	}
	return mat
}

// Add a new item.
func (vec *SparseVector) Add(index int, value float64) {
	vec.Indices = append(vec.Indices, index)
	vec.Values = append(vec.Values, value)
	vec.Sorted = false
	vec.lookup = nil
}

// Len returns the number of items.
func (vec *SparseVector) Len() int {
	if vec == nil {
		return 0
	}
	return len(vec.Values)
}

// Less returns true if the index of i-th item is less than the index of j-th item.
func (vec *SparseVector) Less(i, j int) bool {
	return vec.Indices[i] < vec.Indices[j]
}

// Swap two items.
func (vec *SparseVector) Swap(i, j int) {
	vec.Indices[i], vec.Indices[j] = vec.Indices[j], vec.Indices[i]
	vec.Values[i], vec.Values[j] = vec.Values[j], vec.Values[i]
	vec.lookup = nil
}

// ForEach iterates items in the sparse vector.
func (vec *SparseVector) ForEach(f func(i, index int, value float64)) {
	for i := range vec.Indices {
		f(i, vec.Indices[i], vec.Values[i])
	}
}

// SortIndex sorts items by indices.
func (vec *SparseVector) SortIndex() {
	if !vec.Sorted {
		sort.Sort(vec)
		vec.Sorted = true
		vec.lookup = nil
	}
}

func (vec *SparseVector) buildLookup() {
	if vec.lookup == nil {
		vec.lookup = make(map[int]int, len(vec.Indices))
		for i, index := range vec.Indices {
			vec.lookup[index] = i
		}
	}
}

// Freeze sorts the vector and builds its lookup table. A frozen vector is safe for
// concurrent reads until the next Add.
func (vec *SparseVector) Freeze() *SparseVector {
	vec.SortIndex()
	vec.buildLookup()
	return vec
}

// Contains returns true if the index exists. The lookup table is built on first use.
func (vec *SparseVector) Contains(index int) bool {
	if vec.Len() == 0 {
		return false
	}
	vec.buildLookup()
	_, exist := vec.lookup[index]
	return exist
}

// Get returns the value at index.
func (vec *SparseVector) Get(index int) (float64, bool) {
	if vec.Len() == 0 {
		return 0, false
	}
	vec.buildLookup()
	if i, exist := vec.lookup[index]; exist {
		return vec.Values[i], true
	}
	return 0, false
}

// Mean returns the mean of values, or fallback if the vector is empty.
func (vec *SparseVector) Mean(fallback float64) float64 {
	if vec.Len() == 0 {
		return fallback
	}
	return stat.Mean(vec.Values, nil)
}

// ForIntersection iterates items in the intersection of two vectors. The method sorts two vectors
// by indices first, then find common indices in linear time.
func (vec *SparseVector) ForIntersection(other *SparseVector, f func(index int, a, b float64)) {
	// Sort indices of the left vec
	vec.SortIndex()
	// Sort indices of the right vec
	other.SortIndex()
	// Iterate
	i, j := 0, 0
	for i < vec.Len() && j < other.Len() {
		if vec.Indices[i] == other.Indices[j] {
			f(vec.Indices[i], vec.Values[i], other.Values[j])
			i++
			j++
		} else if vec.Indices[i] < other.Indices[j] {
			i++
		} else {
			j++
		}
	}
}
