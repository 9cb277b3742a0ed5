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
	"testing"

	"github.com/stretchr/testify/assert"
)

const simTestEpsilon = 1e-3

func newTestPair() (*SparseVector, *SparseVector) {
	a := NewSparseVector()
	a.Add(1, 4)
	a.Add(2, 5)
	a.Add(3, 6)
	b := NewSparseVector()
	b.Add(0, 0)
	b.Add(1, 1)
	b.Add(2, 2)
	return a, b
}

func TestCosine(t *testing.T) {
	a, b := newTestPair()
	sim := Cosine(a, b)
	assert.False(t, math.Abs(sim-0.978) > simTestEpsilon)
}

func TestMSD(t *testing.T) {
	a, b := newTestPair()
	sim := MSD(a, b)
	assert.False(t, math.Abs(sim-0.1) > simTestEpsilon)
}

func TestPearson(t *testing.T) {
	a, b := newTestPair()
	sim := Pearson(a, b)
	assert.False(t, math.Abs(sim) > simTestEpsilon)
}

func TestSimilarityWithoutOverlap(t *testing.T) {
	a := NewSparseVector()
	a.Add(1, 4)
	b := NewSparseVector()
	b.Add(2, 3)
	assert.Zero(t, Cosine(a, b))
	assert.Zero(t, MSD(a, b))
	assert.Zero(t, Pearson(a, b))
}

func TestParseSimilarity(t *testing.T) {
	for _, name := range []string{"cos", "Cosine", "pcc", "pearson", "msd"} {
		sim, err := ParseSimilarity(name)
		assert.NoError(t, err)
		assert.NotNil(t, sim)
	}
	_, err := ParseSimilarity("jaccard")
	assert.Error(t, err)
}
