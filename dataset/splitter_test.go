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

import (
	"fmt"
	"strings"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/carskit/base"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticDataset(t *testing.T, numUsers, numItems int) *Dataset {
	var builder strings.Builder
	builder.WriteString("user,item,rating,time:morning,time:evening,time:na\n")
	for u := 0; u < numUsers; u++ {
		for i := 0; i < numItems; i++ {
			if (u+i)%3 == 0 {
				continue
			}
			indicators := [3]int{}
			indicators[(u*i)%3] = 1
			fmt.Fprintf(&builder, "u%d,i%d,%d,%d,%d,%d\n", u, i, (u+2*i)%5+1,
				indicators[0], indicators[1], indicators[2])
		}
	}
	return loadSample(t, builder.String())
}

func entryKeys(table *RatingTable) [][2]int {
	keys := make([][2]int, 0, table.Len())
	for _, e := range table.Entries() {
		keys = append(keys, [2]int{e.UserItem, e.Situation})
	}
	return keys
}

func TestKFoldSplitter(t *testing.T) {
	d := syntheticDataset(t, 7, 5)
	n := d.Ratings.Len()
	splitter, err := NewKFoldSplitter(d.Ratings, 5, base.NewRandomGenerator(0))
	require.NoError(t, err)
	assert.Equal(t, 5, splitter.NumFolds())
	union := mapset.NewThreadUnsafeSet[[2]int]()
	for k := 1; k <= splitter.NumFolds(); k++ {
		train, test, err := splitter.Fold(k)
		require.NoError(t, err)
		assert.Equal(t, n, train.Len()+test.Len())
		// fold size within one of the exact share
		assert.InDelta(t, float64(n)/5, float64(test.Len()), 1)
		trainKeys := mapset.NewThreadUnsafeSet(entryKeys(train)...)
		testKeys := mapset.NewThreadUnsafeSet(entryKeys(test)...)
		assert.Zero(t, trainKeys.Intersect(testKeys).Cardinality())
		// every test entry appears in exactly one fold
		assert.Zero(t, union.Intersect(testKeys).Cardinality())
		union = union.Union(testKeys)
	}
	assert.True(t, union.Equal(mapset.NewThreadUnsafeSet(entryKeys(d.Ratings)...)))

	_, _, err = splitter.Fold(0)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, _, err = splitter.Fold(6)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestKFoldSplitter_Deterministic(t *testing.T) {
	d := syntheticDataset(t, 5, 5)
	a, err := NewKFoldSplitter(d.Ratings, 3, base.NewRandomGenerator(42))
	require.NoError(t, err)
	b, err := NewKFoldSplitter(d.Ratings, 3, base.NewRandomGenerator(42))
	require.NoError(t, err)
	for pos := 0; pos < d.Ratings.Len(); pos++ {
		assert.Equal(t, a.Label(pos), b.Label(pos))
	}
}

func TestKFoldSplitter_Clamp(t *testing.T) {
	d := loadSample(t, sampleRatings)
	splitter, err := NewKFoldSplitter(d.Ratings, 10, base.NewRandomGenerator(0))
	require.NoError(t, err)
	assert.Equal(t, 5, splitter.NumFolds())
	for k := 1; k <= 5; k++ {
		_, test, err := splitter.Fold(k)
		require.NoError(t, err)
		assert.Equal(t, 1, test.Len())
	}
	_, err = NewKFoldSplitter(d.Ratings, 1, base.NewRandomGenerator(0))
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestSplitRatio(t *testing.T) {
	d := syntheticDataset(t, 20, 10)
	train, test, err := SplitRatio(d.Ratings, 0.8, base.NewRandomGenerator(0))
	require.NoError(t, err)
	assert.Equal(t, d.Ratings.Len(), train.Len()+test.Len())
	trainKeys := mapset.NewThreadUnsafeSet(entryKeys(train)...)
	testKeys := mapset.NewThreadUnsafeSet(entryKeys(test)...)
	assert.Zero(t, trainKeys.Intersect(testKeys).Cardinality())
	assert.InDelta(t, 0.8, float64(train.Len())/float64(d.Ratings.Len()), 0.1)

	for _, ratio := range []float64{0, 1, -0.5} {
		_, _, err = SplitRatio(d.Ratings, ratio, base.NewRandomGenerator(0))
		assert.True(t, errors.Is(err, errors.NotValid))
	}
}
