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
	"github.com/gorse-io/carskit/base"
	"github.com/juju/errors"
	"modernc.org/mathutil"
)

// KFoldSplitter assigns every entry to one of K folds of nearly equal size.
type KFoldSplitter struct {
	table    *RatingTable
	numFolds int
	labels   []int
}

// NewKFoldSplitter shuffles entries and labels contiguous blocks of the shuffled order.
// The number of folds is clamped to the number of entries.
func NewKFoldSplitter(table *RatingTable, k int, rng base.RandomGenerator) (*KFoldSplitter, error) {
	if k < 2 {
		return nil, errors.NotValidf("fold count %d", k)
	}
	n := table.Len()
	if n == 0 {
		return nil, errors.NotValidf("split empty table")
	}
	numFolds := mathutil.Min(k, n)
	labels := make([]int, n)
	for i, pos := range rng.Perm(n) {
		labels[pos] = i*numFolds/n + 1
	}
	return &KFoldSplitter{
		table:    table,
		numFolds: numFolds,
		labels:   labels,
	}, nil
}

func (s *KFoldSplitter) NumFolds() int {
	return s.numFolds
}

// Label returns the fold of the entry at pos.
func (s *KFoldSplitter) Label(pos int) int {
	return s.labels[pos]
}

// Fold returns the k-th train and test tables, 1 <= k <= NumFolds.
func (s *KFoldSplitter) Fold(k int) (train, test *RatingTable, err error) {
	if k < 1 || k > s.numFolds {
		return nil, nil, errors.NotValidf("fold %d of %d", k, s.numFolds)
	}
	train = s.table.Reshape(func(pos int, _ Entry) bool { return s.labels[pos] != k })
	test = s.table.Reshape(func(pos int, _ Entry) bool { return s.labels[pos] == k })
	return train, test, nil
}

// SplitRatio retains each entry in train with probability ratio.
func SplitRatio(table *RatingTable, ratio float64, rng base.RandomGenerator) (train, test *RatingTable, err error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, errors.NotValidf("train ratio %v", ratio)
	}
	retained := make([]bool, table.Len())
	for pos := range retained {
		retained[pos] = rng.Float64() < ratio
	}
	train = table.Reshape(func(pos int, _ Entry) bool { return retained[pos] })
	test = table.Reshape(func(pos int, _ Entry) bool { return !retained[pos] })
	return train, test, nil
}
