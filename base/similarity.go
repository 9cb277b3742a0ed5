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
	"strings"

	"github.com/juju/errors"
)

// Similarity computes the similarity between a pair of vectors.
type Similarity func(a, b *SparseVector) float64

// Cosine computes the cosine similarity between a pair of vectors over their common indices.
func Cosine(a, b *SparseVector) float64 {
	m, n, l := .0, .0, .0
	a.ForIntersection(b, func(index int, a, b float64) {
		m += a * a
		n += b * b
		l += a * b
	})
	if m == 0 || n == 0 {
		return 0
	}
	return l / (math.Sqrt(m) * math.Sqrt(n))
}

// MSD computes the Mean Squared Difference similarity between a pair of vectors.
func MSD(a, b *SparseVector) float64 {
	count, sum := 0.0, 0.0
	a.ForIntersection(b, func(index int, a, b float64) {
		sum += (a - b) * (a - b)
		count += 1
	})
	if count == 0 {
		return 0
	}
	return 1.0 / (sum/count + 1)
}

// Pearson computes the absolute Pearson correlation coefficient between a pair of vectors.
// Ratings are centered by the mean of the whole vector.
func Pearson(a, b *SparseVector) float64 {
	meanA := a.Mean(0)
	meanB := b.Mean(0)
	// Mean-centered cosine
	m, n, l := .0, .0, .0
	a.ForIntersection(b, func(index int, a, b float64) {
		ratingA := a - meanA
		ratingB := b - meanB
		m += ratingA * ratingA
		n += ratingB * ratingB
		l += ratingA * ratingB
	})
	if m == 0 || n == 0 {
		return 0
	}
	return math.Abs(l) / (math.Sqrt(m) * math.Sqrt(n))
}

// ParseSimilarity resolves a similarity by name.
func ParseSimilarity(name string) (Similarity, error) {
	switch strings.ToLower(name) {
	case "cos", "cosine":
		return Cosine, nil
	case "pcc", "pearson":
		return Pearson, nil
	case "msd":
		return MSD, nil
	default:
		return nil, errors.NotValidf("similarity %q", name)
	}
}
