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

package cars

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"modernc.org/mathutil"
)

// RankingMetric scores a ranked list against the ground truth.
type RankingMetric func(ranked []int, truth mapset.Set[int]) float64

// Top returns the first n elements of a ranked list.
func Top(ranked []int, n int) []int {
	return ranked[:mathutil.Min(n, len(ranked))]
}

// Precision is the number of hits in the top n divided by n.
func Precision(ranked []int, truth mapset.Set[int], n int) float64 {
	if n <= 0 {
		return 0
	}
	hit := 0
	for _, item := range Top(ranked, n) {
		if truth.Contains(item) {
			hit++
		}
	}
	return float64(hit) / float64(n)
}

// Recall is the number of hits divided by the size of the ground truth.
func Recall(ranked []int, truth mapset.Set[int]) float64 {
	if truth.Cardinality() == 0 {
		return 0
	}
	hit := 0
	for _, item := range ranked {
		if truth.Contains(item) {
			hit++
		}
	}
	return float64(hit) / float64(truth.Cardinality())
}

// AP is the average precision at every hit position divided by the size of the
// ground truth.
func AP(ranked []int, truth mapset.Set[int]) float64 {
	if truth.Cardinality() == 0 {
		return 0
	}
	hit, sum := 0, 0.0
	for k, item := range ranked {
		if truth.Contains(item) {
			hit++
			sum += float64(hit) / float64(k+1)
		}
	}
	return sum / float64(truth.Cardinality())
}

// NDCG is the discounted cumulative gain normalized by the gain of an ideal list of the
// same length.
func NDCG(ranked []int, truth mapset.Set[int]) float64 {
	dcg, idcg := 0.0, 0.0
	for k, item := range ranked {
		if truth.Contains(item) {
			dcg += 1 / math.Log2(float64(k)+2)
		}
	}
	for k := 0; k < mathutil.Min(truth.Cardinality(), len(ranked)); k++ {
		idcg += 1 / math.Log2(float64(k)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// RR is the reciprocal rank of the first hit.
func RR(ranked []int, truth mapset.Set[int]) float64 {
	for k, item := range ranked {
		if truth.Contains(item) {
			return 1 / float64(k+1)
		}
	}
	return 0
}

// AUC is the fraction of (relevant, irrelevant) pairs ordered correctly. numDropped
// counts candidates left out of the ranked list; relevant items among them rank below
// every listed item. Without any pair the result is 0.5.
func AUC(ranked []int, truth mapset.Set[int], numDropped int) float64 {
	numRelevant := 0
	for _, item := range ranked {
		if truth.Contains(item) {
			numRelevant++
		}
	}
	numEvalItems := len(ranked) + numDropped
	numEvalPairs := (numEvalItems - numRelevant) * numRelevant
	if numEvalPairs <= 0 {
		return 0.5
	}
	correct, hit := 0, 0
	for _, item := range ranked {
		if truth.Contains(item) {
			hit++
		} else {
			correct += hit
		}
	}
	numMissed := truth.Cardinality() - numRelevant
	correct += hit * mathutil.Max(numDropped-numMissed, 0)
	return float64(correct) / float64(numEvalPairs)
}
