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
	"context"
	"math"
	"sort"

	"github.com/c-bata/goptuna"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/carskit/base"
	"github.com/gorse-io/carskit/base/log"
	"github.com/gorse-io/carskit/common/heap"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type neighbor struct {
	sim       float64
	deviation float64
}

// knn is the neighborhood model shared by UserKNN and ItemKNN over the collapsed
// user by item matrix. Rows of the similarity matrix are built on demand and kept in a
// bounded cache.
type knn struct {
	BaseRecommender
	nNeighbors int
	shrinkage  float64
	similarity base.Similarity
	table      *dataset.UserItemTable
	means      []float64
	sims       *dataset.VectorCache
}

func (m *knn) SetParams(params model.Params) {
	m.BaseRecommender.SetParams(params)
	m.nNeighbors = m.Params.GetInt(model.NNeighbors, 50)
	m.shrinkage = m.Params.GetFloat64(model.Shrinkage, 0)
}

func (m *knn) GetParamsGrid(_ bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.NNeighbors: []interface{}{20, 50, 80},
		model.Similarity: []interface{}{"cos", "pcc", "msd"},
		model.Shrinkage:  []interface{}{0, 10, 50},
	}
}

func (m *knn) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NNeighbors: lo.Must(trial.SuggestDiscreteFloat(string(model.NNeighbors), 10, 100, 10)),
		model.Similarity: lo.Must(trial.SuggestCategorical(string(model.Similarity), []string{"cos", "pcc", "msd"})),
		model.Shrinkage:  lo.Must(trial.SuggestDiscreteFloat(string(model.Shrinkage), 0, 100, 10)),
	}
}

// fit prepares similarities between the vectors returned by vector. opposite returns
// the vectors of the other side of the matrix, used to find candidate neighbors that
// share at least one rating.
func (m *knn) fit(d *dataset.Dataset, train *dataset.RatingTable, count int,
	vector, opposite func(int) *base.SparseVector) error {
	m.Init(d, train)
	similarity, err := base.ParseSimilarity(m.Params.GetString(model.Similarity, "pcc"))
	if err != nil {
		return errors.Trace(err)
	}
	m.similarity = similarity
	m.means = make([]float64, count)
	for k := range m.means {
		m.means[k] = vector(k).Mean(m.GlobalMean)
	}
	m.sims = dataset.NewVectorCache(train.CacheOptions(), func(a int) *base.SparseVector {
		row := base.NewSparseVector()
		va := vector(a)
		candidates := mapset.NewThreadUnsafeSet[int]()
		for _, x := range va.Indices {
			for _, b := range opposite(x).Indices {
				if b != a {
					candidates.Add(b)
				}
			}
		}
		others := candidates.ToSlice()
		sort.Ints(others)
		for _, b := range others {
			vb := vector(b)
			sim := m.similarity(va, vb)
			if m.shrinkage > 0 {
				n := float64(overlap(va, vb))
				sim *= n / (n + m.shrinkage)
			}
			if sim != 0 {
				row.Add(b, sim)
			}
		}
		return row
	})
	log.Logger().Info("fit knn",
		zap.Int("n_vectors", count),
		zap.Int("n_neighbors", m.nNeighbors),
		zap.Float64("shrinkage", m.shrinkage),
		zap.Any("params", m.GetParams()))
	return nil
}

// predict aggregates the mean-centered ratings of the top similar neighbors of a that
// appear in rated. Neighbors with non-positive similarity are ignored.
func (m *knn) predict(a int, rated *base.SparseVector) float64 {
	if a < 0 || a >= len(m.means) || rated.Len() == 0 {
		return m.GlobalMean
	}
	sims := m.sims.Get(a)
	filter := heap.NewTopKFilter[neighbor, float64](m.nNeighbors)
	rated.ForEach(func(_, b int, rating float64) {
		if sim, ok := sims.Get(b); ok && sim > 0 {
			filter.Push(neighbor{sim: sim, deviation: rating - m.means[b]}, sim)
		}
	})
	sum, ws := 0.0, 0.0
	for _, n := range filter.PopAllValues() {
		sum += n.sim * n.deviation
		ws += math.Abs(n.sim)
	}
	if ws == 0 {
		return m.GlobalMean
	}
	return m.means[a] + sum/ws
}

func (m *knn) Clear() {
	m.BaseRecommender.Clear()
	m.table = nil
	m.means = nil
	m.sims = nil
}

func overlap(a, b *base.SparseVector) int {
	n := 0
	a.ForIntersection(b, func(_ int, _, _ float64) {
		n++
	})
	return n
}

// UserKNN predicts from users who rated the item and are similar to the user.
type UserKNN struct {
	knn
}

func NewUserKNN(params model.Params) *UserKNN {
	m := new(UserKNN)
	m.SetParams(params)
	return m
}

func (m *UserKNN) Fit(_ context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	m.table = train.Collapse()
	if err := m.fit(d, train, m.table.CountUsers(), m.table.UserVector, m.table.ItemVector); err != nil {
		return TrainResult{}, errors.Trace(err)
	}
	return TrainResult{}, nil
}

func (m *UserKNN) Predict(u, i, _ int) float64 {
	return m.predict(u, m.table.ItemVector(i))
}

// ItemKNN predicts from items rated by the user that are similar to the item.
type ItemKNN struct {
	knn
}

func NewItemKNN(params model.Params) *ItemKNN {
	m := new(ItemKNN)
	m.SetParams(params)
	return m
}

func (m *ItemKNN) Fit(_ context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	m.table = train.Collapse()
	if err := m.fit(d, train, m.table.CountItems(), m.table.ItemVector, m.table.UserVector); err != nil {
		return TrainResult{}, errors.Trace(err)
	}
	return TrainResult{}, nil
}

func (m *ItemKNN) Predict(u, i, _ int) float64 {
	return m.predict(i, m.table.UserVector(u))
}
