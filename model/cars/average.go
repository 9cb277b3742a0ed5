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

	"github.com/gorse-io/carskit/base/log"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"go.uber.org/zap"
)

// GlobalAverage predicts the mean of all training ratings.
type GlobalAverage struct {
	BaseRecommender
}

func NewGlobalAverage(params model.Params) *GlobalAverage {
	m := new(GlobalAverage)
	m.SetParams(params)
	return m
}

func (m *GlobalAverage) Fit(_ context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	m.Init(d, train)
	return TrainResult{}, nil
}

func (m *GlobalAverage) Predict(_, _, _ int) float64 {
	return m.GlobalMean
}

// collapsedAverage predicts from the user by item view, ignoring contexts.
type collapsedAverage struct {
	BaseRecommender
	table *dataset.UserItemTable
}

func (m *collapsedAverage) fit(d *dataset.Dataset, train *dataset.RatingTable) {
	m.Init(d, train)
	m.table = train.Collapse()
}

func (m *collapsedAverage) Clear() {
	m.BaseRecommender.Clear()
	m.table = nil
}

// UserAverage predicts the mean rating of the user.
type UserAverage struct {
	collapsedAverage
}

func NewUserAverage(params model.Params) *UserAverage {
	m := new(UserAverage)
	m.SetParams(params)
	return m
}

func (m *UserAverage) Fit(_ context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	m.fit(d, train)
	return TrainResult{}, nil
}

func (m *UserAverage) Predict(u, _, _ int) float64 {
	return m.table.UserVector(u).Mean(m.GlobalMean)
}

// ItemAverage predicts the mean rating of the item.
type ItemAverage struct {
	collapsedAverage
}

func NewItemAverage(params model.Params) *ItemAverage {
	m := new(ItemAverage)
	m.SetParams(params)
	return m
}

func (m *ItemAverage) Fit(_ context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	m.fit(d, train)
	return TrainResult{}, nil
}

func (m *ItemAverage) Predict(_, i, _ int) float64 {
	return m.table.ItemVector(i).Mean(m.GlobalMean)
}

// UserItemAverage predicts the mean rating the user gave the item over all situations.
type UserItemAverage struct {
	collapsedAverage
}

func NewUserItemAverage(params model.Params) *UserItemAverage {
	m := new(UserItemAverage)
	m.SetParams(params)
	return m
}

func (m *UserItemAverage) Fit(_ context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	m.fit(d, train)
	return TrainResult{}, nil
}

func (m *UserItemAverage) Predict(u, i, _ int) float64 {
	if rating, ok := m.table.Get(u, i); ok {
		return rating
	}
	return m.GlobalMean
}

// conditionStats accumulates rating sums and counts per condition.
type conditionStats struct {
	sums   []float64
	counts []int
}

func newConditionStats(numConditions int) *conditionStats {
	return &conditionStats{
		sums:   make([]float64, numConditions),
		counts: make([]int, numConditions),
	}
}

func (s *conditionStats) add(cond int, rating float64) {
	s.sums[cond] += rating
	s.counts[cond]++
}

// average returns the mean over conditions of the per-condition mean rating. Conditions
// without ratings are left out. The second value is false if no condition has ratings.
func (s *conditionStats) average(conds []int) (float64, bool) {
	avg, n := 0.0, 0
	for _, cond := range conds {
		if s.counts[cond] > 0 {
			avg += s.sums[cond] / float64(s.counts[cond])
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return avg / float64(n), true
}

// contextAverage groups condition statistics by user, by item or in a single group.
type contextAverage struct {
	BaseRecommender
	stats map[int]*conditionStats
}

func (m *contextAverage) group(k int) *conditionStats {
	stats, exist := m.stats[k]
	if !exist {
		stats = newConditionStats(m.Dataset.Index.CountConditions())
		m.stats[k] = stats
	}
	return stats
}

// fitColumns accumulates a single group from the situation columns of every condition.
func (m *contextAverage) fitColumns(d *dataset.Dataset, train *dataset.RatingTable) {
	m.Init(d, train)
	m.stats = make(map[int]*conditionStats)
	stats := m.group(0)
	for cond := 0; cond < d.Index.CountConditions(); cond++ {
		for _, c := range d.Index.Situations(cond) {
			train.Column(c).ForEach(func(_, _ int, rating float64) {
				stats.add(cond, rating)
			})
		}
	}
	log.Logger().Debug("fit context average", zap.Int("n_conditions", d.Index.CountConditions()))
}

// fitRows accumulates one group per key from the situation rows of its user-item pairs.
func (m *contextAverage) fitRows(d *dataset.Dataset, train *dataset.RatingTable, keys []int, pairs func(k int) []int) {
	m.Init(d, train)
	m.stats = make(map[int]*conditionStats)
	for _, k := range keys {
		stats := m.group(k)
		for _, ui := range pairs(k) {
			train.Row(ui).ForEach(func(_, c int, rating float64) {
				for _, cond := range d.Index.Conditions(c) {
					stats.add(cond, rating)
				}
			})
		}
	}
	log.Logger().Debug("fit context average", zap.Int("n_groups", len(m.stats)))
}

func (m *contextAverage) predict(k, c int) float64 {
	stats, exist := m.stats[k]
	if !exist {
		return m.GlobalMean
	}
	if avg, ok := stats.average(m.conditions(c)); ok {
		return avg
	}
	return m.GlobalMean
}

func (m *contextAverage) Clear() {
	m.BaseRecommender.Clear()
	m.stats = nil
}

// ContextAverage predicts the mean rating observed under the conditions of the situation.
type ContextAverage struct {
	contextAverage
}

func NewContextAverage(params model.Params) *ContextAverage {
	m := new(ContextAverage)
	m.SetParams(params)
	return m
}

func (m *ContextAverage) Fit(_ context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	m.fitColumns(d, train)
	return TrainResult{}, nil
}

func (m *ContextAverage) Predict(_, _, c int) float64 {
	return m.predict(0, c)
}

// UserContextAverage predicts the mean rating of the user under the conditions of the situation.
type UserContextAverage struct {
	contextAverage
}

func NewUserContextAverage(params model.Params) *UserContextAverage {
	m := new(UserContextAverage)
	m.SetParams(params)
	return m
}

func (m *UserContextAverage) Fit(_ context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	m.fitRows(d, train, train.Users(), train.Registry().UserPairs)
	return TrainResult{}, nil
}

func (m *UserContextAverage) Predict(u, _, c int) float64 {
	return m.predict(u, c)
}

// ItemContextAverage predicts the mean rating of the item under the conditions of the situation.
type ItemContextAverage struct {
	contextAverage
}

func NewItemContextAverage(params model.Params) *ItemContextAverage {
	m := new(ItemContextAverage)
	m.SetParams(params)
	return m
}

func (m *ItemContextAverage) Fit(_ context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	m.fitRows(d, train, train.Items(), train.Registry().ItemPairs)
	return TrainResult{}, nil
}

func (m *ItemContextAverage) Predict(_, i, c int) float64 {
	return m.predict(i, c)
}
