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

	"github.com/bits-and-blooms/bitset"
	"github.com/c-bata/goptuna"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
)

// Recommender predicts the rating of a user for an item in a context situation.
type Recommender interface {
	model.Model
	// Fit trains the recommender on a training table of the dataset.
	Fit(ctx context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error)
	// Predict the rating of user u for item i in situation c.
	Predict(u, i, c int) float64
	// IsUserPredictable returns false if the user has no training ratings.
	IsUserPredictable(u int) bool
	// IsItemPredictable returns false if the item has no training ratings.
	IsItemPredictable(i int) bool
}

// BaseRecommender holds the state shared by all recommenders.
type BaseRecommender struct {
	model.BaseModel
	Dataset         *dataset.Dataset
	GlobalMean      float64
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
}

// Init binds the dataset, computes the global mean and marks users and items seen in
// training. The random generator restarts from the random state on every fit.
func (r *BaseRecommender) Init(d *dataset.Dataset, train *dataset.RatingTable) {
	r.ResetRandomGenerator()
	r.Dataset = d
	r.GlobalMean = train.Mean()
	r.UserPredictable = bitset.New(uint(d.CountUsers()))
	r.ItemPredictable = bitset.New(uint(d.CountItems()))
	for _, u := range train.Users() {
		r.UserPredictable.Set(uint(u))
	}
	for _, i := range train.Items() {
		r.ItemPredictable.Set(uint(i))
	}
}

func (r *BaseRecommender) IsUserPredictable(u int) bool {
	return u >= 0 && r.UserPredictable != nil && r.UserPredictable.Test(uint(u))
}

func (r *BaseRecommender) IsItemPredictable(i int) bool {
	return i >= 0 && r.ItemPredictable != nil && r.ItemPredictable.Test(uint(i))
}

func (r *BaseRecommender) GetParamsGrid(_ bool) model.ParamsGrid {
	return model.ParamsGrid{}
}

func (r *BaseRecommender) SuggestParams(_ goptuna.Trial) model.Params {
	return model.Params{}
}

func (r *BaseRecommender) Clear() {
	r.Dataset = nil
	r.GlobalMean = 0
	r.UserPredictable = nil
	r.ItemPredictable = nil
}

// conditions expands a situation, or returns nil for the collapsed view.
func (r *BaseRecommender) conditions(c int) []int {
	if c < 0 || c >= r.Dataset.CountSituations() {
		return nil
	}
	return r.Dataset.Index.Conditions(c)
}
