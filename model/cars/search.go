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
	"sort"
	"sync"

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/carskit/base/log"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SearchResult is the best recommender found by a search.
type SearchResult struct {
	Tag    string
	Params model.Params
	Score  RatingScore
}

// ModelSearch is the objective of a hyper-parameter study. Every trial picks an
// algorithm and its hyper-parameters, fits on the training split and returns the RMSE
// on the validation split.
type ModelSearch struct {
	ctx      context.Context
	creators Registry
	tags     []string
	base     model.Params
	dataset  *dataset.Dataset
	train    *dataset.RatingTable
	valid    *dataset.RatingTable

	mu     sync.Mutex
	result SearchResult
	found  bool
}

// NewModelSearch creates a search. base holds hyper-parameters shared by all trials,
// such as the number of epochs and the random state.
func NewModelSearch(ctx context.Context, creators Registry, base model.Params, d *dataset.Dataset, train, valid *dataset.RatingTable) *ModelSearch {
	return &ModelSearch{
		ctx:      ctx,
		creators: creators,
		tags:     creators.Tags(),
		base:     base,
		dataset:  d,
		train:    train,
		valid:    valid,
	}
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	if len(ms.creators) == 0 {
		return 0, errors.New("no model to search")
	}
	tag, err := trial.SuggestCategorical("Model", ms.tags)
	if err != nil {
		return 0, errors.Trace(err)
	}
	m := ms.creators[tag](ms.base)
	return ms.evaluate(tag, m, m.SuggestParams(trial))
}

// Grid evaluates every combination of the hyper-parameter grid of every algorithm.
// withSize includes model sizes such as the number of factors in the grid.
func (ms *ModelSearch) Grid(withSize bool) (SearchResult, error) {
	if len(ms.creators) == 0 {
		return SearchResult{}, errors.New("no model to search")
	}
	for _, tag := range ms.tags {
		m := ms.creators[tag](ms.base)
		grid := m.GetParamsGrid(withSize)
		names := lo.Keys(grid)
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
		log.Logger().Info("grid search",
			zap.String("model", tag),
			zap.Int("n_params", grid.Len()),
			zap.Int("n_combinations", grid.NumCombinations()))
		var dfs func(deep int, params model.Params) error
		dfs = func(deep int, params model.Params) error {
			if deep == len(names) {
				if err := ms.ctx.Err(); err != nil {
					return errors.Trace(err)
				}
				_, err := ms.evaluate(tag, m, params.Overwrite(nil))
				return err
			}
			for _, value := range grid[names[deep]] {
				params[names[deep]] = value
				if err := dfs(deep+1, params); err != nil {
					return err
				}
			}
			return nil
		}
		if err := dfs(0, model.Params{}); err != nil {
			return SearchResult{}, errors.Trace(err)
		}
	}
	result, found := ms.Result()
	if !found {
		return SearchResult{}, errors.NotFoundf("converged trial")
	}
	return result, nil
}

// evaluate fits m with params over the shared hyper-parameters and returns the RMSE on
// the validation split.
func (ms *ModelSearch) evaluate(tag string, m Recommender, params model.Params) (float64, error) {
	m.Clear()
	m.SetParams(ms.base.Overwrite(params))
	if _, err := m.Fit(ms.ctx, ms.dataset, ms.train); err != nil {
		if errors.Is(err, ErrNonFinite) {
			// A diverged trial scores the worst possible error of clipped predictions.
			log.Logger().Warn("trial diverged", zap.String("model", tag), zap.Any("params", m.GetParams()))
			return ms.dataset.MaxRating() - ms.dataset.MinRating(), nil
		}
		return 0, errors.Trace(err)
	}
	score, err := EvaluateRating(ms.ctx, m, ms.dataset, ms.valid, nil)
	if err != nil {
		return 0, errors.Trace(err)
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.found || score.RMSE < ms.result.Score.RMSE {
		ms.result = SearchResult{Tag: tag, Params: m.GetParams(), Score: score}
		ms.found = true
	}
	log.Logger().Info("search trial",
		zap.String("model", tag),
		zap.Any("params", m.GetParams()),
		zap.Float64("rmse", score.RMSE),
		zap.Float64("mae", score.MAE))
	return score.RMSE, nil
}

// Result returns the best trial so far.
func (ms *ModelSearch) Result() (SearchResult, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.result, ms.found
}
