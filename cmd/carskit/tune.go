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

package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/carskit/base"
	"github.com/gorse-io/carskit/base/log"
	"github.com/gorse-io/carskit/config"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"github.com/gorse-io/carskit/model/cars"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// runSearch searches the configured algorithms with a TPE study or an exhaustive grid.
// Trials fit on a ratio split of the training ratings and score the RMSE of the
// held-out part.
func runSearch(ctx context.Context, conf *config.Config, d *dataset.Dataset) (cars.SearchResult, error) {
	creators, err := conf.SearchRegistry()
	if err != nil {
		return cars.SearchResult{}, errors.Trace(err)
	}
	params, err := conf.Model.GetParams()
	if err != nil {
		return cars.SearchResult{}, errors.Trace(err)
	}
	params[model.RandomState] = conf.Evaluation.Seed
	train, valid, err := dataset.SplitRatio(d.Ratings, conf.Evaluation.Ratio, base.NewRandomGenerator(conf.Evaluation.Seed))
	if err != nil {
		return cars.SearchResult{}, errors.Trace(err)
	}
	search := cars.NewModelSearch(ctx, creators, params, d, train, valid)
	log.Logger().Info("start search",
		zap.String("method", conf.Search.Method),
		zap.Strings("models", creators.Tags()),
		zap.Int("n_train", train.Len()),
		zap.Int("n_valid", valid.Len()))
	var result cars.SearchResult
	if conf.Search.Method == config.SearchGrid {
		if result, err = search.Grid(conf.Search.WithSize); err != nil {
			return cars.SearchResult{}, errors.Trace(err)
		}
	} else {
		study, err := goptuna.CreateStudy("carskit",
			goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
			goptuna.StudyOptionSampler(tpe.NewSampler()))
		if err != nil {
			return cars.SearchResult{}, errors.Trace(err)
		}
		if err = study.Optimize(search.Objective, conf.Search.Trials); err != nil {
			return cars.SearchResult{}, errors.Trace(err)
		}
		var found bool
		if result, found = search.Result(); !found {
			return cars.SearchResult{}, errors.NotFoundf("converged trial")
		}
	}
	log.Logger().Info("complete search",
		zap.String("model", result.Tag),
		zap.Any("params", result.Params),
		zap.Float64("rmse", result.Score.RMSE))
	return result, nil
}

func renderSearch(w io.Writer, result cars.SearchResult) error {
	names := lo.Keys(result.Params)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	table := newTable(w)
	table.Header("Model", "Param", "Value")
	for _, name := range names {
		if err := table.Append([]string{result.Tag, string(name), fmt.Sprint(result.Params[name])}); err != nil {
			return errors.Trace(err)
		}
	}
	if err := table.Append([]string{result.Tag, "RMSE", formatScore(result.Score.RMSE)}); err != nil {
		return errors.Trace(err)
	}
	if err := table.Append([]string{result.Tag, "MAE", formatScore(result.Score.MAE)}); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(table.Render())
}
