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
	"testing"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/carskit/base"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelSearch(t *testing.T) {
	d := syntheticDataset(t, 10, 8)
	train, valid, err := dataset.SplitRatio(d.Ratings, 0.8, base.NewRandomGenerator(0))
	require.NoError(t, err)
	creators, err := DefaultRegistry().Subset("globalavg", "useravg")
	require.NoError(t, err)
	search := NewModelSearch(context.Background(), creators, model.Params{model.RandomState: 0}, d, train, valid)

	_, found := search.Result()
	assert.False(t, found)

	study, err := goptuna.CreateStudy("carskit",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	require.NoError(t, err)
	require.NoError(t, study.Optimize(search.Objective, 3))

	result, found := search.Result()
	assert.True(t, found)
	assert.Contains(t, []string{"globalavg", "useravg"}, result.Tag)
	bestValue, err := study.GetBestValue()
	require.NoError(t, err)
	assert.InDelta(t, bestValue, result.Score.RMSE, 1e-12)
}

func TestModelSearch_Empty(t *testing.T) {
	d := loadDataset(t, fourRatings)
	search := NewModelSearch(context.Background(), Registry{}, nil, d, d.Ratings, d.Ratings)
	value, err := search.Objective(goptuna.Trial{})
	assert.Error(t, err)
	assert.Zero(t, value)
	_, err = search.Grid(false)
	assert.Error(t, err)
}

func TestModelSearch_Grid(t *testing.T) {
	d := syntheticDataset(t, 10, 8)
	train, valid, err := dataset.SplitRatio(d.Ratings, 0.8, base.NewRandomGenerator(0))
	require.NoError(t, err)
	creators, err := DefaultRegistry().Subset("globalavg", "userknn")
	require.NoError(t, err)
	search := NewModelSearch(context.Background(), creators, model.Params{model.RandomState: 0}, d, train, valid)
	result, err := search.Grid(false)
	require.NoError(t, err)
	assert.Contains(t, []string{"globalavg", "userknn"}, result.Tag)

	// the best combination is no worse than the baseline
	baseline := NewGlobalAverage(model.Params{})
	_, err = baseline.Fit(context.Background(), d, train)
	require.NoError(t, err)
	score, err := EvaluateRating(context.Background(), baseline, d, valid, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Score.RMSE, score.RMSE)
	if result.Tag == "userknn" {
		grid := NewUserKNN(nil).GetParamsGrid(false)
		assert.Contains(t, grid[model.NNeighbors], result.Params[model.NNeighbors])
		assert.Contains(t, grid[model.Similarity], result.Params[model.Similarity])
	}
}

func TestModelSearch_GridCancel(t *testing.T) {
	d := syntheticDataset(t, 6, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	search := NewModelSearch(ctx, Registry{"globalavg": DefaultRegistry()["globalavg"]}, nil, d, d.Ratings, d.Ratings)
	_, err := search.Grid(false)
	assert.ErrorIs(t, err, context.Canceled)
}
