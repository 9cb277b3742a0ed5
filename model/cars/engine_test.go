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
	"testing"

	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

// scriptedModel trains on a single sample and reports a scripted loss per epoch.
type scriptedModel struct {
	losses  []float64
	lrs     []float64
	initErr error
}

func (m *scriptedModel) Init(_ *dataset.Dataset, _ *dataset.RatingTable) error {
	m.lrs = nil
	return m.initErr
}

func (m *scriptedModel) Predict(_, _, _ int) float64 {
	return 0
}

func (m *scriptedModel) Samples(_ *dataset.RatingTable) []Sample {
	return []Sample{{}}
}

func (m *scriptedModel) TrainStep(_ Sample, lr float64) float64 {
	epoch := len(m.lrs)
	m.lrs = append(m.lrs, lr)
	if epoch < len(m.losses) {
		return m.losses[epoch]
	}
	return m.losses[len(m.losses)-1] - float64(epoch)
}

func (m *scriptedModel) LossScale() float64 {
	return 1
}

func TestTrainer_Converge(t *testing.T) {
	m := &scriptedModel{losses: []float64{5, 4, 4}}
	trainer := &Trainer{Name: "mock", NEpochs: 10, Lr: 0.1, Policy: ConstantRate{}}
	result, err := trainer.Fit(context.Background(), m, nil, nil)
	assert.NoError(t, err)
	assert.True(t, result.Converged)
	assert.Equal(t, 3, result.Epochs)
	assert.Equal(t, []float64{5, 4, 4}, result.Losses)
	assert.Equal(t, 4.0, result.Loss())
	assert.Equal(t, []float64{0.1, 0.1, 0.1}, m.lrs)
}

func TestTrainer_MaxEpochs(t *testing.T) {
	m := &scriptedModel{losses: []float64{100, 90, 80, 70, 60, 50}}
	trainer := &Trainer{Name: "mock", NEpochs: 4, Lr: 0.1, Policy: ConstantRate{}}
	result, err := trainer.Fit(context.Background(), m, nil, nil)
	assert.NoError(t, err)
	assert.False(t, result.Converged)
	assert.Equal(t, 4, result.Epochs)
	assert.Len(t, result.Losses, 4)
}

func TestTrainer_ImprovementBelowEpsilon(t *testing.T) {
	m := &scriptedModel{losses: []float64{1, 1 - Epsilon/2}}
	trainer := &Trainer{Name: "mock", NEpochs: 10, Lr: 0.1, Policy: ConstantRate{}}
	result, err := trainer.Fit(context.Background(), m, nil, nil)
	assert.NoError(t, err)
	assert.True(t, result.Converged)
	assert.Equal(t, 2, result.Epochs)
}

func TestTrainer_BoldDriver(t *testing.T) {
	m := &scriptedModel{losses: []float64{10, 8, 9}}
	trainer := &Trainer{Name: "mock", NEpochs: 10, Lr: 0.1, Policy: NewBoldDriver()}
	result, err := trainer.Fit(context.Background(), m, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 3, result.Epochs)
	assert.InDeltaSlice(t, []float64{0.1, 0.1, 0.105}, m.lrs, 1e-12)
	assert.InDelta(t, 0.0525, result.Lr, 1e-12)
}

func TestTrainer_MaxLr(t *testing.T) {
	m := &scriptedModel{losses: []float64{10, 8, 6, 4}}
	trainer := &Trainer{Name: "mock", NEpochs: 4, Lr: 0.1, MaxLr: 0.104, Policy: NewBoldDriver()}
	result, err := trainer.Fit(context.Background(), m, nil, nil)
	assert.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.1, 0.1, 0.104, 0.104}, m.lrs, 1e-12)
	assert.InDelta(t, 0.104, result.Lr, 1e-12)
}

func TestTrainer_NonFinite(t *testing.T) {
	m := &scriptedModel{losses: []float64{5, math.NaN()}}
	trainer := &Trainer{Name: "mock", NEpochs: 10, Lr: 0.1, Policy: ConstantRate{}}
	result, err := trainer.Fit(context.Background(), m, nil, nil)
	assert.True(t, errors.Is(err, ErrNonFinite))
	assert.Equal(t, 2, result.Epochs)

	m = &scriptedModel{losses: []float64{math.Inf(1)}}
	_, err = trainer.Fit(context.Background(), m, nil, nil)
	assert.True(t, errors.Is(err, ErrNonFinite))
}

func TestTrainer_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &scriptedModel{losses: []float64{5, 4, 3}}
	trainer := &Trainer{Name: "mock", NEpochs: 10, Lr: 0.1, Policy: ConstantRate{}}
	result, err := trainer.Fit(ctx, m, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Epochs)
	assert.Empty(t, m.lrs)
}

func TestTrainer_InitError(t *testing.T) {
	m := &scriptedModel{losses: []float64{1}, initErr: errors.NotFoundf("empty condition")}
	trainer := &Trainer{Name: "mock", NEpochs: 10, Lr: 0.1, Policy: ConstantRate{}}
	_, err := trainer.Fit(context.Background(), m, nil, nil)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestNewTrainer(t *testing.T) {
	trainer := NewTrainer("CAMF_C", model.Params{})
	assert.Equal(t, 100, trainer.NEpochs)
	assert.Equal(t, 0.02, trainer.Lr)
	assert.Zero(t, trainer.MaxLr)
	assert.IsType(t, ConstantRate{}, trainer.Policy)

	trainer = NewTrainer("CAMF_C", model.Params{
		model.NEpochs:    5,
		model.Lr:         0.01,
		model.MaxLr:      0.05,
		model.BoldDriver: true,
	})
	assert.Equal(t, 5, trainer.NEpochs)
	assert.Equal(t, 0.01, trainer.Lr)
	assert.Equal(t, 0.05, trainer.MaxLr)
	assert.IsType(t, BoldDriver{}, trainer.Policy)
}

func TestLearningRate(t *testing.T) {
	assert.Equal(t, 0.1, ConstantRate{}.Next(0.1, 5, 1, 2))
	bold := NewBoldDriver()
	assert.Equal(t, 0.1, bold.Next(0.1, 1, 0, 5))
	assert.InDelta(t, 0.105, bold.Next(0.1, 2, 5, 4), 1e-12)
	assert.InDelta(t, 0.05, bold.Next(0.1, 2, 4, 5), 1e-12)
	assert.InDelta(t, 0.09, DecayRate{Decay: 0.9}.Next(0.1, 2, 5, 4), 1e-12)
	assert.Equal(t, 0.1, DecayRate{Decay: 1.5}.Next(0.1, 2, 5, 4))

	assert.IsType(t, DecayRate{}, NewLearningRate(model.Params{model.Decay: 0.9}))
	assert.IsType(t, BoldDriver{}, NewLearningRate(model.Params{model.Decay: 0.9, model.BoldDriver: true}))
	assert.IsType(t, ConstantRate{}, NewLearningRate(model.Params{model.Decay: 2.0}))
}

func TestContextSamples(t *testing.T) {
	d := loadDataset(t, fourRatings)
	samples := ContextSamples(d.Ratings)
	assert.Len(t, samples, 4)
	for _, s := range samples {
		ui, ok := d.Registry.LookupUserItem(s.User, s.Item)
		assert.True(t, ok)
		rating, ok := d.Ratings.Get(ui, s.Situation)
		assert.True(t, ok)
		assert.Equal(t, rating, s.Rating)
	}
	collapsed := CollapsedSamples(d.Ratings.Collapse())
	assert.Len(t, collapsed, 4)
	for _, s := range collapsed {
		assert.Equal(t, -1, s.Situation)
	}
}
