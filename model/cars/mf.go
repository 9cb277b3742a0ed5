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

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
)

// factorization holds the latent factors and hyper-parameters shared by all matrix
// factorization variants.
type factorization struct {
	BaseRecommender
	// Hyper-parameters
	nFactors   int
	regB       float64
	regU       float64
	regI       float64
	regC       float64
	initMean   float64
	initStdDev float64
	// Model parameters
	UserFactor [][]float64
	ItemFactor [][]float64
}

func (m *factorization) SetParams(params model.Params) {
	m.BaseRecommender.SetParams(params)
	reg := m.Params.GetFloat64(model.Reg, 1e-4)
	m.nFactors = m.Params.GetInt(model.NFactors, 10)
	m.regB = m.Params.GetFloat64(model.RegB, reg)
	m.regU = m.Params.GetFloat64(model.RegU, reg)
	m.regI = m.Params.GetFloat64(model.RegI, reg)
	m.regC = m.Params.GetFloat64(model.RegC, reg)
	m.initMean = m.Params.GetFloat64(model.InitMean, 0)
	m.initStdDev = m.Params.GetFloat64(model.InitStdDev, 0.1)
}

func (m *factorization) GetParamsGrid(withSize bool) model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors:   lo.If(withSize, []interface{}{5, 10, 20, 50}).Else([]interface{}{10}),
		model.Lr:         []interface{}{0.005, 0.01, 0.02, 0.05},
		model.Reg:        []interface{}{0.0001, 0.001, 0.01, 0.1},
		model.InitMean:   []interface{}{0},
		model.InitStdDev: []interface{}{0.01, 0.05, 0.1},
	}
}

func (m *factorization) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:   lo.Must(trial.SuggestDiscreteFloat(string(model.NFactors), 5, 50, 5)),
		model.Lr:         lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.1)),
		model.Reg:        lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.00001, 0.1)),
		model.InitMean:   0,
		model.InitStdDev: lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.001, 0.5)),
	}
}

func (m *factorization) Clear() {
	m.BaseRecommender.Clear()
	m.UserFactor = nil
	m.ItemFactor = nil
}

// initFactors draws latent factors from a gaussian distribution.
func (m *factorization) initFactors(mean, stdDev float64) {
	rng := m.GetRandomGenerator()
	m.UserFactor = rng.NormalMatrix(m.Dataset.CountUsers(), m.nFactors, mean, stdDev)
	m.ItemFactor = rng.NormalMatrix(m.Dataset.CountItems(), m.nFactors, mean, stdDev)
}

// initUniformFactors draws latent factors uniformly from [0, 1).
func (m *factorization) initUniformFactors() {
	rng := m.GetRandomGenerator()
	m.UserFactor = rng.UniformMatrix(m.Dataset.CountUsers(), m.nFactors, 0, 1)
	m.ItemFactor = rng.UniformMatrix(m.Dataset.CountItems(), m.nFactors, 0, 1)
}

func (m *factorization) dot(u, i int) float64 {
	return floats.Dot(m.UserFactor[u], m.ItemFactor[i])
}

// sgdFactors updates the factors of a prediction whose dot product is weighted by w
// and returns their regularization loss.
func (m *factorization) sgdFactors(u, i int, e, w, lr float64) float64 {
	p, q := m.UserFactor[u], m.ItemFactor[i]
	loss := 0.0
	for f := range p {
		pf, qf := p[f], q[f]
		p[f] += lr * (e*w*qf - m.regU*pf)
		q[f] += lr * (e*w*pf - m.regI*qf)
		loss += m.regU*pf*pf + m.regI*qf*qf
	}
	return loss
}

// sgdBias updates an additive bias and returns its regularization loss.
func sgdBias(b *float64, e, reg, lr float64) float64 {
	old := *b
	*b += lr * (e - reg*old)
	return reg * old * old
}

func (m *factorization) LossScale() float64 {
	return 0.5
}

// BiasedMF is the biased matrix factorization on the collapsed user by item matrix:
// μ + b_u + b_i + p_u·q_i.
type BiasedMF struct {
	factorization
	UserBias []float64
	ItemBias []float64
}

func NewBiasedMF(params model.Params) *BiasedMF {
	m := new(BiasedMF)
	m.SetParams(params)
	return m
}

func (m *BiasedMF) Fit(ctx context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	return NewTrainer("BiasedMF", m.Params).Fit(ctx, m, d, train)
}

func (m *BiasedMF) Init(d *dataset.Dataset, train *dataset.RatingTable) error {
	m.BaseRecommender.Init(d, train)
	m.initFactors(m.initMean, m.initStdDev)
	rng := m.GetRandomGenerator()
	m.UserBias = rng.NormalVector(d.CountUsers(), m.initMean, m.initStdDev)
	m.ItemBias = rng.NormalVector(d.CountItems(), m.initMean, m.initStdDev)
	return nil
}

func (m *BiasedMF) Samples(train *dataset.RatingTable) []Sample {
	return CollapsedSamples(train.Collapse())
}

func (m *BiasedMF) Predict(u, i, _ int) float64 {
	return m.GlobalMean + m.UserBias[u] + m.ItemBias[i] + m.dot(u, i)
}

func (m *BiasedMF) TrainStep(s Sample, lr float64) float64 {
	e := s.Rating - m.Predict(s.User, s.Item, s.Situation)
	loss := e * e
	loss += sgdBias(&m.UserBias[s.User], e, m.regB, lr)
	loss += sgdBias(&m.ItemBias[s.Item], e, m.regB, lr)
	loss += m.sgdFactors(s.User, s.Item, e, 1, lr)
	return loss
}

func (m *BiasedMF) Clear() {
	m.factorization.Clear()
	m.UserBias = nil
	m.ItemBias = nil
}
