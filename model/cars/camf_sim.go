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

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
)

// conditionPair is a condition of a training situation and the empty condition of
// its dimension.
type conditionPair struct {
	cond  int
	empty int
	value float64
}

// camfSimilarity scales p_u·q_i by the similarity between each condition of the
// situation and the empty condition of its dimension. Every dimension must declare an
// empty condition.
type camfSimilarity struct {
	factorization
	empty []int
	pairs []conditionPair
}

func (m *camfSimilarity) prepare(d *dataset.Dataset, train *dataset.RatingTable) error {
	empty, err := d.Index.EmptyConditions()
	if err != nil {
		return errors.Annotate(err, "similarity based context-aware factorization")
	}
	m.BaseRecommender.Init(d, train)
	m.empty = empty
	return nil
}

// collect appends the non-empty conditions of a situation paired with the empty
// condition of their dimension.
func (m *camfSimilarity) collect(c int, value func(cond, empty int) float64) []conditionPair {
	m.pairs = m.pairs[:0]
	for dim, cond := range m.conditions(c) {
		if cond != m.empty[dim] {
			m.pairs = append(m.pairs, conditionPair{cond: cond, empty: m.empty[dim], value: value(cond, m.empty[dim])})
		}
	}
	return m.pairs
}

func (m *camfSimilarity) Clear() {
	m.factorization.Clear()
	m.empty = nil
	m.pairs = nil
}

// CAMFICS learns an independent similarity between every pair of conditions.
type CAMFICS struct {
	camfSimilarity
	CondSim [][]float64
}

func NewCAMFICS(params model.Params) *CAMFICS {
	m := new(CAMFICS)
	m.SetParams(params)
	return m
}

func (m *CAMFICS) Fit(ctx context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	return NewTrainer("CAMF_ICS", m.Params).Fit(ctx, m, d, train)
}

func (m *CAMFICS) Init(d *dataset.Dataset, train *dataset.RatingTable) error {
	if err := m.prepare(d, train); err != nil {
		return errors.Trace(err)
	}
	m.initUniformFactors()
	n := d.Index.CountConditions()
	m.CondSim = make([][]float64, n)
	for i := range m.CondSim {
		m.CondSim[i] = make([]float64, n)
		for j := range m.CondSim[i] {
			m.CondSim[i][j] = 1
		}
	}
	return nil
}

func (m *CAMFICS) similarity(a, b int) float64 {
	return m.CondSim[a][b]
}

func (m *CAMFICS) Predict(u, i, c int) float64 {
	pred := m.dot(u, i)
	for dim, cond := range m.conditions(c) {
		if cond != m.empty[dim] {
			pred *= m.CondSim[cond][m.empty[dim]]
		}
	}
	return pred
}

func (m *CAMFICS) TrainStep(s Sample, lr float64) float64 {
	dot := m.dot(s.User, s.Item)
	pairs := m.collect(s.Situation, m.similarity)
	simc := 1.0
	for _, p := range pairs {
		simc *= p.value
	}
	// Unchanged dimensions contribute a unit similarity.
	loss := m.regC * float64(m.Dataset.Index.CountDimensions()-len(pairs))
	for _, p := range pairs {
		loss += m.regC * p.value * p.value
	}
	e := s.Rating - dot*simc
	loss += e * e
	for _, p := range pairs {
		sim := p.value + lr*(e*dot*simc/p.value-m.regC*p.value)
		m.CondSim[p.cond][p.empty] = sim
		m.CondSim[p.empty][p.cond] = sim
	}
	loss += m.sgdFactors(s.User, s.Item, e, simc, lr)
	return loss
}

func (m *CAMFICS) Clear() {
	m.camfSimilarity.Clear()
	m.CondSim = nil
}

// CAMFLCS represents conditions by latent vectors and uses their dot product as the
// similarity between two conditions.
type CAMFLCS struct {
	camfSimilarity
	nCondFactors int
	CondFactor   [][]float64
}

func NewCAMFLCS(params model.Params) *CAMFLCS {
	m := new(CAMFLCS)
	m.SetParams(params)
	return m
}

func (m *CAMFLCS) SetParams(params model.Params) {
	m.camfSimilarity.SetParams(params)
	m.nCondFactors = m.Params.GetInt(model.NConditionFactors, 10)
}

func (m *CAMFLCS) GetParamsGrid(withSize bool) model.ParamsGrid {
	grid := m.camfSimilarity.GetParamsGrid(withSize)
	grid[model.NConditionFactors] = lo.If(withSize, []interface{}{5, 10, 20}).Else([]interface{}{10})
	return grid
}

func (m *CAMFLCS) SuggestParams(trial goptuna.Trial) model.Params {
	params := m.camfSimilarity.SuggestParams(trial)
	params[model.NConditionFactors] = lo.Must(trial.SuggestDiscreteFloat(string(model.NConditionFactors), 5, 20, 5))
	return params
}

func (m *CAMFLCS) Fit(ctx context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	return NewTrainer("CAMF_LCS", m.Params).Fit(ctx, m, d, train)
}

func (m *CAMFLCS) Init(d *dataset.Dataset, train *dataset.RatingTable) error {
	if err := m.prepare(d, train); err != nil {
		return errors.Trace(err)
	}
	m.initFactors(m.initMean, m.initStdDev)
	m.CondFactor = m.GetRandomGenerator().UniformMatrix(d.Index.CountConditions(), m.nCondFactors, 0, 1)
	return nil
}

func (m *CAMFLCS) similarity(a, b int) float64 {
	return floats.Dot(m.CondFactor[a], m.CondFactor[b])
}

func (m *CAMFLCS) Predict(u, i, c int) float64 {
	pred := m.dot(u, i)
	for dim, cond := range m.conditions(c) {
		if cond != m.empty[dim] {
			pred *= m.similarity(cond, m.empty[dim])
		}
	}
	return pred
}

func (m *CAMFLCS) TrainStep(s Sample, lr float64) float64 {
	dot := m.dot(s.User, s.Item)
	pairs := m.collect(s.Situation, m.similarity)
	simc := 1.0
	for _, p := range pairs {
		simc *= p.value
	}
	e := s.Rating - dot*simc
	loss := e * e
	for _, p := range pairs {
		c1, c2 := m.CondFactor[p.cond], m.CondFactor[p.empty]
		for f := range c1 {
			c1f, c2f := c1[f], c2[f]
			c1[f] += lr * (e*dot*simc*c2f/p.value - m.regC*c1f)
			c2[f] += lr * (e*dot*simc*c1f/p.value - m.regC*c2f)
			loss += m.regC*c1f*c1f + m.regC*c2f*c2f
		}
	}
	loss += m.sgdFactors(s.User, s.Item, e, simc, lr)
	return loss
}

func (m *CAMFLCS) Clear() {
	m.camfSimilarity.Clear()
	m.CondFactor = nil
}

// positionLowBound keeps condition positions strictly positive.
const positionLowBound = 1e-100

// CAMFMCS places conditions on a line per dimension and uses one minus the euclidean
// distance to the empty conditions as the similarity of a situation.
type CAMFMCS struct {
	camfSimilarity
	upBound  float64
	Position []float64
}

func NewCAMFMCS(params model.Params) *CAMFMCS {
	m := new(CAMFMCS)
	m.SetParams(params)
	return m
}

func (m *CAMFMCS) Fit(ctx context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	return NewTrainer("CAMF_MCS", m.Params).Fit(ctx, m, d, train)
}

func (m *CAMFMCS) Init(d *dataset.Dataset, train *dataset.RatingTable) error {
	if err := m.prepare(d, train); err != nil {
		return errors.Trace(err)
	}
	m.initFactors(m.initMean, m.initStdDev)
	m.upBound = 1 / math.Sqrt(float64(d.Index.CountDimensions()))
	m.Position = m.GetRandomGenerator().UniformVector(d.Index.CountConditions(), 0, m.upBound)
	return nil
}

func (m *CAMFMCS) difference(a, b int) float64 {
	return m.Position[a] - m.Position[b]
}

func (m *CAMFMCS) distance(c int) float64 {
	dist := 0.0
	for dim, cond := range m.conditions(c) {
		diff := m.difference(cond, m.empty[dim])
		dist += diff * diff
	}
	return math.Sqrt(dist)
}

func (m *CAMFMCS) Predict(u, i, c int) float64 {
	return m.dot(u, i) * (1 - m.distance(c))
}

func (m *CAMFMCS) TrainStep(s Sample, lr float64) float64 {
	dot := m.dot(s.User, s.Item)
	loss := 0.0
	for dim, cond := range m.conditions(s.Situation) {
		pos1, pos2 := m.Position[cond], m.Position[m.empty[dim]]
		loss += m.regC*pos1*pos1 + m.regC*pos2*pos2
	}
	dist := m.distance(s.Situation)
	sim := 1 - dist
	e := s.Rating - dot*sim
	loss += e * e
	if dist == 0 {
		dist = positionLowBound
	}
	for _, p := range m.collect(s.Situation, m.difference) {
		pos1, pos2 := m.Position[p.cond], m.Position[p.empty]
		grad := e * dot * p.value / dist
		m.Position[p.cond] = m.clampPosition(pos1 + lr*(grad-m.regC*pos1))
		m.Position[p.empty] = m.clampPosition(pos2 - lr*(grad+m.regC*pos2))
	}
	loss += m.sgdFactors(s.User, s.Item, e, sim, lr)
	return loss
}

func (m *CAMFMCS) clampPosition(pos float64) float64 {
	if pos < 0 {
		return positionLowBound
	}
	if pos > m.upBound {
		return m.upBound
	}
	return pos
}

func (m *CAMFMCS) LossScale() float64 {
	return 0.05
}

func (m *CAMFMCS) Clear() {
	m.camfSimilarity.Clear()
	m.Position = nil
}
