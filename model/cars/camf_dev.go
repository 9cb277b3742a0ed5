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

	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
)

// deviationInit selects how condition deviations are initialized.
type deviationInit int

const (
	gaussianDeviation deviationInit = iota
	uniformDeviation
)

// camfDeviation is context-aware matrix factorization where every condition of the
// situation adds a learned deviation to a biased factorization. Deviations are global
// per condition, per user and condition, or per item and condition.
type camfDeviation struct {
	factorization
	name string
	// Structure
	withUserBias   bool
	withItemBias   bool
	withCondBias   bool
	withUserDev    bool
	withItemDev    bool
	deviationStart deviationInit
	// Model parameters
	UserBias     []float64
	ItemBias     []float64
	CondBias     []float64
	UserCondBias [][]float64
	ItemCondBias [][]float64
}

func (m *camfDeviation) Fit(ctx context.Context, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	return NewTrainer(m.name, m.Params).Fit(ctx, m, d, train)
}

func (m *camfDeviation) Init(d *dataset.Dataset, train *dataset.RatingTable) error {
	m.BaseRecommender.Init(d, train)
	m.initFactors(m.initMean, m.initStdDev)
	rng := m.GetRandomGenerator()
	numConditions := d.Index.CountConditions()
	deviations := func(row int) [][]float64 {
		if m.deviationStart == uniformDeviation {
			return rng.UniformMatrix(row, numConditions, 0, 1)
		}
		return rng.NormalMatrix(row, numConditions, m.initMean, m.initStdDev)
	}
	if m.withUserBias {
		m.UserBias = rng.NormalVector(d.CountUsers(), m.initMean, m.initStdDev)
	}
	if m.withItemBias {
		m.ItemBias = rng.NormalVector(d.CountItems(), m.initMean, m.initStdDev)
	}
	if m.withCondBias {
		m.CondBias = rng.NormalVector(numConditions, m.initMean, m.initStdDev)
	}
	if m.withUserDev {
		m.UserCondBias = deviations(d.CountUsers())
	}
	if m.withItemDev {
		m.ItemCondBias = deviations(d.CountItems())
	}
	return nil
}

func (m *camfDeviation) Predict(u, i, c int) float64 {
	pred := m.GlobalMean + m.dot(u, i)
	if m.withUserBias {
		pred += m.UserBias[u]
	}
	if m.withItemBias {
		pred += m.ItemBias[i]
	}
	for _, cond := range m.conditions(c) {
		if m.withCondBias {
			pred += m.CondBias[cond]
		}
		if m.withUserDev {
			pred += m.UserCondBias[u][cond]
		}
		if m.withItemDev {
			pred += m.ItemCondBias[i][cond]
		}
	}
	return pred
}

func (m *camfDeviation) TrainStep(s Sample, lr float64) float64 {
	e := s.Rating - m.Predict(s.User, s.Item, s.Situation)
	loss := e * e
	if m.withUserBias {
		loss += sgdBias(&m.UserBias[s.User], e, m.regB, lr)
	}
	if m.withItemBias {
		loss += sgdBias(&m.ItemBias[s.Item], e, m.regB, lr)
	}
	for _, cond := range m.conditions(s.Situation) {
		if m.withCondBias {
			loss += sgdBias(&m.CondBias[cond], e, m.regC, lr)
		}
		if m.withUserDev {
			loss += sgdBias(&m.UserCondBias[s.User][cond], e, m.regC, lr)
		}
		if m.withItemDev {
			loss += sgdBias(&m.ItemCondBias[s.Item][cond], e, m.regC, lr)
		}
	}
	loss += m.sgdFactors(s.User, s.Item, e, 1, lr)
	return loss
}

func (m *camfDeviation) Clear() {
	m.factorization.Clear()
	m.UserBias = nil
	m.ItemBias = nil
	m.CondBias = nil
	m.UserCondBias = nil
	m.ItemCondBias = nil
}

// CAMFC learns one deviation per condition: μ + b_u + b_i + p_u·q_i + Σ b_cond.
type CAMFC struct {
	camfDeviation
}

func NewCAMFC(params model.Params) *CAMFC {
	m := &CAMFC{camfDeviation{
		name:         "CAMF_C",
		withUserBias: true,
		withItemBias: true,
		withCondBias: true,
	}}
	m.SetParams(params)
	return m
}

// CAMFCI learns one deviation per item and condition: μ + b_u + p_u·q_i + Σ b_{i,cond}.
type CAMFCI struct {
	camfDeviation
}

func NewCAMFCI(params model.Params) *CAMFCI {
	m := &CAMFCI{camfDeviation{
		name:           "CAMF_CI",
		withUserBias:   true,
		withItemDev:    true,
		deviationStart: uniformDeviation,
	}}
	m.SetParams(params)
	return m
}

// CAMFCU learns one deviation per user and condition: μ + b_i + p_u·q_i + Σ b_{u,cond}.
type CAMFCU struct {
	camfDeviation
}

func NewCAMFCU(params model.Params) *CAMFCU {
	m := &CAMFCU{camfDeviation{
		name:           "CAMF_CU",
		withItemBias:   true,
		withUserDev:    true,
		deviationStart: uniformDeviation,
	}}
	m.SetParams(params)
	return m
}

// CAMFCUCI learns deviations per user and condition and per item and condition, without
// user or item biases.
type CAMFCUCI struct {
	camfDeviation
}

func NewCAMFCUCI(params model.Params) *CAMFCUCI {
	m := &CAMFCUCI{camfDeviation{
		name:        "CAMF_CUCI",
		withUserDev: true,
		withItemDev: true,
	}}
	m.SetParams(params)
	return m
}
