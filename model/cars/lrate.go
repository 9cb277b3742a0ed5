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
	"math"

	"github.com/gorse-io/carskit/model"
)

// LearningRate adapts the learning rate after each epoch. last is the loss of the
// previous epoch and loss the loss of the finished one.
type LearningRate interface {
	Next(lr float64, epoch int, last, loss float64) float64
}

// ConstantRate keeps the learning rate unchanged.
type ConstantRate struct{}

func (ConstantRate) Next(lr float64, _ int, _, _ float64) float64 {
	return lr
}

// BoldDriver grows the learning rate after an improving epoch and shrinks it otherwise.
type BoldDriver struct {
	Grow   float64
	Shrink float64
}

func NewBoldDriver() BoldDriver {
	return BoldDriver{Grow: 1.05, Shrink: 0.5}
}

func (b BoldDriver) Next(lr float64, epoch int, last, loss float64) float64 {
	if epoch <= 1 {
		return lr
	}
	if math.Abs(last) > math.Abs(loss) {
		return lr * b.Grow
	}
	return lr * b.Shrink
}

// DecayRate multiplies the learning rate by a constant factor in (0, 1) every epoch.
type DecayRate struct {
	Decay float64
}

func (d DecayRate) Next(lr float64, _ int, _, _ float64) float64 {
	if d.Decay > 0 && d.Decay < 1 {
		return lr * d.Decay
	}
	return lr
}

// NewLearningRate picks the policy configured by hyper-parameters. The bold driver
// takes precedence over decay.
func NewLearningRate(params model.Params) LearningRate {
	if params.GetBool(model.BoldDriver, false) {
		return NewBoldDriver()
	}
	if decay := params.GetFloat64(model.Decay, 0); decay > 0 && decay < 1 {
		return DecayRate{Decay: decay}
	}
	return ConstantRate{}
}
