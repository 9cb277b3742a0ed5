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
	"fmt"
	"math"
	"time"

	"github.com/gorse-io/carskit/base/log"
	"github.com/gorse-io/carskit/base/progress"
	"github.com/gorse-io/carskit/dataset"
	"github.com/gorse-io/carskit/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Epsilon is the minimal loss decrease between two epochs before training stops.
const Epsilon = 1e-5

// ErrNonFinite is returned when the training loss becomes NaN or infinite.
const ErrNonFinite = errors.ConstError("non-finite training loss")

// Sample is one training rating. Situation is -1 for the collapsed user-item view.
type Sample struct {
	User      int
	Item      int
	Situation int
	Rating    float64
}

// ContextSamples returns the ratings of a table in row-major order.
func ContextSamples(train *dataset.RatingTable) []Sample {
	registry := train.Registry()
	samples := make([]Sample, 0, train.Len())
	for _, e := range train.Entries() {
		samples = append(samples, Sample{
			User:      registry.UserOf(e.UserItem),
			Item:      registry.ItemOf(e.UserItem),
			Situation: e.Situation,
			Rating:    e.Rating,
		})
	}
	return samples
}

// CollapsedSamples returns the ratings of the collapsed user-item view.
func CollapsedSamples(table *dataset.UserItemTable) []Sample {
	samples := make([]Sample, 0, table.Len())
	for _, r := range table.Entries() {
		samples = append(samples, Sample{User: r.User, Item: r.Item, Situation: -1, Rating: r.Rating})
	}
	return samples
}

// PredictionModel is the capability every factorization variant implements. The
// Trainer owns the loop; a variant only knows how to predict one rating and how to
// update its parameters from one sample.
type PredictionModel interface {
	// Init allocates and initializes parameters.
	Init(d *dataset.Dataset, train *dataset.RatingTable) error
	// Predict the rating of user u for item i in situation c.
	Predict(u, i, c int) float64
	// TrainStep applies one SGD update and returns the unscaled loss contribution of
	// the sample, squared error plus regularization.
	TrainStep(s Sample, lr float64) float64
	// LossScale multiplies the summed epoch loss.
	LossScale() float64
}

// SampleSource is implemented by models that train on something other than the
// context ratings, such as the collapsed user-item matrix.
type SampleSource interface {
	Samples(train *dataset.RatingTable) []Sample
}

// TrainResult reports a finished fit.
type TrainResult struct {
	Epochs    int
	Losses    []float64
	Converged bool
	// Lr is the learning rate after the last epoch.
	Lr float64
}

// Loss returns the loss of the last epoch.
func (r TrainResult) Loss() float64 {
	if len(r.Losses) == 0 {
		return 0
	}
	return r.Losses[len(r.Losses)-1]
}

// Trainer runs synchronous SGD epochs over a PredictionModel.
type Trainer struct {
	Name    string
	NEpochs int
	Lr      float64
	MaxLr   float64
	Policy  LearningRate
}

// NewTrainer reads the training hyper-parameters.
func NewTrainer(name string, params model.Params) *Trainer {
	return &Trainer{
		Name:    name,
		NEpochs: params.GetInt(model.NEpochs, 100),
		Lr:      params.GetFloat64(model.Lr, 0.02),
		MaxLr:   params.GetFloat64(model.MaxLr, 0),
		Policy:  NewLearningRate(params),
	}
}

// Fit initializes the model and trains it until the loss stops decreasing by Epsilon
// or the maximal number of epochs is reached. The context is checked between epochs.
func (t *Trainer) Fit(ctx context.Context, m PredictionModel, d *dataset.Dataset, train *dataset.RatingTable) (TrainResult, error) {
	log.Logger().Info("fit "+t.Name,
		zap.Int("train_set_size", train.Len()),
		zap.Int("n_epochs", t.NEpochs),
		zap.Float64("lr", t.Lr))
	if err := m.Init(d, train); err != nil {
		return TrainResult{}, errors.Trace(err)
	}
	var samples []Sample
	if source, ok := m.(SampleSource); ok {
		samples = source.Samples(train)
	} else {
		samples = ContextSamples(train)
	}

	result := TrainResult{Lr: t.Lr}
	lr, last := t.Lr, 0.0
	_, span := progress.Start(ctx, t.Name+".Fit", t.NEpochs)
	for epoch := 1; epoch <= t.NEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return result, errors.Trace(err)
		}
		fitStart := time.Now()
		loss := 0.0
		for _, s := range samples {
			loss += m.TrainStep(s, lr)
		}
		loss *= m.LossScale()
		result.Epochs = epoch
		result.Losses = append(result.Losses, loss)
		span.Add(1)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			span.Fail(ErrNonFinite)
			log.Logger().Error("training diverged", zap.String("model", t.Name), zap.Int("epoch", epoch), zap.Float64("lr", lr))
			return result, errors.Annotatef(ErrNonFinite, "%s epoch %d", t.Name, epoch)
		}
		log.Logger().Debug(fmt.Sprintf("fit %s %v/%v", t.Name, epoch, t.NEpochs),
			zap.String("fit_time", time.Since(fitStart).String()),
			zap.Float64("loss", loss),
			zap.Float64("delta_loss", last-loss),
			zap.Float64("lr", lr))
		lr = t.Policy.Next(lr, epoch, last, loss)
		if t.MaxLr > 0 && lr > t.MaxLr {
			lr = t.MaxLr
		}
		result.Lr = lr
		converged := epoch > 1 && last-loss < Epsilon
		last = loss
		if converged {
			result.Converged = true
			break
		}
	}
	span.End()
	log.Logger().Info("fit "+t.Name+" complete",
		zap.Int("epochs", result.Epochs),
		zap.Bool("converged", result.Converged),
		zap.Float64("loss", result.Loss()))
	return result, nil
}
