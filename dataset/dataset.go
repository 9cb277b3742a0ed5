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

package dataset

import (
	"math"
	"sort"
)

// Dataset is the immutable context shared by splitters, models and evaluators. It is
// safe for concurrent reads once built.
type Dataset struct {
	Registry *Registry
	Index    *SituationIndex
	// Ratings holds all ratings when folds are split from it, or the training set when a
	// separate test set is given.
	Ratings *RatingTable
	// Test is the separately loaded test set, or nil.
	Test *RatingTable
	// Scale is the sorted distinct rating values.
	Scale []float64
}

func (d *Dataset) CountUsers() int {
	return d.Registry.CountUsers()
}

func (d *Dataset) CountItems() int {
	return d.Registry.CountItems()
}

func (d *Dataset) CountSituations() int {
	return d.Index.CountSituations()
}

func (d *Dataset) MinRating() float64 {
	return d.Scale[0]
}

func (d *Dataset) MaxRating() float64 {
	return d.Scale[len(d.Scale)-1]
}

// Clip limits a prediction to the rating scale.
func (d *Dataset) Clip(prediction float64) float64 {
	return math.Max(d.MinRating(), math.Min(d.MaxRating(), prediction))
}

// Round snaps a prediction to the nearest level of the rating scale. Ties go to the
// lower level.
func (d *Dataset) Round(prediction float64) float64 {
	k := sort.SearchFloat64s(d.Scale, prediction)
	if k == 0 {
		return d.Scale[0]
	}
	if k == len(d.Scale) {
		return d.Scale[k-1]
	}
	if prediction-d.Scale[k-1] <= d.Scale[k]-prediction {
		return d.Scale[k-1]
	}
	return d.Scale[k]
}

// UserName returns the raw key of a user.
func (d *Dataset) UserName(u int) string {
	return d.Registry.Users.MustString(u)
}

// ItemName returns the raw key of an item.
func (d *Dataset) ItemName(i int) string {
	return d.Registry.Items.MustString(i)
}
