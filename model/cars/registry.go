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
	"sort"
	"strings"

	"github.com/gorse-io/carskit/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Creator creates a recommender with hyper-parameters.
type Creator func(params model.Params) Recommender

// Registry maps algorithm tags to creators.
type Registry map[string]Creator

// DefaultRegistry returns all built-in recommenders.
func DefaultRegistry() Registry {
	return Registry{
		"globalavg":      func(p model.Params) Recommender { return NewGlobalAverage(p) },
		"useravg":        func(p model.Params) Recommender { return NewUserAverage(p) },
		"itemavg":        func(p model.Params) Recommender { return NewItemAverage(p) },
		"useritemavg":    func(p model.Params) Recommender { return NewUserItemAverage(p) },
		"contextavg":     func(p model.Params) Recommender { return NewContextAverage(p) },
		"usercontextavg": func(p model.Params) Recommender { return NewUserContextAverage(p) },
		"itemcontextavg": func(p model.Params) Recommender { return NewItemContextAverage(p) },
		"userknn":        func(p model.Params) Recommender { return NewUserKNN(p) },
		"itemknn":        func(p model.Params) Recommender { return NewItemKNN(p) },
		"biasedmf":       func(p model.Params) Recommender { return NewBiasedMF(p) },
		"camf_c":         func(p model.Params) Recommender { return NewCAMFC(p) },
		"camf_ci":        func(p model.Params) Recommender { return NewCAMFCI(p) },
		"camf_cu":        func(p model.Params) Recommender { return NewCAMFCU(p) },
		"camf_cuci":      func(p model.Params) Recommender { return NewCAMFCUCI(p) },
		"camf_ics":       func(p model.Params) Recommender { return NewCAMFICS(p) },
		"camf_lcs":       func(p model.Params) Recommender { return NewCAMFLCS(p) },
		"camf_mcs":       func(p model.Params) Recommender { return NewCAMFMCS(p) },
	}
}

// Tags returns registered tags in ascending order.
func (r Registry) Tags() []string {
	tags := lo.Keys(r)
	sort.Strings(tags)
	return tags
}

// New creates the recommender registered under tag. Tags are case-insensitive.
func (r Registry) New(tag string, params model.Params) (Recommender, error) {
	creator, exist := r[strings.ToLower(strings.TrimSpace(tag))]
	if !exist {
		return nil, errors.NotFoundf("algorithm %q (known: %s)", tag, strings.Join(r.Tags(), ", "))
	}
	return creator(params), nil
}

// Subset returns the creators of the given tags.
func (r Registry) Subset(tags ...string) (Registry, error) {
	subset := make(Registry, len(tags))
	for _, tag := range tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		creator, exist := r[key]
		if !exist {
			return nil, errors.NotFoundf("algorithm %q", tag)
		}
		subset[key] = creator
	}
	return subset, nil
}
